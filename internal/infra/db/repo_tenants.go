package db

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/hspiira/timeline-sub001/internal/domain"
)

type TenantRepository struct {
	db *gorm.DB
}

func NewTenantRepository(db *gorm.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

func (r *TenantRepository) GetByID(ctx context.Context, tenantID string) (*domain.Tenant, error) {
	if r.db == nil {
		return nil, domain.ErrStoreClosed
	}
	var model TenantModel
	if err := r.db.WithContext(ctx).
		Where("id = ? AND is_active = TRUE", tenantID).
		Take(&model).Error; err != nil {
		return nil, translateError(err, "tenant")
	}
	return &domain.Tenant{
		ID:        model.ID,
		Name:      model.Name,
		IsActive:  model.IsActive,
		CreatedAt: model.CreatedAt.UTC(),
	}, nil
}

func (r *TenantRepository) Create(ctx context.Context, tenant domain.Tenant) (domain.Tenant, error) {
	if r.db == nil {
		return domain.Tenant{}, domain.ErrStoreClosed
	}
	if tenant.ID == "" {
		tenant.ID = newID()
	}
	tenant.IsActive = true
	tenant.CreatedAt = time.Now().UTC()
	model := TenantModel{
		ID:        tenant.ID,
		Name:      tenant.Name,
		IsActive:  tenant.IsActive,
		CreatedAt: tenant.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.Tenant{}, translateError(err, "tenant")
	}
	return tenant, nil
}
