package db

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/hspiira/timeline-sub001/internal/domain"
)

type SubjectRepository struct {
	db *gorm.DB
}

func NewSubjectRepository(db *gorm.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

func (r *SubjectRepository) Create(ctx context.Context, subject domain.Subject) (domain.Subject, error) {
	if r.db == nil {
		return domain.Subject{}, domain.ErrStoreClosed
	}
	if subject.ID == "" {
		subject.ID = newID()
	}
	now := time.Now().UTC()
	subject.CreatedAt = now
	subject.UpdatedAt = now

	attrs, err := marshalJSON(subject.Attributes)
	if err != nil {
		return domain.Subject{}, err
	}
	model := SubjectModel{
		ID:             subject.ID,
		TenantID:       subject.TenantID,
		SubjectType:    subject.SubjectType,
		ExternalRef:    stringPtrIfNotEmpty(subject.ExternalRef),
		DisplayName:    subject.DisplayName,
		AttributesJSON: attrs,
		CreatedAt:      subject.CreatedAt,
		UpdatedAt:      subject.UpdatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.Subject{}, translateError(err, "subject")
	}
	return subject, nil
}

func (r *SubjectRepository) GetByIDAndTenant(ctx context.Context, subjectID, tenantID string) (*domain.Subject, error) {
	if r.db == nil {
		return nil, domain.ErrStoreClosed
	}
	var model SubjectModel
	if err := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", subjectID, tenantID).
		Take(&model).Error; err != nil {
		return nil, translateError(err, "subject")
	}
	subject, err := subjectFromModel(model)
	if err != nil {
		return nil, err
	}
	return &subject, nil
}

func (r *SubjectRepository) ListByTenant(ctx context.Context, tenantID string, offset, limit int) ([]domain.Subject, error) {
	if r.db == nil {
		return nil, domain.ErrStoreClosed
	}
	var models []SubjectModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at ASC, id ASC").
		Offset(offset).Limit(limit).
		Find(&models).Error; err != nil {
		return nil, translateError(err, "subject")
	}
	out := make([]domain.Subject, 0, len(models))
	for _, model := range models {
		subject, err := subjectFromModel(model)
		if err != nil {
			return nil, err
		}
		out = append(out, subject)
	}
	return out, nil
}

func subjectFromModel(model SubjectModel) (domain.Subject, error) {
	attrs, err := unmarshalMap(model.AttributesJSON)
	if err != nil {
		return domain.Subject{}, err
	}
	return domain.Subject{
		ID:          model.ID,
		TenantID:    model.TenantID,
		SubjectType: model.SubjectType,
		ExternalRef: stringValue(model.ExternalRef),
		DisplayName: model.DisplayName,
		Attributes:  attrs,
		CreatedAt:   model.CreatedAt.UTC(),
		UpdatedAt:   model.UpdatedAt.UTC(),
	}, nil
}
