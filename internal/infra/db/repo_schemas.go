package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/hspiira/timeline-sub001/internal/domain"
)

type SchemaRepository struct {
	db *gorm.DB
}

func NewSchemaRepository(db *gorm.DB) *SchemaRepository {
	return &SchemaRepository{db: db}
}

func (r *SchemaRepository) GetByVersion(ctx context.Context, tenantID, eventType string, version int) (*domain.EventSchema, error) {
	if r.db == nil {
		return nil, domain.ErrStoreClosed
	}
	var model EventSchemaModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND event_type = ? AND version = ?", tenantID, eventType, version).
		Take(&model).Error; err != nil {
		return nil, translateError(err, "event schema")
	}
	schema, err := schemaFromModel(model)
	if err != nil {
		return nil, err
	}
	return &schema, nil
}

func (r *SchemaRepository) GetActive(ctx context.Context, tenantID, eventType string) (*domain.EventSchema, error) {
	if r.db == nil {
		return nil, domain.ErrStoreClosed
	}
	var model EventSchemaModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND event_type = ? AND is_active = TRUE", tenantID, eventType).
		Take(&model).Error; err != nil {
		return nil, translateError(err, "event schema")
	}
	schema, err := schemaFromModel(model)
	if err != nil {
		return nil, err
	}
	return &schema, nil
}

// Create stores a new schema version. The version number is assigned
// inside the transaction; the first version of an event type activates
// itself, later ones stay inactive until activated.
func (r *SchemaRepository) Create(ctx context.Context, schema domain.EventSchema) (domain.EventSchema, error) {
	if r.db == nil {
		return domain.EventSchema{}, domain.ErrStoreClosed
	}
	schema.ID = newID()
	schema.CreatedAt = time.Now().UTC()

	definition, err := marshalJSON(schema.Definition)
	if err != nil {
		return domain.EventSchema{}, err
	}
	allowed, err := marshalJSON(schema.AllowedSubjectTypes)
	if err != nil {
		return domain.EventSchema{}, err
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxVersion int
		if err := tx.Raw(
			"SELECT COALESCE(MAX(version), 0) FROM event_schemas WHERE tenant_id = ? AND event_type = ?",
			schema.TenantID, schema.EventType,
		).Scan(&maxVersion).Error; err != nil {
			return err
		}
		schema.Version = maxVersion + 1
		schema.IsActive = schema.Version == 1

		model := EventSchemaModel{
			ID:                  schema.ID,
			TenantID:            schema.TenantID,
			EventType:           schema.EventType,
			Version:             schema.Version,
			DefinitionJSON:      definition,
			IsActive:            schema.IsActive,
			AllowedSubjectTypes: allowed,
			CreatedAt:           schema.CreatedAt,
		}
		return tx.Create(&model).Error
	})
	if err != nil {
		return domain.EventSchema{}, translateError(err, "event schema")
	}
	return schema, nil
}

// Activate swaps the active version in one transaction: the current
// active version is deactivated, the target activated. The deactivated
// version is returned so its cache entry can be purged.
func (r *SchemaRepository) Activate(ctx context.Context, tenantID, eventType string, version int) (*domain.EventSchema, int, error) {
	if r.db == nil {
		return nil, 0, domain.ErrStoreClosed
	}
	var model EventSchemaModel
	var deactivated int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("tenant_id = ? AND event_type = ? AND version = ?", tenantID, eventType, version).
			Take(&model).Error; err != nil {
			return err
		}
		var current EventSchemaModel
		err := tx.
			Where("tenant_id = ? AND event_type = ? AND is_active = TRUE", tenantID, eventType).
			Take(&current).Error
		switch {
		case err == nil:
			deactivated = current.Version
			if err := tx.Model(&EventSchemaModel{}).
				Where("id = ?", current.ID).
				Update("is_active", false).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return err
		}
		if err := tx.Model(&EventSchemaModel{}).
			Where("id = ?", model.ID).
			Update("is_active", true).Error; err != nil {
			return err
		}
		model.IsActive = true
		return nil
	})
	if err != nil {
		return nil, 0, translateError(err, fmt.Sprintf("event schema %s v%d", eventType, version))
	}
	schema, err := schemaFromModel(model)
	if err != nil {
		return nil, 0, err
	}
	return &schema, deactivated, nil
}

func (r *SchemaRepository) ListByType(ctx context.Context, tenantID, eventType string) ([]domain.EventSchema, error) {
	if r.db == nil {
		return nil, domain.ErrStoreClosed
	}
	var models []EventSchemaModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND event_type = ?", tenantID, eventType).
		Order("version ASC").
		Find(&models).Error; err != nil {
		return nil, translateError(err, "event schema")
	}
	out := make([]domain.EventSchema, 0, len(models))
	for _, model := range models {
		schema, err := schemaFromModel(model)
		if err != nil {
			return nil, err
		}
		out = append(out, schema)
	}
	return out, nil
}

func schemaFromModel(model EventSchemaModel) (domain.EventSchema, error) {
	definition, err := unmarshalMap(model.DefinitionJSON)
	if err != nil {
		return domain.EventSchema{}, err
	}
	var allowed []string
	if len(model.AllowedSubjectTypes) > 0 {
		if err := json.Unmarshal(model.AllowedSubjectTypes, &allowed); err != nil {
			return domain.EventSchema{}, fmt.Errorf("unmarshal allowed subject types: %w", err)
		}
	}
	return domain.EventSchema{
		ID:                  model.ID,
		TenantID:            model.TenantID,
		EventType:           model.EventType,
		Version:             model.Version,
		Definition:          definition,
		IsActive:            model.IsActive,
		AllowedSubjectTypes: allowed,
		CreatedAt:           model.CreatedAt.UTC(),
	}, nil
}
