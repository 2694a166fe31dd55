package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/hspiira/timeline-sub001/internal/domain"
)

type TransitionRuleRepository struct {
	db *gorm.DB
}

func NewTransitionRuleRepository(db *gorm.DB) *TransitionRuleRepository {
	return &TransitionRuleRepository{db: db}
}

func (r *TransitionRuleRepository) GetForEventType(ctx context.Context, tenantID, eventType string) (*domain.TransitionRule, error) {
	if r.db == nil {
		return nil, domain.ErrStoreClosed
	}
	var model TransitionRuleModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND event_type = ?", tenantID, eventType).
		Take(&model).Error; err != nil {
		return nil, translateError(err, "transition rule")
	}
	rule, err := ruleFromModel(model)
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

// Create stores the rule. The unique index on (tenant, event type) turns a
// duplicate into a ConflictError.
func (r *TransitionRuleRepository) Create(ctx context.Context, rule domain.TransitionRule) (domain.TransitionRule, error) {
	if r.db == nil {
		return domain.TransitionRule{}, domain.ErrStoreClosed
	}
	rule.ID = newID()
	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	model, err := ruleToModel(rule)
	if err != nil {
		return domain.TransitionRule{}, err
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.TransitionRule{}, translateError(err, "transition rule")
	}
	return rule, nil
}

func (r *TransitionRuleRepository) Update(ctx context.Context, rule domain.TransitionRule) (domain.TransitionRule, error) {
	if r.db == nil {
		return domain.TransitionRule{}, domain.ErrStoreClosed
	}
	var existing TransitionRuleModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND event_type = ?", rule.TenantID, rule.EventType).
		Take(&existing).Error; err != nil {
		return domain.TransitionRule{}, translateError(err, "transition rule")
	}
	rule.ID = existing.ID
	rule.CreatedAt = existing.CreatedAt.UTC()
	rule.UpdatedAt = time.Now().UTC()

	model, err := ruleToModel(rule)
	if err != nil {
		return domain.TransitionRule{}, err
	}
	if err := r.db.WithContext(ctx).Save(&model).Error; err != nil {
		return domain.TransitionRule{}, translateError(err, "transition rule")
	}
	return rule, nil
}

func (r *TransitionRuleRepository) ListByTenant(ctx context.Context, tenantID string) ([]domain.TransitionRule, error) {
	if r.db == nil {
		return nil, domain.ErrStoreClosed
	}
	var models []TransitionRuleModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("event_type ASC").
		Find(&models).Error; err != nil {
		return nil, translateError(err, "transition rule")
	}
	out := make([]domain.TransitionRule, 0, len(models))
	for _, model := range models {
		rule, err := ruleFromModel(model)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, nil
}

func ruleToModel(rule domain.TransitionRule) (TransitionRuleModel, error) {
	required, err := marshalJSON(rule.RequiredPriorEventTypes)
	if err != nil {
		return TransitionRuleModel{}, err
	}
	conditions, err := marshalJSON(rule.PriorEventPayloadConditions)
	if err != nil {
		return TransitionRuleModel{}, err
	}
	return TransitionRuleModel{
		ID:                      rule.ID,
		TenantID:                rule.TenantID,
		EventType:               rule.EventType,
		RequiredPriorTypesJSON:  required,
		PayloadConditionsJSON:   conditions,
		MaxOccurrencesPerStream: rule.MaxOccurrencesPerStream,
		FreshPriorEventType:     rule.FreshPriorEventType,
		Description:             rule.Description,
		CreatedAt:               rule.CreatedAt,
		UpdatedAt:               rule.UpdatedAt,
	}, nil
}

func ruleFromModel(model TransitionRuleModel) (domain.TransitionRule, error) {
	var required []string
	if len(model.RequiredPriorTypesJSON) > 0 {
		if err := json.Unmarshal(model.RequiredPriorTypesJSON, &required); err != nil {
			return domain.TransitionRule{}, fmt.Errorf("unmarshal required prior types: %w", err)
		}
	}
	var conditions map[string]map[string]any
	if len(model.PayloadConditionsJSON) > 0 {
		if err := json.Unmarshal(model.PayloadConditionsJSON, &conditions); err != nil {
			return domain.TransitionRule{}, fmt.Errorf("unmarshal payload conditions: %w", err)
		}
	}
	return domain.TransitionRule{
		ID:                          model.ID,
		TenantID:                    model.TenantID,
		EventType:                   model.EventType,
		RequiredPriorEventTypes:     required,
		PriorEventPayloadConditions: conditions,
		MaxOccurrencesPerStream:     model.MaxOccurrencesPerStream,
		FreshPriorEventType:         model.FreshPriorEventType,
		Description:                 model.Description,
		CreatedAt:                   model.CreatedAt.UTC(),
		UpdatedAt:                   model.UpdatedAt.UTC(),
	}, nil
}
