package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/hspiira/timeline-sub001/internal/domain"
)

type WorkflowRepository struct {
	db *gorm.DB
}

func NewWorkflowRepository(db *gorm.DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

func (r *WorkflowRepository) ListActiveByTrigger(ctx context.Context, tenantID, eventType string) ([]domain.Workflow, error) {
	if r.db == nil {
		return nil, domain.ErrStoreClosed
	}
	var models []WorkflowModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND trigger_event_type = ? AND is_active = TRUE", tenantID, eventType).
		Order("execution_order ASC, id ASC").
		Find(&models).Error; err != nil {
		return nil, translateError(err, "workflow")
	}
	return workflowsFromModels(models)
}

func (r *WorkflowRepository) Create(ctx context.Context, wf domain.Workflow) (domain.Workflow, error) {
	if r.db == nil {
		return domain.Workflow{}, domain.ErrStoreClosed
	}
	wf.ID = newID()
	now := time.Now().UTC()
	wf.CreatedAt = now
	wf.UpdatedAt = now
	wf.IsActive = true

	model, err := workflowToModel(wf)
	if err != nil {
		return domain.Workflow{}, err
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.Workflow{}, translateError(err, "workflow")
	}
	return wf, nil
}

func (r *WorkflowRepository) Update(ctx context.Context, wf domain.Workflow) (domain.Workflow, error) {
	if r.db == nil {
		return domain.Workflow{}, domain.ErrStoreClosed
	}
	var existing WorkflowModel
	if err := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", wf.ID, wf.TenantID).
		Take(&existing).Error; err != nil {
		return domain.Workflow{}, translateError(err, "workflow")
	}
	wf.CreatedAt = existing.CreatedAt.UTC()
	wf.UpdatedAt = time.Now().UTC()

	model, err := workflowToModel(wf)
	if err != nil {
		return domain.Workflow{}, err
	}
	if err := r.db.WithContext(ctx).Save(&model).Error; err != nil {
		return domain.Workflow{}, translateError(err, "workflow")
	}
	return wf, nil
}

func (r *WorkflowRepository) GetByIDAndTenant(ctx context.Context, workflowID, tenantID string) (*domain.Workflow, error) {
	if r.db == nil {
		return nil, domain.ErrStoreClosed
	}
	var model WorkflowModel
	if err := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", workflowID, tenantID).
		Take(&model).Error; err != nil {
		return nil, translateError(err, "workflow")
	}
	wf, err := workflowFromModel(model)
	if err != nil {
		return nil, err
	}
	return &wf, nil
}

func (r *WorkflowRepository) ListByTenant(ctx context.Context, tenantID string) ([]domain.Workflow, error) {
	if r.db == nil {
		return nil, domain.ErrStoreClosed
	}
	var models []WorkflowModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("trigger_event_type ASC, execution_order ASC").
		Find(&models).Error; err != nil {
		return nil, translateError(err, "workflow")
	}
	return workflowsFromModels(models)
}

func workflowToModel(wf domain.Workflow) (WorkflowModel, error) {
	conditions, err := marshalJSON(wf.TriggerConditions)
	if err != nil {
		return WorkflowModel{}, err
	}
	actions, err := marshalJSON(wf.Actions)
	if err != nil {
		return WorkflowModel{}, err
	}
	return WorkflowModel{
		ID:                    wf.ID,
		TenantID:              wf.TenantID,
		Name:                  wf.Name,
		Description:           wf.Description,
		IsActive:              wf.IsActive,
		TriggerEventType:      wf.TriggerEventType,
		TriggerConditionsJSON: conditions,
		ActionsJSON:           actions,
		MaxExecutionsPerDay:   wf.MaxExecutionsPerDay,
		ExecutionOrder:        wf.ExecutionOrder,
		CreatedAt:             wf.CreatedAt,
		UpdatedAt:             wf.UpdatedAt,
	}, nil
}

func workflowFromModel(model WorkflowModel) (domain.Workflow, error) {
	conditions, err := unmarshalMap(model.TriggerConditionsJSON)
	if err != nil {
		return domain.Workflow{}, err
	}
	var actions []domain.WorkflowAction
	if len(model.ActionsJSON) > 0 {
		if err := json.Unmarshal(model.ActionsJSON, &actions); err != nil {
			return domain.Workflow{}, fmt.Errorf("unmarshal workflow actions: %w", err)
		}
	}
	return domain.Workflow{
		ID:                  model.ID,
		TenantID:            model.TenantID,
		Name:                model.Name,
		Description:         model.Description,
		IsActive:            model.IsActive,
		TriggerEventType:    model.TriggerEventType,
		TriggerConditions:   conditions,
		Actions:             actions,
		MaxExecutionsPerDay: model.MaxExecutionsPerDay,
		ExecutionOrder:      model.ExecutionOrder,
		CreatedAt:           model.CreatedAt.UTC(),
		UpdatedAt:           model.UpdatedAt.UTC(),
	}, nil
}

func workflowsFromModels(models []WorkflowModel) ([]domain.Workflow, error) {
	out := make([]domain.Workflow, 0, len(models))
	for _, model := range models {
		wf, err := workflowFromModel(model)
		if err != nil {
			return nil, err
		}
		out = append(out, wf)
	}
	return out, nil
}
