package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/hspiira/timeline-sub001/internal/domain"
)

type WorkflowExecutionRepository struct {
	db *gorm.DB
}

func NewWorkflowExecutionRepository(db *gorm.DB) *WorkflowExecutionRepository {
	return &WorkflowExecutionRepository{db: db}
}

// Create inserts the finished execution record. The table carries the same
// append-only trigger as events, so this is the only write that will ever
// touch a row.
func (r *WorkflowExecutionRepository) Create(ctx context.Context, exec domain.WorkflowExecution) (domain.WorkflowExecution, error) {
	if r.db == nil {
		return domain.WorkflowExecution{}, domain.ErrStoreClosed
	}
	exec.ID = newID()
	log, err := marshalJSON(exec.ExecutionLog)
	if err != nil {
		return domain.WorkflowExecution{}, err
	}
	model := WorkflowExecutionModel{
		ID:                   exec.ID,
		TenantID:             exec.TenantID,
		WorkflowID:           exec.WorkflowID,
		TriggeredByEventID:   exec.TriggeredByEventID,
		TriggeredBySubjectID: exec.TriggeredBySubjectID,
		Status:               string(exec.Status),
		StartedAt:            exec.StartedAt.UTC(),
		CompletedAt:          exec.CompletedAt.UTC(),
		ActionsExecuted:      exec.ActionsExecuted,
		ActionsFailed:        exec.ActionsFailed,
		ExecutionLogJSON:     log,
		ErrorMessage:         exec.ErrorMessage,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.WorkflowExecution{}, translateError(err, "workflow execution")
	}
	return exec, nil
}

func (r *WorkflowExecutionRepository) CountInWindow(ctx context.Context, tenantID, workflowID string, from, to time.Time) (int64, error) {
	if r.db == nil {
		return 0, domain.ErrStoreClosed
	}
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&WorkflowExecutionModel{}).
		Where("tenant_id = ? AND workflow_id = ? AND started_at >= ? AND started_at < ?",
			tenantID, workflowID, from.UTC(), to.UTC()).
		Count(&count).Error; err != nil {
		return 0, translateError(err, "workflow execution")
	}
	return count, nil
}

func (r *WorkflowExecutionRepository) ListByWorkflow(ctx context.Context, tenantID, workflowID string, offset, limit int) ([]domain.WorkflowExecution, error) {
	if r.db == nil {
		return nil, domain.ErrStoreClosed
	}
	var models []WorkflowExecutionModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND workflow_id = ?", tenantID, workflowID).
		Order("started_at DESC, id DESC").
		Offset(offset).Limit(limit).
		Find(&models).Error; err != nil {
		return nil, translateError(err, "workflow execution")
	}
	out := make([]domain.WorkflowExecution, 0, len(models))
	for _, model := range models {
		exec, err := executionFromModel(model)
		if err != nil {
			return nil, err
		}
		out = append(out, exec)
	}
	return out, nil
}

func executionFromModel(model WorkflowExecutionModel) (domain.WorkflowExecution, error) {
	var log []domain.ActionOutcome
	if len(model.ExecutionLogJSON) > 0 {
		if err := json.Unmarshal(model.ExecutionLogJSON, &log); err != nil {
			return domain.WorkflowExecution{}, fmt.Errorf("unmarshal execution log: %w", err)
		}
	}
	return domain.WorkflowExecution{
		ID:                   model.ID,
		TenantID:             model.TenantID,
		WorkflowID:           model.WorkflowID,
		TriggeredByEventID:   model.TriggeredByEventID,
		TriggeredBySubjectID: model.TriggeredBySubjectID,
		Status:               domain.WorkflowExecutionStatus(model.Status),
		StartedAt:            model.StartedAt.UTC(),
		CompletedAt:          model.CompletedAt.UTC(),
		ActionsExecuted:      model.ActionsExecuted,
		ActionsFailed:        model.ActionsFailed,
		ExecutionLog:         log,
		ErrorMessage:         model.ErrorMessage,
	}, nil
}
