package db

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/hspiira/timeline-sub001/internal/domain"
)

type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task domain.Task) (domain.Task, error) {
	if r.db == nil {
		return domain.Task{}, domain.ErrStoreClosed
	}
	task.ID = newID()
	task.CreatedAt = time.Now().UTC()
	if task.Status == "" {
		task.Status = "open"
	}
	model := TaskModel{
		ID:          task.ID,
		TenantID:    task.TenantID,
		SubjectID:   task.SubjectID,
		Title:       task.Title,
		Description: task.Description,
		Status:      task.Status,
		DueAt:       task.DueAt,
		CreatedAt:   task.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.Task{}, translateError(err, "task")
	}
	return task, nil
}
