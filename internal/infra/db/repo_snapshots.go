package db

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hspiira/timeline-sub001/internal/domain"
)

type SnapshotRepository struct {
	db *gorm.DB
}

func NewSnapshotRepository(db *gorm.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

func (r *SnapshotRepository) GetBySubject(ctx context.Context, tenantID, subjectID string) (*domain.SubjectSnapshot, error) {
	if r.db == nil {
		return nil, domain.ErrStoreClosed
	}
	var model SubjectSnapshotModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND subject_id = ?", tenantID, subjectID).
		Take(&model).Error; err != nil {
		return nil, translateError(err, "snapshot")
	}
	snap, err := snapshotFromModel(model)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// Upsert replaces the subject's snapshot atomically; one row per subject.
func (r *SnapshotRepository) Upsert(ctx context.Context, snap domain.SubjectSnapshot) (domain.SubjectSnapshot, error) {
	if r.db == nil {
		return domain.SubjectSnapshot{}, domain.ErrStoreClosed
	}
	if snap.ID == "" {
		snap.ID = newID()
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}
	state, err := marshalJSON(snap.State)
	if err != nil {
		return domain.SubjectSnapshot{}, err
	}
	model := SubjectSnapshotModel{
		ID:                   snap.ID,
		TenantID:             snap.TenantID,
		SubjectID:            snap.SubjectID,
		SnapshotAtEventID:    snap.SnapshotAtEventID,
		StateJSON:            state,
		EventCountAtSnapshot: snap.EventCountAtSnapshot,
		CreatedAt:            snap.CreatedAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}, {Name: "subject_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"snapshot_at_event_id", "state_json", "event_count_at_snapshot", "created_at",
		}),
	}).Create(&model).Error; err != nil {
		return domain.SubjectSnapshot{}, translateError(err, "snapshot")
	}
	return snap, nil
}

func snapshotFromModel(model SubjectSnapshotModel) (domain.SubjectSnapshot, error) {
	state, err := unmarshalMap(model.StateJSON)
	if err != nil {
		return domain.SubjectSnapshot{}, err
	}
	return domain.SubjectSnapshot{
		ID:                   model.ID,
		TenantID:             model.TenantID,
		SubjectID:            model.SubjectID,
		SnapshotAtEventID:    model.SnapshotAtEventID,
		State:                state,
		EventCountAtSnapshot: model.EventCountAtSnapshot,
		CreatedAt:            model.CreatedAt.UTC(),
	}, nil
}
