package db

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/hspiira/timeline-sub001/internal/domain"
	"github.com/hspiira/timeline-sub001/internal/infra/crypto"
)

type EventRepository struct {
	db     *gorm.DB
	hasher *crypto.EventHasher
}

func NewEventRepository(db *gorm.DB, hasher *crypto.EventHasher) *EventRepository {
	if hasher == nil {
		hasher = crypto.NewEventHasher(nil)
	}
	return &EventRepository{db: db, hasher: hasher}
}

// Append persists one event, computing its chain position inside the
// transaction. The subject's chain row is locked FOR UPDATE so concurrent
// appends to the same stream serialize; distinct streams proceed in
// parallel.
func (r *EventRepository) Append(ctx context.Context, event domain.Event) (domain.Event, error) {
	if r.db == nil {
		return domain.Event{}, domain.ErrStoreClosed
	}
	var out domain.Event
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err := r.appendInTx(ctx, tx, event)
		if err != nil {
			return err
		}
		out = created
		return nil
	})
	if err != nil {
		return domain.Event{}, translateError(err, "event")
	}
	return out, nil
}

// AppendBatch persists the whole slice in one transaction; any failure
// rolls back every event of the batch.
func (r *EventRepository) AppendBatch(ctx context.Context, events []domain.Event) ([]domain.Event, error) {
	if r.db == nil {
		return nil, domain.ErrStoreClosed
	}
	out := make([]domain.Event, 0, len(events))
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, event := range events {
			created, err := r.appendInTx(ctx, tx, event)
			if err != nil {
				return err
			}
			out = append(out, created)
		}
		return nil
	})
	if err != nil {
		return nil, translateError(err, "event")
	}
	return out, nil
}

func (r *EventRepository) appendInTx(ctx context.Context, tx *gorm.DB, event domain.Event) (domain.Event, error) {
	if event.TenantID == "" || event.SubjectID == "" {
		return domain.Event{}, domain.NewValidationError("event", "tenant_id and subject_id are required")
	}
	if event.ID == "" {
		event.ID = newID()
	}
	event.EventTime = event.EventTime.UTC().Truncate(time.Microsecond)
	event.CreatedAt = time.Now().UTC()
	if event.Payload == nil {
		event.Payload = map[string]any{}
	}

	seq, prevHash, lastEventTime, err := nextChainLink(ctx, tx, event.TenantID, event.SubjectID)
	if err != nil {
		return domain.Event{}, err
	}
	if !lastEventTime.IsZero() && event.EventTime.Before(lastEventTime) {
		return domain.Event{}, &domain.ValidationError{
			Clause: "event_time",
			Message: fmt.Sprintf("event_time %s precedes the stream head at %s",
				event.EventTime.Format(time.RFC3339Nano), lastEventTime.Format(time.RFC3339Nano)),
		}
	}
	event.Seq = seq
	event.PreviousHash = prevHash

	hash, err := r.hasher.ComputeHash(event.SubjectID, event.EventType, event.SchemaVersion, event.EventTime, event.Payload, prevHash)
	if err != nil {
		return domain.Event{}, err
	}
	event.Hash = hash

	payloadJSON, err := marshalJSON(event.Payload)
	if err != nil {
		return domain.Event{}, err
	}
	model := EventModel{
		ID:            event.ID,
		TenantID:      event.TenantID,
		SubjectID:     event.SubjectID,
		EventType:     event.EventType,
		SchemaVersion: event.SchemaVersion,
		EventTime:     event.EventTime,
		PayloadJSON:   payloadJSON,
		PreviousHash:  event.PreviousHash,
		Hash:          event.Hash,
		Seq:           event.Seq,
		CreatedAt:     event.CreatedAt,
	}
	if err := tx.Create(&model).Error; err != nil {
		return domain.Event{}, err
	}
	if err := tx.Exec(
		"UPDATE subject_chains SET seq = ?, head_hash = ?, last_event_time = ? WHERE tenant_id = ? AND subject_id = ?",
		event.Seq, event.Hash, event.EventTime, event.TenantID, event.SubjectID,
	).Error; err != nil {
		return domain.Event{}, err
	}
	return event, nil
}

// nextChainLink locks the subject's chain row and returns the next
// sequence number, the current head hash and the head's event time. The
// row is created on first append; its lock is what serializes a stream.
func nextChainLink(ctx context.Context, tx *gorm.DB, tenantID, subjectID string) (int64, string, time.Time, error) {
	if err := tx.WithContext(ctx).Exec(
		"INSERT INTO subject_chains (tenant_id, subject_id, seq, head_hash) VALUES (?, ?, 0, '') ON CONFLICT (tenant_id, subject_id) DO NOTHING",
		tenantID, subjectID,
	).Error; err != nil {
		return 0, "", time.Time{}, err
	}

	var chain SubjectChainModel
	if err := tx.WithContext(ctx).Raw(
		"SELECT tenant_id, subject_id, seq, head_hash, last_event_time FROM subject_chains WHERE tenant_id = ? AND subject_id = ? FOR UPDATE",
		tenantID, subjectID,
	).Scan(&chain).Error; err != nil {
		return 0, "", time.Time{}, err
	}
	return chain.Seq + 1, chain.HeadHash, chain.LastEventTime, nil
}

func (r *EventRepository) GetByIDAndTenant(ctx context.Context, eventID, tenantID string) (*domain.Event, error) {
	if r.db == nil {
		return nil, domain.ErrStoreClosed
	}
	var model EventModel
	if err := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", eventID, tenantID).
		Take(&model).Error; err != nil {
		return nil, translateError(err, "event")
	}
	event, err := eventFromModel(model)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *EventRepository) ListBySubject(ctx context.Context, tenantID, subjectID string, asOf *time.Time) ([]domain.Event, error) {
	if r.db == nil {
		return nil, domain.ErrStoreClosed
	}
	q := r.db.WithContext(ctx).
		Where("tenant_id = ? AND subject_id = ?", tenantID, subjectID)
	if asOf != nil {
		q = q.Where("event_time <= ?", asOf.UTC())
	}
	var models []EventModel
	if err := q.Order("seq ASC").Find(&models).Error; err != nil {
		return nil, translateError(err, "event")
	}
	return eventsFromModels(models)
}

func (r *EventRepository) ListBySubjectAfter(ctx context.Context, tenantID, subjectID, afterEventID string, asOf *time.Time) ([]domain.Event, error) {
	if r.db == nil {
		return nil, domain.ErrStoreClosed
	}
	var after EventModel
	if err := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", afterEventID, tenantID).
		Take(&after).Error; err != nil {
		return nil, translateError(err, "event")
	}
	q := r.db.WithContext(ctx).
		Where("tenant_id = ? AND subject_id = ? AND seq > ?", tenantID, subjectID, after.Seq)
	if asOf != nil {
		q = q.Where("event_time <= ?", asOf.UTC())
	}
	var models []EventModel
	if err := q.Order("seq ASC").Find(&models).Error; err != nil {
		return nil, translateError(err, "event")
	}
	return eventsFromModels(models)
}

func (r *EventRepository) ListByTenant(ctx context.Context, tenantID string, offset, limit int) ([]domain.Event, error) {
	if r.db == nil {
		return nil, domain.ErrStoreClosed
	}
	var models []EventModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at ASC, id ASC").
		Offset(offset).Limit(limit).
		Find(&models).Error; err != nil {
		return nil, translateError(err, "event")
	}
	return eventsFromModels(models)
}

func eventFromModel(model EventModel) (domain.Event, error) {
	payload, err := unmarshalMap(model.PayloadJSON)
	if err != nil {
		return domain.Event{}, err
	}
	return domain.Event{
		ID:            model.ID,
		TenantID:      model.TenantID,
		SubjectID:     model.SubjectID,
		EventType:     model.EventType,
		SchemaVersion: model.SchemaVersion,
		EventTime:     model.EventTime.UTC(),
		Payload:       payload,
		PreviousHash:  model.PreviousHash,
		Hash:          model.Hash,
		Seq:           model.Seq,
		CreatedAt:     model.CreatedAt.UTC(),
	}, nil
}

func eventsFromModels(models []EventModel) ([]domain.Event, error) {
	out := make([]domain.Event, 0, len(models))
	for _, model := range models {
		event, err := eventFromModel(model)
		if err != nil {
			return nil, err
		}
		out = append(out, event)
	}
	return out, nil
}
