package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/hspiira/timeline-sub001/internal/domain"
)

// EventLedger is the single write path of the platform: subject check,
// schema validation, transition validation, hash chaining, persistence,
// then workflow triggering. Nothing partially commits; a failing gate
// aborts the whole append.
type EventLedger struct {
	Events     EventRepository
	Subjects   SubjectRepository
	Schemas    *SchemaValidator
	Transition *TransitionValidator
	Clock      Clock
	Log        *slog.Logger

	workflows WorkflowTrigger
}

func NewEventLedger(events EventRepository, subjects SubjectRepository, schemas *SchemaValidator, transition *TransitionValidator, clock Clock, log *slog.Logger) *EventLedger {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	if log == nil {
		log = slog.Default()
	}
	return &EventLedger{
		Events:     events,
		Subjects:   subjects,
		Schemas:    schemas,
		Transition: transition,
		Clock:      clock,
		Log:        log,
	}
}

// SetWorkflowTrigger wires the workflow engine after construction; the
// engine itself appends follow-up events through the ledger, so the two
// cannot be built in one shot.
func (l *EventLedger) SetWorkflowTrigger(trigger WorkflowTrigger) {
	l.workflows = trigger
}

// AppendEvent validates, chains and persists one event, then hands it to
// the workflow engine. Engine failures are logged and never surfaced: the
// event is already committed and automation must not corrupt the ledger.
func (l *EventLedger) AppendEvent(ctx context.Context, tenantID string, in domain.NewEventInput) (domain.Event, error) {
	return l.append(ctx, tenantID, in, true)
}

// AppendFollowUp appends without re-triggering workflows. Used by the
// create_event workflow action.
func (l *EventLedger) AppendFollowUp(ctx context.Context, tenantID string, in domain.NewEventInput) (domain.Event, error) {
	return l.append(ctx, tenantID, in, false)
}

func (l *EventLedger) append(ctx context.Context, tenantID string, in domain.NewEventInput, triggerWorkflows bool) (domain.Event, error) {
	subject, err := l.Subjects.GetByIDAndTenant(ctx, in.SubjectID, tenantID)
	if err != nil {
		return domain.Event{}, err
	}
	if subject == nil {
		return domain.Event{}, domain.NewNotFoundError("subject", in.SubjectID)
	}

	version, err := l.Schemas.Validate(ctx, tenantID, subject.SubjectType, in.EventType, in.SchemaVersion, in.Payload)
	if err != nil {
		return domain.Event{}, err
	}
	if err := l.Transition.Validate(ctx, tenantID, in.SubjectID, in.EventType, in.Payload); err != nil {
		return domain.Event{}, err
	}

	eventTime := in.EventTime
	if eventTime.IsZero() {
		eventTime = l.Clock()
	}
	payload := in.Payload
	if payload == nil {
		payload = map[string]any{}
	}

	created, err := l.Events.Append(ctx, domain.Event{
		TenantID:      tenantID,
		SubjectID:     in.SubjectID,
		EventType:     in.EventType,
		SchemaVersion: version,
		EventTime:     eventTime.UTC(),
		Payload:       payload,
	})
	if err != nil {
		return domain.Event{}, err
	}

	if triggerWorkflows && l.workflows != nil {
		l.workflows.OnEventAppended(ctx, created)
	}
	return created, nil
}

// AppendEvents is the bulk append used by ingestion jobs. All events
// persist in one transaction with per-subject chains threaded across the
// batch; workflow triggering is opt-in and runs per event after commit.
func (l *EventLedger) AppendEvents(ctx context.Context, tenantID string, ins []domain.NewEventInput, triggerWorkflows bool) ([]domain.Event, error) {
	if len(ins) == 0 {
		return nil, nil
	}

	seen := make(map[string]*domain.Subject, len(ins))
	for _, in := range ins {
		if _, ok := seen[in.SubjectID]; ok {
			continue
		}
		subject, err := l.Subjects.GetByIDAndTenant(ctx, in.SubjectID, tenantID)
		if err != nil {
			return nil, err
		}
		if subject == nil {
			return nil, domain.NewNotFoundError("subject", in.SubjectID)
		}
		seen[in.SubjectID] = subject
	}

	// Earlier batch items count as part of the stream for later ones, the
	// same way chain state is threaded: an occurrence cap or required
	// prior must hold over persisted plus in-batch events.
	pending := make(map[string][]domain.Event, len(seen))
	batch := make([]domain.Event, 0, len(ins))
	for _, in := range ins {
		version, err := l.Schemas.Validate(ctx, tenantID, seen[in.SubjectID].SubjectType, in.EventType, in.SchemaVersion, in.Payload)
		if err != nil {
			return nil, err
		}
		if err := l.Transition.ValidateWithPending(ctx, tenantID, in.SubjectID, in.EventType, in.Payload, pending[in.SubjectID]); err != nil {
			return nil, err
		}
		eventTime := in.EventTime
		if eventTime.IsZero() {
			eventTime = l.Clock()
		}
		payload := in.Payload
		if payload == nil {
			payload = map[string]any{}
		}
		event := domain.Event{
			TenantID:      tenantID,
			SubjectID:     in.SubjectID,
			EventType:     in.EventType,
			SchemaVersion: version,
			EventTime:     eventTime.UTC(),
			Payload:       payload,
		}
		pending[in.SubjectID] = append(pending[in.SubjectID], event)
		batch = append(batch, event)
	}

	created, err := l.Events.AppendBatch(ctx, batch)
	if err != nil {
		return nil, err
	}

	if triggerWorkflows && l.workflows != nil {
		for _, event := range created {
			l.workflows.OnEventAppended(ctx, event)
		}
	}
	return created, nil
}

var _ FollowUpAppender = (*EventLedger)(nil)
