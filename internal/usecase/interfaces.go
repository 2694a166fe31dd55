package usecase

import (
	"context"
	"time"

	"github.com/hspiira/timeline-sub001/internal/domain"
)

// Clock lets tests pin time.
type Clock func() time.Time

type TenantRepository interface {
	GetByID(ctx context.Context, tenantID string) (*domain.Tenant, error)
}

type SubjectRepository interface {
	Create(ctx context.Context, subject domain.Subject) (domain.Subject, error)
	GetByIDAndTenant(ctx context.Context, subjectID, tenantID string) (*domain.Subject, error)
	ListByTenant(ctx context.Context, tenantID string, offset, limit int) ([]domain.Subject, error)
}

// EventRepository is the append-only store of the ledger. Append fills in
// the chain fields (previous hash, hash, seq) inside one storage
// transaction that serializes concurrent appends per subject.
type EventRepository interface {
	Append(ctx context.Context, event domain.Event) (domain.Event, error)
	AppendBatch(ctx context.Context, events []domain.Event) ([]domain.Event, error)
	GetByIDAndTenant(ctx context.Context, eventID, tenantID string) (*domain.Event, error)
	// ListBySubject returns the subject's events in creation order,
	// optionally bounded by event time.
	ListBySubject(ctx context.Context, tenantID, subjectID string, asOf *time.Time) ([]domain.Event, error)
	// ListBySubjectAfter returns events created after the given event id,
	// in creation order, optionally bounded by event time.
	ListBySubjectAfter(ctx context.Context, tenantID, subjectID, afterEventID string, asOf *time.Time) ([]domain.Event, error)
	ListByTenant(ctx context.Context, tenantID string, offset, limit int) ([]domain.Event, error)
}

type SchemaRepository interface {
	GetByVersion(ctx context.Context, tenantID, eventType string, version int) (*domain.EventSchema, error)
	GetActive(ctx context.Context, tenantID, eventType string) (*domain.EventSchema, error)
}

type SchemaAdminRepository interface {
	SchemaRepository
	Create(ctx context.Context, schema domain.EventSchema) (domain.EventSchema, error)
	// Activate marks the version active and deactivates the previously
	// active version in the same transaction. It reports the version it
	// deactivated (0 if none) so callers can purge its cache entry.
	Activate(ctx context.Context, tenantID, eventType string, version int) (*domain.EventSchema, int, error)
	ListByType(ctx context.Context, tenantID, eventType string) ([]domain.EventSchema, error)
}

type TransitionRuleRepository interface {
	GetForEventType(ctx context.Context, tenantID, eventType string) (*domain.TransitionRule, error)
}

type TransitionRuleAdminRepository interface {
	TransitionRuleRepository
	Create(ctx context.Context, rule domain.TransitionRule) (domain.TransitionRule, error)
	Update(ctx context.Context, rule domain.TransitionRule) (domain.TransitionRule, error)
	ListByTenant(ctx context.Context, tenantID string) ([]domain.TransitionRule, error)
}

type WorkflowRepository interface {
	// ListActiveByTrigger returns active workflows for the trigger event
	// type ordered by execution_order ascending, ties broken by id.
	ListActiveByTrigger(ctx context.Context, tenantID, eventType string) ([]domain.Workflow, error)
	Create(ctx context.Context, wf domain.Workflow) (domain.Workflow, error)
	Update(ctx context.Context, wf domain.Workflow) (domain.Workflow, error)
	GetByIDAndTenant(ctx context.Context, workflowID, tenantID string) (*domain.Workflow, error)
	ListByTenant(ctx context.Context, tenantID string) ([]domain.Workflow, error)
}

type WorkflowExecutionRepository interface {
	Create(ctx context.Context, exec domain.WorkflowExecution) (domain.WorkflowExecution, error)
	// CountInWindow counts executions for the workflow started within
	// [from, to); used for the per-day cap.
	CountInWindow(ctx context.Context, tenantID, workflowID string, from, to time.Time) (int64, error)
	ListByWorkflow(ctx context.Context, tenantID, workflowID string, offset, limit int) ([]domain.WorkflowExecution, error)
}

type TaskRepository interface {
	Create(ctx context.Context, task domain.Task) (domain.Task, error)
}

type SnapshotRepository interface {
	GetBySubject(ctx context.Context, tenantID, subjectID string) (*domain.SubjectSnapshot, error)
	// Upsert replaces any existing snapshot for the subject.
	Upsert(ctx context.Context, snap domain.SubjectSnapshot) (domain.SubjectSnapshot, error)
}

// PayloadValidator checks an event payload against a schema definition.
type PayloadValidator interface {
	ValidatePayload(schema domain.EventSchema, payload map[string]any) error
	// CheckDefinition rejects schema definitions that do not compile, so
	// admins learn about a broken schema at registration time rather than
	// at first append.
	CheckDefinition(definition map[string]any) error
}

// SchemaCache is an advisory read cache in front of SchemaRepository. A
// miss or cache failure always falls back to the storage read; it never
// short-circuits validation.
type SchemaCache interface {
	Get(ctx context.Context, key string) (*domain.EventSchema, bool, error)
	Put(ctx context.Context, key string, schema domain.EventSchema, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// WorkflowTrigger consumes a just-appended event. Fire-and-forget from the
// ledger's perspective: implementations record their own outcome and never
// fail the append.
type WorkflowTrigger interface {
	OnEventAppended(ctx context.Context, event domain.Event)
}

// FollowUpAppender appends an event without re-triggering workflows; used
// by the create_event workflow action to avoid trigger recursion.
type FollowUpAppender interface {
	AppendFollowUp(ctx context.Context, tenantID string, in domain.NewEventInput) (domain.Event, error)
}

// Notifier delivers a rendered workflow notification.
type Notifier interface {
	Send(ctx context.Context, subject, body string) error
}

// VerificationJobStore tracks background chain verification jobs. Injected
// so it can be swapped for a persistent or distributed store.
type VerificationJobStore interface {
	Set(jobID, tenantID string)
	Get(jobID string) (*domain.VerificationJob, bool)
	Update(jobID string, status domain.VerificationJobStatus, report *domain.ChainReport, errMsg string)
}
