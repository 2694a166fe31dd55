package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hspiira/timeline-sub001/internal/domain"
)

// AdminService handles the configuration surfaces: schemas, transition
// rules, workflow definitions and subjects. Writes here shape future
// appends but never touch the ledger itself.
type AdminService struct {
	Tenants   TenantRepository
	Subjects  SubjectRepository
	Schemas   SchemaAdminRepository
	Rules     TransitionRuleAdminRepository
	Workflows WorkflowRepository
	Payloads  PayloadValidator
	Validator *SchemaValidator
	Log       *slog.Logger
}

func NewAdminService(tenants TenantRepository, subjects SubjectRepository, schemas SchemaAdminRepository, rules TransitionRuleAdminRepository, workflows WorkflowRepository, payloads PayloadValidator, validator *SchemaValidator, log *slog.Logger) *AdminService {
	if log == nil {
		log = slog.Default()
	}
	return &AdminService{
		Tenants:   tenants,
		Subjects:  subjects,
		Schemas:   schemas,
		Rules:     rules,
		Workflows: workflows,
		Payloads:  payloads,
		Validator: validator,
		Log:       log,
	}
}

// CreateSubject registers a subject under the tenant.
func (a *AdminService) CreateSubject(ctx context.Context, subject domain.Subject) (domain.Subject, error) {
	if _, err := a.Tenants.GetByID(ctx, subject.TenantID); err != nil {
		return domain.Subject{}, err
	}
	if strings.TrimSpace(subject.SubjectType) == "" {
		return domain.Subject{}, domain.NewValidationError("subject", "subject_type is required")
	}
	return a.Subjects.Create(ctx, subject)
}

// RegisterSchema stores a new schema version for (tenant, event type). The
// storage layer assigns the next version number; the definition must
// compile before it is accepted.
func (a *AdminService) RegisterSchema(ctx context.Context, schema domain.EventSchema) (domain.EventSchema, error) {
	if _, err := a.Tenants.GetByID(ctx, schema.TenantID); err != nil {
		return domain.EventSchema{}, err
	}
	if strings.TrimSpace(schema.EventType) == "" {
		return domain.EventSchema{}, domain.NewValidationError("schema", "event_type is required")
	}
	if len(schema.Definition) == 0 {
		return domain.EventSchema{}, domain.NewValidationError("schema", "definition is required")
	}
	if err := a.Payloads.CheckDefinition(schema.Definition); err != nil {
		return domain.EventSchema{}, domain.NewValidationError("schema",
			fmt.Sprintf("definition does not compile: %v", err))
	}
	created, err := a.Schemas.Create(ctx, schema)
	if err != nil {
		return domain.EventSchema{}, err
	}
	a.invalidateSchema(ctx, created.TenantID, created.EventType, created.Version)
	return created, nil
}

// ActivateSchema flips the active version for (tenant, event type) and
// purges the stale cache entries: the activated version, the active-version
// slot, and the version that just lost active status. Without the last one
// a cached copy of the old version keeps claiming IsActive until its TTL.
func (a *AdminService) ActivateSchema(ctx context.Context, tenantID, eventType string, version int) (*domain.EventSchema, error) {
	activated, deactivated, err := a.Schemas.Activate(ctx, tenantID, eventType, version)
	if err != nil {
		return nil, err
	}
	a.invalidateSchema(ctx, tenantID, eventType, version)
	if deactivated > 0 && deactivated != version {
		a.invalidateSchema(ctx, tenantID, eventType, deactivated)
	}
	return activated, nil
}

func (a *AdminService) ListSchemas(ctx context.Context, tenantID, eventType string) ([]domain.EventSchema, error) {
	return a.Schemas.ListByType(ctx, tenantID, eventType)
}

func (a *AdminService) invalidateSchema(ctx context.Context, tenantID, eventType string, version int) {
	if a.Validator == nil {
		return
	}
	a.Validator.InvalidateSchema(ctx, tenantID, eventType, version)
}

// CreateRule stores the transition rule for an event type. One rule per
// (tenant, event type); the storage layer reports duplicates as conflicts.
func (a *AdminService) CreateRule(ctx context.Context, rule domain.TransitionRule) (domain.TransitionRule, error) {
	if err := a.checkRule(rule); err != nil {
		return domain.TransitionRule{}, err
	}
	return a.Rules.Create(ctx, rule)
}

func (a *AdminService) UpdateRule(ctx context.Context, rule domain.TransitionRule) (domain.TransitionRule, error) {
	if err := a.checkRule(rule); err != nil {
		return domain.TransitionRule{}, err
	}
	return a.Rules.Update(ctx, rule)
}

func (a *AdminService) ListRules(ctx context.Context, tenantID string) ([]domain.TransitionRule, error) {
	return a.Rules.ListByTenant(ctx, tenantID)
}

func (a *AdminService) checkRule(rule domain.TransitionRule) error {
	if strings.TrimSpace(rule.EventType) == "" {
		return domain.NewValidationError("transition_rule", "event_type is required")
	}
	if rule.MaxOccurrencesPerStream != nil && *rule.MaxOccurrencesPerStream < 1 {
		return domain.NewValidationError("transition_rule", "max_occurrences_per_stream must be at least 1")
	}
	required := make(map[string]bool, len(rule.RequiredPriorEventTypes))
	for _, t := range rule.RequiredPriorEventTypes {
		if strings.TrimSpace(t) == "" {
			return domain.NewValidationError("transition_rule", "required prior event types must be non-empty")
		}
		required[t] = true
	}
	// Payload conditions attach to prior types the rule actually requires;
	// a condition on an unrequired type would never be evaluated.
	for priorType := range rule.PriorEventPayloadConditions {
		if !required[priorType] {
			return domain.NewValidationError("transition_rule",
				fmt.Sprintf("payload condition references %q which is not a required prior event type", priorType))
		}
	}
	return nil
}

// CreateWorkflow stores a workflow definition after checking its trigger
// and action list.
func (a *AdminService) CreateWorkflow(ctx context.Context, wf domain.Workflow) (domain.Workflow, error) {
	if err := a.checkWorkflow(wf); err != nil {
		return domain.Workflow{}, err
	}
	return a.Workflows.Create(ctx, wf)
}

func (a *AdminService) UpdateWorkflow(ctx context.Context, wf domain.Workflow) (domain.Workflow, error) {
	if err := a.checkWorkflow(wf); err != nil {
		return domain.Workflow{}, err
	}
	return a.Workflows.Update(ctx, wf)
}

func (a *AdminService) GetWorkflow(ctx context.Context, workflowID, tenantID string) (*domain.Workflow, error) {
	return a.Workflows.GetByIDAndTenant(ctx, workflowID, tenantID)
}

func (a *AdminService) ListWorkflows(ctx context.Context, tenantID string) ([]domain.Workflow, error) {
	return a.Workflows.ListByTenant(ctx, tenantID)
}

func (a *AdminService) checkWorkflow(wf domain.Workflow) error {
	if strings.TrimSpace(wf.TriggerEventType) == "" {
		return domain.NewValidationError("workflow", "trigger_event_type is required")
	}
	if len(wf.Actions) == 0 {
		return domain.NewValidationError("workflow", "at least one action is required")
	}
	for i, action := range wf.Actions {
		switch action.Type {
		case domain.ActionCreateEvent, domain.ActionCreateTask, domain.ActionSendNotification:
		default:
			return domain.NewValidationError("workflow",
				fmt.Sprintf("actions[%d]: unknown action type %q", i, action.Type))
		}
	}
	for key := range wf.TriggerConditions {
		if _, ok := payloadField(key); !ok {
			return domain.NewValidationError("workflow",
				fmt.Sprintf("trigger condition key %q must be of the form payload.<field>", key))
		}
	}
	if wf.MaxExecutionsPerDay != nil && *wf.MaxExecutionsPerDay < 1 {
		return domain.NewValidationError("workflow", "max_executions_per_day must be at least 1")
	}
	return nil
}
