package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/hspiira/timeline-sub001/internal/domain"
	"github.com/hspiira/timeline-sub001/internal/infra/crypto"
)

// In-memory fakes shared by the usecase tests. They mimic the storage
// contracts closely enough for behavior tests: creation order, chain
// linking when a hasher is set, time-bounded listing.

type tenantRepoStub struct {
	tenants map[string]domain.Tenant
}

func newTenantRepoStub(ids ...string) *tenantRepoStub {
	s := &tenantRepoStub{tenants: make(map[string]domain.Tenant)}
	for _, id := range ids {
		s.tenants[id] = domain.Tenant{ID: id, Name: id}
	}
	return s
}

func (s *tenantRepoStub) GetByID(ctx context.Context, tenantID string) (*domain.Tenant, error) {
	t, ok := s.tenants[tenantID]
	if !ok {
		return nil, domain.NewNotFoundError("tenant", tenantID)
	}
	return &t, nil
}

type subjectRepoStub struct {
	subjects []domain.Subject
}

func (s *subjectRepoStub) add(id, tenantID, subjectType string) {
	s.subjects = append(s.subjects, domain.Subject{ID: id, TenantID: tenantID, SubjectType: subjectType})
}

func (s *subjectRepoStub) Create(ctx context.Context, subject domain.Subject) (domain.Subject, error) {
	if subject.ID == "" {
		subject.ID = fmt.Sprintf("subj-%d", len(s.subjects)+1)
	}
	s.subjects = append(s.subjects, subject)
	return subject, nil
}

func (s *subjectRepoStub) GetByIDAndTenant(ctx context.Context, subjectID, tenantID string) (*domain.Subject, error) {
	for _, subject := range s.subjects {
		if subject.ID == subjectID && subject.TenantID == tenantID {
			out := subject
			return &out, nil
		}
	}
	return nil, domain.NewNotFoundError("subject", subjectID)
}

func (s *subjectRepoStub) ListByTenant(ctx context.Context, tenantID string, offset, limit int) ([]domain.Subject, error) {
	var all []domain.Subject
	for _, subject := range s.subjects {
		if subject.TenantID == tenantID {
			all = append(all, subject)
		}
	}
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// eventRepoStub chains appended events per subject when hasher is set.
type eventRepoStub struct {
	events []domain.Event
	hasher *crypto.EventHasher
	seq    int64
}

func (s *eventRepoStub) Append(ctx context.Context, event domain.Event) (domain.Event, error) {
	s.seq++
	event.Seq = s.seq
	if event.ID == "" {
		event.ID = fmt.Sprintf("ev-%d", s.seq)
	}
	if s.hasher != nil {
		prev := ""
		for i := len(s.events) - 1; i >= 0; i-- {
			if s.events[i].TenantID == event.TenantID && s.events[i].SubjectID == event.SubjectID {
				prev = s.events[i].Hash
				break
			}
		}
		event.PreviousHash = prev
		hash, err := s.hasher.ComputeHash(event.SubjectID, event.EventType, event.SchemaVersion, event.EventTime, event.Payload, prev)
		if err != nil {
			return domain.Event{}, err
		}
		event.Hash = hash
	}
	s.events = append(s.events, event)
	return event, nil
}

func (s *eventRepoStub) AppendBatch(ctx context.Context, events []domain.Event) ([]domain.Event, error) {
	out := make([]domain.Event, 0, len(events))
	for _, event := range events {
		created, err := s.Append(ctx, event)
		if err != nil {
			return nil, err
		}
		out = append(out, created)
	}
	return out, nil
}

func (s *eventRepoStub) GetByIDAndTenant(ctx context.Context, eventID, tenantID string) (*domain.Event, error) {
	for _, event := range s.events {
		if event.ID == eventID && event.TenantID == tenantID {
			out := event
			return &out, nil
		}
	}
	return nil, domain.NewNotFoundError("event", eventID)
}

func (s *eventRepoStub) ListBySubject(ctx context.Context, tenantID, subjectID string, asOf *time.Time) ([]domain.Event, error) {
	var out []domain.Event
	for _, event := range s.events {
		if event.TenantID != tenantID || event.SubjectID != subjectID {
			continue
		}
		if asOf != nil && event.EventTime.After(*asOf) {
			continue
		}
		out = append(out, event)
	}
	return out, nil
}

func (s *eventRepoStub) ListBySubjectAfter(ctx context.Context, tenantID, subjectID, afterEventID string, asOf *time.Time) ([]domain.Event, error) {
	all, err := s.ListBySubject(ctx, tenantID, subjectID, asOf)
	if err != nil {
		return nil, err
	}
	for i, event := range all {
		if event.ID == afterEventID {
			return all[i+1:], nil
		}
	}
	return all, nil
}

func (s *eventRepoStub) ListByTenant(ctx context.Context, tenantID string, offset, limit int) ([]domain.Event, error) {
	var all []domain.Event
	for _, event := range s.events {
		if event.TenantID == tenantID {
			all = append(all, event)
		}
	}
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

type schemaRepoStub struct {
	schemas []domain.EventSchema
}

func (s *schemaRepoStub) addActive(tenantID, eventType string, version int, allowedSubjectTypes ...string) {
	s.schemas = append(s.schemas, domain.EventSchema{
		ID:                  fmt.Sprintf("sch-%d", len(s.schemas)+1),
		TenantID:            tenantID,
		EventType:           eventType,
		Version:             version,
		Definition:          map[string]any{"type": "object"},
		IsActive:            true,
		AllowedSubjectTypes: allowedSubjectTypes,
	})
}

func (s *schemaRepoStub) GetByVersion(ctx context.Context, tenantID, eventType string, version int) (*domain.EventSchema, error) {
	for _, schema := range s.schemas {
		if schema.TenantID == tenantID && schema.EventType == eventType && schema.Version == version {
			out := schema
			return &out, nil
		}
	}
	return nil, domain.NewNotFoundError("event schema", fmt.Sprintf("%s v%d", eventType, version))
}

func (s *schemaRepoStub) GetActive(ctx context.Context, tenantID, eventType string) (*domain.EventSchema, error) {
	for _, schema := range s.schemas {
		if schema.TenantID == tenantID && schema.EventType == eventType && schema.IsActive {
			out := schema
			return &out, nil
		}
	}
	return nil, domain.NewNotFoundError("event schema", eventType)
}

func (s *schemaRepoStub) Create(ctx context.Context, schema domain.EventSchema) (domain.EventSchema, error) {
	next := 1
	for _, existing := range s.schemas {
		if existing.TenantID == schema.TenantID && existing.EventType == schema.EventType && existing.Version >= next {
			next = existing.Version + 1
		}
	}
	schema.ID = fmt.Sprintf("sch-%d", len(s.schemas)+1)
	schema.Version = next
	s.schemas = append(s.schemas, schema)
	return schema, nil
}

func (s *schemaRepoStub) Activate(ctx context.Context, tenantID, eventType string, version int) (*domain.EventSchema, int, error) {
	var target *domain.EventSchema
	deactivated := 0
	for i := range s.schemas {
		schema := &s.schemas[i]
		if schema.TenantID != tenantID || schema.EventType != eventType {
			continue
		}
		if schema.IsActive && schema.Version != version {
			deactivated = schema.Version
		}
		schema.IsActive = schema.Version == version
		if schema.IsActive {
			target = schema
		}
	}
	if target == nil {
		return nil, 0, domain.NewNotFoundError("event schema", fmt.Sprintf("%s v%d", eventType, version))
	}
	out := *target
	return &out, deactivated, nil
}

func (s *schemaRepoStub) ListByType(ctx context.Context, tenantID, eventType string) ([]domain.EventSchema, error) {
	var out []domain.EventSchema
	for _, schema := range s.schemas {
		if schema.TenantID == tenantID && schema.EventType == eventType {
			out = append(out, schema)
		}
	}
	return out, nil
}

type ruleRepoStub struct {
	rules map[string]domain.TransitionRule
}

func newRuleRepoStub() *ruleRepoStub {
	return &ruleRepoStub{rules: make(map[string]domain.TransitionRule)}
}

func (s *ruleRepoStub) key(tenantID, eventType string) string {
	return tenantID + "/" + eventType
}

func (s *ruleRepoStub) GetForEventType(ctx context.Context, tenantID, eventType string) (*domain.TransitionRule, error) {
	rule, ok := s.rules[s.key(tenantID, eventType)]
	if !ok {
		return nil, domain.NewNotFoundError("transition rule", eventType)
	}
	out := rule
	return &out, nil
}

func (s *ruleRepoStub) Create(ctx context.Context, rule domain.TransitionRule) (domain.TransitionRule, error) {
	k := s.key(rule.TenantID, rule.EventType)
	if _, exists := s.rules[k]; exists {
		return domain.TransitionRule{}, &domain.ConflictError{Resource: "transition rule", Detail: rule.EventType}
	}
	rule.ID = fmt.Sprintf("rule-%d", len(s.rules)+1)
	s.rules[k] = rule
	return rule, nil
}

func (s *ruleRepoStub) Update(ctx context.Context, rule domain.TransitionRule) (domain.TransitionRule, error) {
	k := s.key(rule.TenantID, rule.EventType)
	if _, exists := s.rules[k]; !exists {
		return domain.TransitionRule{}, domain.NewNotFoundError("transition rule", rule.EventType)
	}
	s.rules[k] = rule
	return rule, nil
}

func (s *ruleRepoStub) ListByTenant(ctx context.Context, tenantID string) ([]domain.TransitionRule, error) {
	var out []domain.TransitionRule
	for _, rule := range s.rules {
		if rule.TenantID == tenantID {
			out = append(out, rule)
		}
	}
	return out, nil
}

type workflowRepoStub struct {
	workflows []domain.Workflow
}

func (s *workflowRepoStub) ListActiveByTrigger(ctx context.Context, tenantID, eventType string) ([]domain.Workflow, error) {
	var out []domain.Workflow
	for _, wf := range s.workflows {
		if wf.TenantID == tenantID && wf.IsActive && wf.TriggerEventType == eventType {
			out = append(out, wf)
		}
	}
	return out, nil
}

func (s *workflowRepoStub) Create(ctx context.Context, wf domain.Workflow) (domain.Workflow, error) {
	if wf.ID == "" {
		wf.ID = fmt.Sprintf("wf-%d", len(s.workflows)+1)
	}
	s.workflows = append(s.workflows, wf)
	return wf, nil
}

func (s *workflowRepoStub) Update(ctx context.Context, wf domain.Workflow) (domain.Workflow, error) {
	for i := range s.workflows {
		if s.workflows[i].ID == wf.ID && s.workflows[i].TenantID == wf.TenantID {
			s.workflows[i] = wf
			return wf, nil
		}
	}
	return domain.Workflow{}, domain.NewNotFoundError("workflow", wf.ID)
}

func (s *workflowRepoStub) GetByIDAndTenant(ctx context.Context, workflowID, tenantID string) (*domain.Workflow, error) {
	for _, wf := range s.workflows {
		if wf.ID == workflowID && wf.TenantID == tenantID {
			out := wf
			return &out, nil
		}
	}
	return nil, domain.NewNotFoundError("workflow", workflowID)
}

func (s *workflowRepoStub) ListByTenant(ctx context.Context, tenantID string) ([]domain.Workflow, error) {
	var out []domain.Workflow
	for _, wf := range s.workflows {
		if wf.TenantID == tenantID {
			out = append(out, wf)
		}
	}
	return out, nil
}

type executionRepoStub struct {
	executions []domain.WorkflowExecution
	createErr  error
}

func (s *executionRepoStub) Create(ctx context.Context, exec domain.WorkflowExecution) (domain.WorkflowExecution, error) {
	if s.createErr != nil {
		return domain.WorkflowExecution{}, s.createErr
	}
	exec.ID = fmt.Sprintf("exec-%d", len(s.executions)+1)
	s.executions = append(s.executions, exec)
	return exec, nil
}

func (s *executionRepoStub) CountInWindow(ctx context.Context, tenantID, workflowID string, from, to time.Time) (int64, error) {
	var n int64
	for _, exec := range s.executions {
		if exec.TenantID == tenantID && exec.WorkflowID == workflowID &&
			!exec.StartedAt.Before(from) && exec.StartedAt.Before(to) {
			n++
		}
	}
	return n, nil
}

func (s *executionRepoStub) ListByWorkflow(ctx context.Context, tenantID, workflowID string, offset, limit int) ([]domain.WorkflowExecution, error) {
	var out []domain.WorkflowExecution
	for _, exec := range s.executions {
		if exec.TenantID == tenantID && exec.WorkflowID == workflowID {
			out = append(out, exec)
		}
	}
	return out, nil
}

type taskRepoStub struct {
	tasks []domain.Task
}

func (s *taskRepoStub) Create(ctx context.Context, task domain.Task) (domain.Task, error) {
	task.ID = fmt.Sprintf("task-%d", len(s.tasks)+1)
	s.tasks = append(s.tasks, task)
	return task, nil
}

type snapshotRepoStub struct {
	snapshots map[string]domain.SubjectSnapshot
	getErr    error
}

func newSnapshotRepoStub() *snapshotRepoStub {
	return &snapshotRepoStub{snapshots: make(map[string]domain.SubjectSnapshot)}
}

func (s *snapshotRepoStub) GetBySubject(ctx context.Context, tenantID, subjectID string) (*domain.SubjectSnapshot, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	snap, ok := s.snapshots[tenantID+"/"+subjectID]
	if !ok {
		return nil, domain.NewNotFoundError("snapshot", subjectID)
	}
	out := snap
	return &out, nil
}

func (s *snapshotRepoStub) Upsert(ctx context.Context, snap domain.SubjectSnapshot) (domain.SubjectSnapshot, error) {
	if snap.ID == "" {
		snap.ID = fmt.Sprintf("snap-%d", len(s.snapshots)+1)
	}
	s.snapshots[snap.TenantID+"/"+snap.SubjectID] = snap
	return snap, nil
}

// payloadValidatorStub accepts everything unless failWith is set.
type payloadValidatorStub struct {
	failWith   error
	defBroken  bool
	validated  int
}

func (s *payloadValidatorStub) ValidatePayload(schema domain.EventSchema, payload map[string]any) error {
	s.validated++
	return s.failWith
}

func (s *payloadValidatorStub) CheckDefinition(definition map[string]any) error {
	if s.defBroken {
		return fmt.Errorf("definition does not compile")
	}
	return nil
}

type schemaCacheStub struct {
	entries map[string]domain.EventSchema
	getErr  error
	puts    int
	hits    int
}

func newSchemaCacheStub() *schemaCacheStub {
	return &schemaCacheStub{entries: make(map[string]domain.EventSchema)}
}

func (s *schemaCacheStub) Get(ctx context.Context, key string) (*domain.EventSchema, bool, error) {
	if s.getErr != nil {
		return nil, false, s.getErr
	}
	schema, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	s.hits++
	out := schema
	return &out, true, nil
}

func (s *schemaCacheStub) Put(ctx context.Context, key string, schema domain.EventSchema, ttl time.Duration) error {
	s.puts++
	s.entries[key] = schema
	return nil
}

func (s *schemaCacheStub) Delete(ctx context.Context, key string) error {
	delete(s.entries, key)
	return nil
}

type notifierStub struct {
	sent    []string
	sendErr error
}

func (s *notifierStub) Send(ctx context.Context, subject, body string) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, subject+"\n"+body)
	return nil
}

type appenderStub struct {
	appended []domain.NewEventInput
	err      error
}

func (s *appenderStub) AppendFollowUp(ctx context.Context, tenantID string, in domain.NewEventInput) (domain.Event, error) {
	if s.err != nil {
		return domain.Event{}, s.err
	}
	s.appended = append(s.appended, in)
	return domain.Event{ID: fmt.Sprintf("follow-%d", len(s.appended)), TenantID: tenantID, SubjectID: in.SubjectID, EventType: in.EventType}, nil
}

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}
