package usecase

import (
	"context"
	"testing"

	"github.com/hspiira/timeline-sub001/internal/domain"
)

func newAdminFixture() (*AdminService, *schemaRepoStub, *schemaCacheStub) {
	tenants := newTenantRepoStub("t1")
	subjects := &subjectRepoStub{}
	schemas := &schemaRepoStub{}
	rules := newRuleRepoStub()
	workflows := &workflowRepoStub{}
	payloads := &payloadValidatorStub{}
	cache := newSchemaCacheStub()
	validator := NewSchemaValidator(schemas, payloads, cache, 0, nil)
	svc := NewAdminService(tenants, subjects, schemas, rules, workflows, payloads, validator, nil)
	return svc, schemas, cache
}

func TestAdminService_RegisterSchemaAssignsNextVersion(t *testing.T) {
	svc, schemas, _ := newAdminFixture()
	schemas.addActive("t1", "lab_result", 1)

	created, err := svc.RegisterSchema(context.Background(), domain.EventSchema{
		TenantID:   "t1",
		EventType:  "lab_result",
		Definition: map[string]any{"type": "object"},
	})
	if err != nil {
		t.Fatalf("register schema: %v", err)
	}
	if created.Version != 2 {
		t.Fatalf("expected version 2, got %d", created.Version)
	}
}

func TestAdminService_RegisterSchemaRejectsBrokenDefinition(t *testing.T) {
	tenants := newTenantRepoStub("t1")
	schemas := &schemaRepoStub{}
	payloads := &payloadValidatorStub{defBroken: true}
	svc := NewAdminService(tenants, &subjectRepoStub{}, schemas, newRuleRepoStub(), &workflowRepoStub{}, payloads, nil, nil)

	_, err := svc.RegisterSchema(context.Background(), domain.EventSchema{
		TenantID:   "t1",
		EventType:  "lab_result",
		Definition: map[string]any{"type": 12345},
	})
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAdminService_RegisterSchemaUnknownTenant(t *testing.T) {
	svc, _, _ := newAdminFixture()
	_, err := svc.RegisterSchema(context.Background(), domain.EventSchema{
		TenantID:   "nope",
		EventType:  "lab_result",
		Definition: map[string]any{"type": "object"},
	})
	if !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAdminService_ActivateSchemaSwapsActiveAndPurgesCache(t *testing.T) {
	svc, schemas, cache := newAdminFixture()
	schemas.addActive("t1", "lab_result", 1)
	schemas.schemas = append(schemas.schemas, domain.EventSchema{
		ID: "sch-2", TenantID: "t1", EventType: "lab_result", Version: 2,
		Definition: map[string]any{"type": "object"},
	})
	cache.entries[SchemaCacheKey("t1", "lab_result", 0)] = schemas.schemas[0]

	activated, err := svc.ActivateSchema(context.Background(), "t1", "lab_result", 2)
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if !activated.IsActive || activated.Version != 2 {
		t.Fatalf("unexpected activation result %+v", activated)
	}
	if schemas.schemas[0].IsActive {
		t.Fatal("previous version must be deactivated")
	}
	if _, ok := cache.entries[SchemaCacheKey("t1", "lab_result", 0)]; ok {
		t.Fatal("active-slot cache entry must be purged")
	}
}

func TestAdminService_ActivateSchemaPurgesDeactivatedVersion(t *testing.T) {
	svc, schemas, cache := newAdminFixture()
	schemas.addActive("t1", "lab_result", 1)
	schemas.schemas = append(schemas.schemas, domain.EventSchema{
		ID: "sch-2", TenantID: "t1", EventType: "lab_result", Version: 2,
		Definition: map[string]any{"type": "object"},
	})

	// Warm the explicit-version entry the way an append pinning v1 would.
	if _, err := svc.Validator.Validate(context.Background(), "t1", "patient", "lab_result", 1, nil); err != nil {
		t.Fatalf("warm cache: %v", err)
	}
	if _, ok := cache.entries[SchemaCacheKey("t1", "lab_result", 1)]; !ok {
		t.Fatal("expected the v1 entry to be cached")
	}

	if _, err := svc.ActivateSchema(context.Background(), "t1", "lab_result", 2); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if _, ok := cache.entries[SchemaCacheKey("t1", "lab_result", 1)]; ok {
		t.Fatal("the deactivated version's cache entry must be purged")
	}
	_, err := svc.Validator.Validate(context.Background(), "t1", "patient", "lab_result", 1, nil)
	if !domain.IsValidation(err) {
		t.Fatalf("pinning the deactivated version must fail after activation, got %v", err)
	}
}

func TestAdminService_RuleChecks(t *testing.T) {
	svc, _, _ := newAdminFixture()
	ctx := context.Background()

	if _, err := svc.CreateRule(ctx, domain.TransitionRule{TenantID: "t1"}); !domain.IsValidation(err) {
		t.Fatalf("empty event type must be rejected, got %v", err)
	}

	_, err := svc.CreateRule(ctx, domain.TransitionRule{
		TenantID:  "t1",
		EventType: "discharge",
		PriorEventPayloadConditions: map[string]map[string]any{
			"admission": {"ward": "icu"},
		},
	})
	if !domain.IsValidation(err) {
		t.Fatalf("condition on unrequired prior type must be rejected, got %v", err)
	}

	rule, err := svc.CreateRule(ctx, domain.TransitionRule{
		TenantID:                "t1",
		EventType:               "discharge",
		RequiredPriorEventTypes: []string{"admission"},
		PriorEventPayloadConditions: map[string]map[string]any{
			"admission": {"ward": "icu"},
		},
	})
	if err != nil {
		t.Fatalf("valid rule rejected: %v", err)
	}

	if _, err := svc.CreateRule(ctx, rule); !domain.IsConflict(err) {
		t.Fatalf("duplicate rule must conflict, got %v", err)
	}
}

func TestAdminService_WorkflowChecks(t *testing.T) {
	svc, _, _ := newAdminFixture()
	ctx := context.Background()
	zero := 0

	cases := []struct {
		name string
		wf   domain.Workflow
	}{
		{"missing trigger", domain.Workflow{TenantID: "t1", Actions: []domain.WorkflowAction{{Type: domain.ActionCreateTask}}}},
		{"no actions", domain.Workflow{TenantID: "t1", TriggerEventType: "x"}},
		{"unknown action", domain.Workflow{TenantID: "t1", TriggerEventType: "x",
			Actions: []domain.WorkflowAction{{Type: "page_oncall"}}}},
		{"bad condition key", domain.Workflow{TenantID: "t1", TriggerEventType: "x",
			TriggerConditions: map[string]any{"status": "done"},
			Actions:           []domain.WorkflowAction{{Type: domain.ActionCreateTask}}}},
		{"zero cap", domain.Workflow{TenantID: "t1", TriggerEventType: "x",
			MaxExecutionsPerDay: &zero,
			Actions:             []domain.WorkflowAction{{Type: domain.ActionCreateTask}}}},
	}
	for _, tc := range cases {
		if _, err := svc.CreateWorkflow(ctx, tc.wf); !domain.IsValidation(err) {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
	}

	valid := domain.Workflow{
		TenantID:          "t1",
		TriggerEventType:  "visit_completed",
		TriggerConditions: map[string]any{"payload.status": "no_show"},
		Actions:           []domain.WorkflowAction{{Type: domain.ActionSendNotification, Params: map[string]any{"template": "generic"}}},
	}
	if _, err := svc.CreateWorkflow(ctx, valid); err != nil {
		t.Fatalf("valid workflow rejected: %v", err)
	}
}
