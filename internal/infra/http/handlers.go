package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hspiira/timeline-sub001/internal/domain"
)

type TenantStore interface {
	Create(ctx context.Context, tenant domain.Tenant) (domain.Tenant, error)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type createTenantRequest struct {
	Name string `json:"name"`
}

type createSubjectRequest struct {
	SubjectType string         `json:"subject_type"`
	ExternalRef string         `json:"external_ref,omitempty"`
	DisplayName string         `json:"display_name,omitempty"`
	Attributes  map[string]any `json:"attributes,omitempty"`
}

type subjectResponse struct {
	ID          string         `json:"id"`
	TenantID    string         `json:"tenant_id"`
	SubjectType string         `json:"subject_type"`
	ExternalRef string         `json:"external_ref,omitempty"`
	DisplayName string         `json:"display_name,omitempty"`
	Attributes  map[string]any `json:"attributes,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

type appendEventRequest struct {
	SubjectID     string         `json:"subject_id"`
	EventType     string         `json:"event_type"`
	SchemaVersion int            `json:"schema_version,omitempty"`
	EventTime     *time.Time     `json:"event_time,omitempty"`
	Payload       map[string]any `json:"payload,omitempty"`
}

type appendEventsRequest struct {
	Events           []appendEventRequest `json:"events"`
	TriggerWorkflows bool                 `json:"trigger_workflows"`
}

type eventResponse struct {
	ID            string         `json:"id"`
	TenantID      string         `json:"tenant_id"`
	SubjectID     string         `json:"subject_id"`
	EventType     string         `json:"event_type"`
	SchemaVersion int            `json:"schema_version"`
	EventTime     time.Time      `json:"event_time"`
	Payload       map[string]any `json:"payload"`
	PreviousHash  string         `json:"previous_hash,omitempty"`
	Hash          string         `json:"hash"`
	Seq           int64          `json:"seq"`
	CreatedAt     time.Time      `json:"created_at"`
}

type stateResponse struct {
	SubjectID   string         `json:"subject_id"`
	State       map[string]any `json:"state"`
	LastEventID string         `json:"last_event_id,omitempty"`
	EventCount  int            `json:"event_count"`
	AsOf        *time.Time     `json:"as_of,omitempty"`
}

type snapshotResponse struct {
	SubjectID            string    `json:"subject_id"`
	SnapshotAtEventID    string    `json:"snapshot_at_event_id"`
	EventCountAtSnapshot int       `json:"event_count_at_snapshot"`
	CreatedAt            time.Time `json:"created_at"`
}

type registerSchemaRequest struct {
	EventType           string         `json:"event_type"`
	Definition          map[string]any `json:"definition"`
	AllowedSubjectTypes []string       `json:"allowed_subject_types,omitempty"`
}

type schemaResponse struct {
	ID                  string         `json:"id"`
	EventType           string         `json:"event_type"`
	Version             int            `json:"version"`
	Definition          map[string]any `json:"definition"`
	IsActive            bool           `json:"is_active"`
	AllowedSubjectTypes []string       `json:"allowed_subject_types,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
}

type ruleRequest struct {
	EventType                   string                    `json:"event_type"`
	RequiredPriorEventTypes     []string                  `json:"required_prior_event_types,omitempty"`
	PriorEventPayloadConditions map[string]map[string]any `json:"prior_event_payload_conditions,omitempty"`
	MaxOccurrencesPerStream     *int                      `json:"max_occurrences_per_stream,omitempty"`
	FreshPriorEventType         string                    `json:"fresh_prior_event_type,omitempty"`
	Description                 string                    `json:"description,omitempty"`
}

type ruleResponse struct {
	ID                          string                    `json:"id"`
	EventType                   string                    `json:"event_type"`
	RequiredPriorEventTypes     []string                  `json:"required_prior_event_types,omitempty"`
	PriorEventPayloadConditions map[string]map[string]any `json:"prior_event_payload_conditions,omitempty"`
	MaxOccurrencesPerStream     *int                      `json:"max_occurrences_per_stream,omitempty"`
	FreshPriorEventType         string                    `json:"fresh_prior_event_type,omitempty"`
	Description                 string                    `json:"description,omitempty"`
	CreatedAt                   time.Time                 `json:"created_at"`
	UpdatedAt                   time.Time                 `json:"updated_at"`
}

type workflowRequest struct {
	Name                string                  `json:"name"`
	Description         string                  `json:"description,omitempty"`
	IsActive            *bool                   `json:"is_active,omitempty"`
	TriggerEventType    string                  `json:"trigger_event_type"`
	TriggerConditions   map[string]any          `json:"trigger_conditions,omitempty"`
	Actions             []domain.WorkflowAction `json:"actions"`
	MaxExecutionsPerDay *int                    `json:"max_executions_per_day,omitempty"`
	ExecutionOrder      int                     `json:"execution_order,omitempty"`
}

type workflowResponse struct {
	ID                  string                  `json:"id"`
	Name                string                  `json:"name"`
	Description         string                  `json:"description,omitempty"`
	IsActive            bool                    `json:"is_active"`
	TriggerEventType    string                  `json:"trigger_event_type"`
	TriggerConditions   map[string]any          `json:"trigger_conditions,omitempty"`
	Actions             []domain.WorkflowAction `json:"actions"`
	MaxExecutionsPerDay *int                    `json:"max_executions_per_day,omitempty"`
	ExecutionOrder      int                     `json:"execution_order"`
	CreatedAt           time.Time               `json:"created_at"`
	UpdatedAt           time.Time               `json:"updated_at"`
}

type executionResponse struct {
	ID                   string                 `json:"id"`
	WorkflowID           string                 `json:"workflow_id"`
	TriggeredByEventID   string                 `json:"triggered_by_event_id"`
	TriggeredBySubjectID string                 `json:"triggered_by_subject_id"`
	Status               string                 `json:"status"`
	StartedAt            time.Time              `json:"started_at"`
	CompletedAt          time.Time              `json:"completed_at"`
	ActionsExecuted      int                    `json:"actions_executed"`
	ActionsFailed        int                    `json:"actions_failed"`
	ExecutionLog         []domain.ActionOutcome `json:"execution_log,omitempty"`
	ErrorMessage         string                 `json:"error_message,omitempty"`
}

type startVerifyJobRequest struct {
	SubjectID string `json:"subject_id,omitempty"`
}

type verifyJobResponse struct {
	JobID     string              `json:"job_id"`
	Status    string              `json:"status"`
	Report    *domain.ChainReport `json:"report,omitempty"`
	Error     string              `json:"error,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

func (s *Server) handleCreateTenant(c *gin.Context) {
	if !s.requireAccess(c, "tenants.write", "") {
		return
	}
	if s.tenants == nil {
		writeError(c, domain.ErrStoreClosed)
		return
	}
	var req createTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	if req.Name == "" {
		writeErrorCode(c, http.StatusBadRequest, "VALIDATION_FAILED", "name is required")
		return
	}
	tenant, err := s.tenants.Create(c.Request.Context(), domain.Tenant{Name: req.Name, IsActive: true})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"tenant_id": tenant.ID, "name": tenant.Name})
}

func (s *Server) handleCreateSubject(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	if !s.requireAccess(c, "subjects.write", tenantID) {
		return
	}
	if s.admin == nil {
		writeError(c, domain.ErrStoreClosed)
		return
	}
	var req createSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	subject, err := s.admin.CreateSubject(c.Request.Context(), domain.Subject{
		TenantID:    tenantID,
		SubjectType: req.SubjectType,
		ExternalRef: req.ExternalRef,
		DisplayName: req.DisplayName,
		Attributes:  req.Attributes,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, buildSubjectResponse(subject))
}

func (s *Server) handleListSubjects(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	if !s.requireAccess(c, "subjects.read", tenantID) {
		return
	}
	if s.subjects == nil {
		writeError(c, domain.ErrStoreClosed)
		return
	}
	offset, limit := pagination(c)
	subjects, err := s.subjects.ListByTenant(c.Request.Context(), tenantID, offset, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]subjectResponse, 0, len(subjects))
	for _, subject := range subjects {
		out = append(out, buildSubjectResponse(subject))
	}
	c.JSON(http.StatusOK, gin.H{"subjects": out})
}

func (s *Server) handleAppendEvent(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	if !s.requireAccess(c, "events.append", tenantID) {
		return
	}
	if s.ledger == nil {
		writeError(c, domain.ErrStoreClosed)
		return
	}
	var req appendEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	event, err := s.ledger.AppendEvent(c.Request.Context(), tenantID, buildEventInput(req))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, buildEventResponse(event))
}

func (s *Server) handleAppendEvents(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	if !s.requireAccess(c, "events.append", tenantID) {
		return
	}
	if s.ledger == nil {
		writeError(c, domain.ErrStoreClosed)
		return
	}
	var req appendEventsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	if len(req.Events) == 0 {
		writeErrorCode(c, http.StatusBadRequest, "VALIDATION_FAILED", "events is required")
		return
	}
	ins := make([]domain.NewEventInput, 0, len(req.Events))
	for _, in := range req.Events {
		ins = append(ins, buildEventInput(in))
	}
	created, err := s.ledger.AppendEvents(c.Request.Context(), tenantID, ins, req.TriggerWorkflows)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]eventResponse, 0, len(created))
	for _, event := range created {
		out = append(out, buildEventResponse(event))
	}
	c.JSON(http.StatusCreated, gin.H{"events": out})
}

func (s *Server) handleGetEvent(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	if !s.requireAccess(c, "events.read", tenantID) {
		return
	}
	if s.events == nil {
		writeError(c, domain.ErrStoreClosed)
		return
	}
	event, err := s.events.GetByIDAndTenant(c.Request.Context(), c.Param("event_id"), tenantID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildEventResponse(*event))
}

func (s *Server) handleListEvents(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	if !s.requireAccess(c, "events.read", tenantID) {
		return
	}
	if s.events == nil {
		writeError(c, domain.ErrStoreClosed)
		return
	}
	offset, limit := pagination(c)
	events, err := s.events.ListByTenant(c.Request.Context(), tenantID, offset, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]eventResponse, 0, len(events))
	for _, event := range events {
		out = append(out, buildEventResponse(event))
	}
	c.JSON(http.StatusOK, gin.H{"events": out})
}

func (s *Server) handleListSubjectEvents(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	if !s.requireAccess(c, "events.read", tenantID) {
		return
	}
	if s.events == nil {
		writeError(c, domain.ErrStoreClosed)
		return
	}
	asOf, ok := parseAsOf(c)
	if !ok {
		return
	}
	events, err := s.events.ListBySubject(c.Request.Context(), tenantID, c.Param("subject_id"), asOf)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]eventResponse, 0, len(events))
	for _, event := range events {
		out = append(out, buildEventResponse(event))
	}
	c.JSON(http.StatusOK, gin.H{"events": out})
}

func (s *Server) handleGetState(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	if !s.requireAccess(c, "state.read", tenantID) {
		return
	}
	if s.state == nil {
		writeError(c, domain.ErrStoreClosed)
		return
	}
	asOf, ok := parseAsOf(c)
	if !ok {
		return
	}
	subjectID := c.Param("subject_id")
	result, err := s.state.GetState(c.Request.Context(), tenantID, subjectID, asOf)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stateResponse{
		SubjectID:   subjectID,
		State:       result.State,
		LastEventID: result.LastEventID,
		EventCount:  result.EventCount,
		AsOf:        asOf,
	})
}

func (s *Server) handleCreateSnapshot(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	if !s.requireAccess(c, "snapshots.write", tenantID) {
		return
	}
	if s.snapshots == nil {
		writeError(c, domain.ErrStoreClosed)
		return
	}
	snap, err := s.snapshots.CreateSnapshot(c.Request.Context(), tenantID, c.Param("subject_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, snapshotResponse{
		SubjectID:            snap.SubjectID,
		SnapshotAtEventID:    snap.SnapshotAtEventID,
		EventCountAtSnapshot: snap.EventCountAtSnapshot,
		CreatedAt:            snap.CreatedAt,
	})
}

func (s *Server) handleRunSnapshotJob(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	if !s.requireAccess(c, "snapshots.write", tenantID) {
		return
	}
	if s.snapshots == nil {
		writeError(c, domain.ErrStoreClosed)
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeErrorCode(c, http.StatusBadRequest, "VALIDATION_FAILED", "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}
	result, err := s.snapshots.RunSnapshotJob(c.Request.Context(), tenantID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"tenant_id":          result.TenantID,
		"subjects_processed": result.SubjectsProcessed,
		"snapshots_written":  result.SnapshotsWritten,
		"skipped_no_events":  result.SkippedNoEvents,
		"error_count":        result.ErrorCount,
		"error_subject_ids":  result.ErrorSubjectIDs,
	})
}

func (s *Server) handleVerifySubject(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	if !s.requireAccess(c, "verify.run", tenantID) {
		return
	}
	if s.verifier == nil {
		writeError(c, domain.ErrStoreClosed)
		return
	}
	report, err := s.verifier.VerifySubject(c.Request.Context(), tenantID, c.Param("subject_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleStartVerifyJob(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	if !s.requireAccess(c, "verify.run", tenantID) {
		return
	}
	if s.verifyJobs == nil {
		writeError(c, domain.ErrStoreClosed)
		return
	}
	var req startVerifyJobRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
			return
		}
	}
	jobID := s.verifyJobs.Start(s.jobCtx, tenantID, req.SubjectID)
	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID})
}

func (s *Server) handleGetVerifyJob(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	if !s.requireAccess(c, "verify.read", tenantID) {
		return
	}
	if s.verifyJobs == nil {
		writeError(c, domain.ErrStoreClosed)
		return
	}
	job, err := s.verifyJobs.Get(c.Param("job_id"), tenantID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, verifyJobResponse{
		JobID:     job.ID,
		Status:    string(job.Status),
		Report:    job.Report,
		Error:     job.Error,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	})
}

func (s *Server) handleRegisterSchema(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	if !s.requireAccess(c, "schemas.write", tenantID) {
		return
	}
	if s.admin == nil {
		writeError(c, domain.ErrStoreClosed)
		return
	}
	var req registerSchemaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	schema, err := s.admin.RegisterSchema(c.Request.Context(), domain.EventSchema{
		TenantID:            tenantID,
		EventType:           req.EventType,
		Definition:          req.Definition,
		AllowedSubjectTypes: req.AllowedSubjectTypes,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, buildSchemaResponse(schema))
}

func (s *Server) handleActivateSchema(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	if !s.requireAccess(c, "schemas.write", tenantID) {
		return
	}
	if s.admin == nil {
		writeError(c, domain.ErrStoreClosed)
		return
	}
	version, err := strconv.Atoi(c.Param("version"))
	if err != nil || version < 1 {
		writeErrorCode(c, http.StatusBadRequest, "VALIDATION_FAILED", "version must be a positive integer")
		return
	}
	schema, err := s.admin.ActivateSchema(c.Request.Context(), tenantID, c.Param("event_type"), version)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildSchemaResponse(*schema))
}

func (s *Server) handleListSchemas(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	if !s.requireAccess(c, "schemas.read", tenantID) {
		return
	}
	if s.admin == nil {
		writeError(c, domain.ErrStoreClosed)
		return
	}
	schemas, err := s.admin.ListSchemas(c.Request.Context(), tenantID, c.Param("event_type"))
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]schemaResponse, 0, len(schemas))
	for _, schema := range schemas {
		out = append(out, buildSchemaResponse(schema))
	}
	c.JSON(http.StatusOK, gin.H{"schemas": out})
}

func (s *Server) handleCreateRule(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	if !s.requireAccess(c, "rules.write", tenantID) {
		return
	}
	if s.admin == nil {
		writeError(c, domain.ErrStoreClosed)
		return
	}
	var req ruleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	rule, err := s.admin.CreateRule(c.Request.Context(), buildRule(tenantID, req.EventType, req))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, buildRuleResponse(rule))
}

func (s *Server) handleUpdateRule(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	if !s.requireAccess(c, "rules.write", tenantID) {
		return
	}
	if s.admin == nil {
		writeError(c, domain.ErrStoreClosed)
		return
	}
	var req ruleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	rule, err := s.admin.UpdateRule(c.Request.Context(), buildRule(tenantID, c.Param("event_type"), req))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildRuleResponse(rule))
}

func (s *Server) handleListRules(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	if !s.requireAccess(c, "rules.read", tenantID) {
		return
	}
	if s.admin == nil {
		writeError(c, domain.ErrStoreClosed)
		return
	}
	rules, err := s.admin.ListRules(c.Request.Context(), tenantID)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]ruleResponse, 0, len(rules))
	for _, rule := range rules {
		out = append(out, buildRuleResponse(rule))
	}
	c.JSON(http.StatusOK, gin.H{"rules": out})
}

func (s *Server) handleCreateWorkflow(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	if !s.requireAccess(c, "workflows.write", tenantID) {
		return
	}
	if s.admin == nil {
		writeError(c, domain.ErrStoreClosed)
		return
	}
	var req workflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	wf, err := s.admin.CreateWorkflow(c.Request.Context(), buildWorkflow(tenantID, "", req))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, buildWorkflowResponse(wf))
}

func (s *Server) handleUpdateWorkflow(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	if !s.requireAccess(c, "workflows.write", tenantID) {
		return
	}
	if s.admin == nil {
		writeError(c, domain.ErrStoreClosed)
		return
	}
	var req workflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	wf, err := s.admin.UpdateWorkflow(c.Request.Context(), buildWorkflow(tenantID, c.Param("workflow_id"), req))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildWorkflowResponse(wf))
}

func (s *Server) handleGetWorkflow(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	if !s.requireAccess(c, "workflows.read", tenantID) {
		return
	}
	if s.admin == nil {
		writeError(c, domain.ErrStoreClosed)
		return
	}
	wf, err := s.admin.GetWorkflow(c.Request.Context(), c.Param("workflow_id"), tenantID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildWorkflowResponse(*wf))
}

func (s *Server) handleListWorkflows(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	if !s.requireAccess(c, "workflows.read", tenantID) {
		return
	}
	if s.admin == nil {
		writeError(c, domain.ErrStoreClosed)
		return
	}
	workflows, err := s.admin.ListWorkflows(c.Request.Context(), tenantID)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]workflowResponse, 0, len(workflows))
	for _, wf := range workflows {
		out = append(out, buildWorkflowResponse(wf))
	}
	c.JSON(http.StatusOK, gin.H{"workflows": out})
}

func (s *Server) handleListExecutions(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	if !s.requireAccess(c, "workflows.read", tenantID) {
		return
	}
	if s.executions == nil {
		writeError(c, domain.ErrStoreClosed)
		return
	}
	offset, limit := pagination(c)
	executions, err := s.executions.ListByWorkflow(c.Request.Context(), tenantID, c.Param("workflow_id"), offset, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]executionResponse, 0, len(executions))
	for _, exec := range executions {
		out = append(out, executionResponse{
			ID:                   exec.ID,
			WorkflowID:           exec.WorkflowID,
			TriggeredByEventID:   exec.TriggeredByEventID,
			TriggeredBySubjectID: exec.TriggeredBySubjectID,
			Status:               string(exec.Status),
			StartedAt:            exec.StartedAt,
			CompletedAt:          exec.CompletedAt,
			ActionsExecuted:      exec.ActionsExecuted,
			ActionsFailed:        exec.ActionsFailed,
			ExecutionLog:         exec.ExecutionLog,
			ErrorMessage:         exec.ErrorMessage,
		})
	}
	c.JSON(http.StatusOK, gin.H{"executions": out})
}

func buildEventInput(req appendEventRequest) domain.NewEventInput {
	in := domain.NewEventInput{
		SubjectID:     req.SubjectID,
		EventType:     req.EventType,
		SchemaVersion: req.SchemaVersion,
		Payload:       req.Payload,
	}
	if req.EventTime != nil {
		in.EventTime = req.EventTime.UTC()
	}
	return in
}

func buildEventResponse(event domain.Event) eventResponse {
	return eventResponse{
		ID:            event.ID,
		TenantID:      event.TenantID,
		SubjectID:     event.SubjectID,
		EventType:     event.EventType,
		SchemaVersion: event.SchemaVersion,
		EventTime:     event.EventTime,
		Payload:       event.Payload,
		PreviousHash:  event.PreviousHash,
		Hash:          event.Hash,
		Seq:           event.Seq,
		CreatedAt:     event.CreatedAt,
	}
}

func buildSubjectResponse(subject domain.Subject) subjectResponse {
	return subjectResponse{
		ID:          subject.ID,
		TenantID:    subject.TenantID,
		SubjectType: subject.SubjectType,
		ExternalRef: subject.ExternalRef,
		DisplayName: subject.DisplayName,
		Attributes:  subject.Attributes,
		CreatedAt:   subject.CreatedAt,
	}
}

func buildSchemaResponse(schema domain.EventSchema) schemaResponse {
	return schemaResponse{
		ID:                  schema.ID,
		EventType:           schema.EventType,
		Version:             schema.Version,
		Definition:          schema.Definition,
		IsActive:            schema.IsActive,
		AllowedSubjectTypes: schema.AllowedSubjectTypes,
		CreatedAt:           schema.CreatedAt,
	}
}

func buildRule(tenantID, eventType string, req ruleRequest) domain.TransitionRule {
	if eventType == "" {
		eventType = req.EventType
	}
	return domain.TransitionRule{
		TenantID:                    tenantID,
		EventType:                   eventType,
		RequiredPriorEventTypes:     req.RequiredPriorEventTypes,
		PriorEventPayloadConditions: req.PriorEventPayloadConditions,
		MaxOccurrencesPerStream:     req.MaxOccurrencesPerStream,
		FreshPriorEventType:         req.FreshPriorEventType,
		Description:                 req.Description,
	}
}

func buildRuleResponse(rule domain.TransitionRule) ruleResponse {
	return ruleResponse{
		ID:                          rule.ID,
		EventType:                   rule.EventType,
		RequiredPriorEventTypes:     rule.RequiredPriorEventTypes,
		PriorEventPayloadConditions: rule.PriorEventPayloadConditions,
		MaxOccurrencesPerStream:     rule.MaxOccurrencesPerStream,
		FreshPriorEventType:         rule.FreshPriorEventType,
		Description:                 rule.Description,
		CreatedAt:                   rule.CreatedAt,
		UpdatedAt:                   rule.UpdatedAt,
	}
}

func buildWorkflow(tenantID, workflowID string, req workflowRequest) domain.Workflow {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return domain.Workflow{
		ID:                  workflowID,
		TenantID:            tenantID,
		Name:                req.Name,
		Description:         req.Description,
		IsActive:            active,
		TriggerEventType:    req.TriggerEventType,
		TriggerConditions:   req.TriggerConditions,
		Actions:             req.Actions,
		MaxExecutionsPerDay: req.MaxExecutionsPerDay,
		ExecutionOrder:      req.ExecutionOrder,
	}
}

func buildWorkflowResponse(wf domain.Workflow) workflowResponse {
	return workflowResponse{
		ID:                  wf.ID,
		Name:                wf.Name,
		Description:         wf.Description,
		IsActive:            wf.IsActive,
		TriggerEventType:    wf.TriggerEventType,
		TriggerConditions:   wf.TriggerConditions,
		Actions:             wf.Actions,
		MaxExecutionsPerDay: wf.MaxExecutionsPerDay,
		ExecutionOrder:      wf.ExecutionOrder,
		CreatedAt:           wf.CreatedAt,
		UpdatedAt:           wf.UpdatedAt,
	}
}

func pagination(c *gin.Context) (int, int) {
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	return offset, limit
}

func parseAsOf(c *gin.Context) (*time.Time, bool) {
	raw := c.Query("as_of")
	if raw == "" {
		return nil, true
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		writeErrorCode(c, http.StatusBadRequest, "VALIDATION_FAILED", "as_of must be RFC 3339")
		return nil, false
	}
	utc := parsed.UTC()
	return &utc, true
}

func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case domain.IsValidation(err):
		status, code = http.StatusBadRequest, "VALIDATION_FAILED"
	case domain.IsNotFound(err):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case domain.IsConflict(err):
		status, code = http.StatusConflict, "CONFLICT"
	case domain.IsIntegrity(err):
		status, code = http.StatusInternalServerError, "INTEGRITY_VIOLATION"
	case errors.Is(err, domain.ErrStoreClosed):
		status, code = http.StatusServiceUnavailable, "UNAVAILABLE"
	case errors.Is(err, domain.ErrUnauthorized):
		status, code = http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, domain.ErrForbidden):
		status, code = http.StatusForbidden, "FORBIDDEN"
	}
	writeErrorCode(c, status, code, err.Error())
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{
		Code:    code,
		Message: message,
	})
}
