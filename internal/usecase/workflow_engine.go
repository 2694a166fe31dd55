package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/hspiira/timeline-sub001/internal/domain"
)

// WorkflowEngine reacts to appended events: it matches active workflow
// definitions, evaluates trigger conditions, enforces the daily cap and
// executes action lists, recording one WorkflowExecution per firing.
// Workflows are compensations and notifications, never ledger mutations:
// nothing here can fail the append that triggered it.
type WorkflowEngine struct {
	Workflows  WorkflowRepository
	Executions WorkflowExecutionRepository
	Tasks      TaskRepository
	Appender   FollowUpAppender
	Notify     Notifier
	Templates  *TemplateRegistry
	Clock      Clock
	Log        *slog.Logger

	// DefaultDailyCap applies to workflows that set no cap of their own;
	// zero leaves them uncapped.
	DefaultDailyCap int
}

func NewWorkflowEngine(workflows WorkflowRepository, executions WorkflowExecutionRepository, tasks TaskRepository, appender FollowUpAppender, notify Notifier, templates *TemplateRegistry, clock Clock, log *slog.Logger) *WorkflowEngine {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	if log == nil {
		log = slog.Default()
	}
	if templates == nil {
		templates = DefaultTemplates()
	}
	return &WorkflowEngine{
		Workflows:  workflows,
		Executions: executions,
		Tasks:      tasks,
		Appender:   appender,
		Notify:     notify,
		Templates:  templates,
		Clock:      clock,
		Log:        log,
	}
}

// OnEventAppended runs every matching workflow for the event. Errors are
// recorded on the execution rows and logged; none propagate.
func (e *WorkflowEngine) OnEventAppended(ctx context.Context, event domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			e.Log.Error("workflow engine panic recovered",
				"event_id", event.ID, "event_type", event.EventType, "panic", r)
		}
	}()

	candidates, err := e.Workflows.ListActiveByTrigger(ctx, event.TenantID, event.EventType)
	if err != nil {
		e.Log.Error("workflow lookup failed", "event_id", event.ID, "error", err)
		return
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].ExecutionOrder != candidates[j].ExecutionOrder {
			return candidates[i].ExecutionOrder < candidates[j].ExecutionOrder
		}
		return candidates[i].ID < candidates[j].ID
	})

	for _, wf := range candidates {
		if !e.conditionsMatch(wf, event) {
			continue
		}
		capped, err := e.dailyCapReached(ctx, wf)
		if err != nil {
			e.Log.Error("workflow rate check failed", "workflow_id", wf.ID, "error", err)
			continue
		}
		if capped {
			// Skip without recording an attempt; the cap counts real
			// executions only.
			e.Log.Info("workflow daily cap reached, skipping",
				"workflow_id", wf.ID, "event_id", event.ID)
			continue
		}
		e.execute(ctx, wf, event)
	}
}

// conditionsMatch evaluates the trigger-condition conjunction against the
// event payload. Condition keys take the form "payload.<field>"; any other
// shape fails closed.
func (e *WorkflowEngine) conditionsMatch(wf domain.Workflow, event domain.Event) bool {
	for key, want := range wf.TriggerConditions {
		field, ok := payloadField(key)
		if !ok {
			e.Log.Warn("unknown trigger condition key, failing closed",
				"workflow_id", wf.ID, "key", key)
			return false
		}
		got, present := event.Payload[field]
		if !present || !looselyEqual(got, want) {
			return false
		}
	}
	return true
}

func payloadField(key string) (string, bool) {
	const prefix = "payload."
	if len(key) > len(prefix) && key[:len(prefix)] == prefix {
		return key[len(prefix):], true
	}
	return "", false
}

// dailyCapReached counts executions started in the current UTC calendar
// day against MaxExecutionsPerDay.
func (e *WorkflowEngine) dailyCapReached(ctx context.Context, wf domain.Workflow) (bool, error) {
	limit := e.DefaultDailyCap
	if wf.MaxExecutionsPerDay != nil {
		limit = *wf.MaxExecutionsPerDay
	}
	if limit <= 0 {
		return false, nil
	}
	now := e.Clock().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	count, err := e.Executions.CountInWindow(ctx, wf.TenantID, wf.ID, dayStart, dayStart.Add(24*time.Hour))
	if err != nil {
		return false, err
	}
	return count >= int64(limit), nil
}

// execute runs the action list in order. Each action is attempted
// independently: a failing action is logged on the execution and the loop
// continues. The execution row is persisted once, in its final state;
// the store keeps workflow_execution append-only.
func (e *WorkflowEngine) execute(ctx context.Context, wf domain.Workflow, event domain.Event) {
	exec := domain.WorkflowExecution{
		TenantID:             wf.TenantID,
		WorkflowID:           wf.ID,
		TriggeredByEventID:   event.ID,
		TriggeredBySubjectID: event.SubjectID,
		Status:               domain.ExecutionPending,
		StartedAt:            e.Clock().UTC(),
	}
	exec.Status = domain.ExecutionRunning

	func() {
		defer func() {
			if r := recover(); r != nil {
				exec.Status = domain.ExecutionFailed
				exec.ErrorMessage = fmt.Sprintf("workflow run aborted: %v", r)
			}
		}()
		for _, action := range wf.Actions {
			outcome := e.runAction(ctx, wf, event, action)
			exec.ExecutionLog = append(exec.ExecutionLog, outcome)
			switch outcome.Status {
			case "success":
				exec.ActionsExecuted++
			case "failed":
				exec.ActionsFailed++
			}
		}
		exec.Status = domain.ExecutionCompleted
	}()

	exec.CompletedAt = e.Clock().UTC()
	if _, err := e.Executions.Create(ctx, exec); err != nil {
		e.Log.Error("workflow execution record failed",
			"workflow_id", wf.ID, "event_id", event.ID, "error", err)
	}
}

// runAction dispatches over the closed action set. Unknown kinds are
// recorded per-action failures, not crashes.
func (e *WorkflowEngine) runAction(ctx context.Context, wf domain.Workflow, event domain.Event, action domain.WorkflowAction) domain.ActionOutcome {
	switch action.Type {
	case domain.ActionCreateEvent:
		return e.runCreateEvent(ctx, wf, event, action)
	case domain.ActionCreateTask:
		return e.runCreateTask(ctx, wf, event, action)
	case domain.ActionSendNotification:
		return e.runSendNotification(ctx, event, action)
	default:
		return domain.ActionOutcome{
			Action: action.Type,
			Status: "failed",
			Error:  fmt.Sprintf("unknown action type %q", action.Type),
		}
	}
}

func (e *WorkflowEngine) runCreateEvent(ctx context.Context, wf domain.Workflow, event domain.Event, action domain.WorkflowAction) domain.ActionOutcome {
	if e.Appender == nil {
		return domain.ActionOutcome{Action: action.Type, Status: "failed", Error: "event appender not configured"}
	}
	eventType, _ := action.Params["event_type"].(string)
	if eventType == "" {
		return domain.ActionOutcome{Action: action.Type, Status: "failed", Error: "params.event_type is required"}
	}
	payload, _ := action.Params["payload"].(map[string]any)
	version := 0
	if raw, ok := asFloat(action.Params["schema_version"]); ok {
		version = int(raw)
	}
	created, err := e.Appender.AppendFollowUp(ctx, wf.TenantID, domain.NewEventInput{
		SubjectID:     event.SubjectID,
		EventType:     eventType,
		SchemaVersion: version,
		EventTime:     e.Clock().UTC(),
		Payload:       payload,
	})
	if err != nil {
		return domain.ActionOutcome{Action: action.Type, Status: "failed", Error: err.Error()}
	}
	return domain.ActionOutcome{Action: action.Type, Status: "success", Detail: created.ID}
}

func (e *WorkflowEngine) runCreateTask(ctx context.Context, wf domain.Workflow, event domain.Event, action domain.WorkflowAction) domain.ActionOutcome {
	if e.Tasks == nil {
		return domain.ActionOutcome{Action: action.Type, Status: "failed", Error: "task repository not configured"}
	}
	title, _ := action.Params["title"].(string)
	if title == "" {
		return domain.ActionOutcome{Action: action.Type, Status: "failed", Error: "params.title is required"}
	}
	description, _ := action.Params["description"].(string)
	task, err := e.Tasks.Create(ctx, domain.Task{
		TenantID:    wf.TenantID,
		SubjectID:   event.SubjectID,
		Title:       title,
		Description: description,
		Status:      "open",
	})
	if err != nil {
		return domain.ActionOutcome{Action: action.Type, Status: "failed", Error: err.Error()}
	}
	return domain.ActionOutcome{Action: action.Type, Status: "success", Detail: task.ID}
}

func (e *WorkflowEngine) runSendNotification(ctx context.Context, event domain.Event, action domain.WorkflowAction) domain.ActionOutcome {
	if e.Notify == nil {
		return domain.ActionOutcome{Action: action.Type, Status: "failed", Error: "notifier not configured"}
	}
	templateKey, _ := action.Params["template"].(string)
	if templateKey == "" {
		return domain.ActionOutcome{Action: action.Type, Status: "failed", Error: "params.template is required"}
	}
	data, _ := action.Params["data"].(map[string]any)
	subject, body, err := e.Templates.Render(templateKey, event, data)
	if err != nil {
		return domain.ActionOutcome{Action: action.Type, Status: "failed", Error: err.Error()}
	}
	if err := e.Notify.Send(ctx, subject, body); err != nil {
		return domain.ActionOutcome{Action: action.Type, Status: "failed", Error: err.Error()}
	}
	return domain.ActionOutcome{Action: action.Type, Status: "success", Detail: templateKey}
}

var _ WorkflowTrigger = (*WorkflowEngine)(nil)
