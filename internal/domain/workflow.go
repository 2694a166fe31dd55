package domain

import "time"

type WorkflowExecutionStatus string

const (
	ExecutionPending   WorkflowExecutionStatus = "pending"
	ExecutionRunning   WorkflowExecutionStatus = "running"
	ExecutionCompleted WorkflowExecutionStatus = "completed"
	ExecutionFailed    WorkflowExecutionStatus = "failed"
)

// Action kinds form a closed set; unknown kinds are recorded as per-action
// failures by the engine, never crashes.
const (
	ActionCreateEvent      = "create_event"
	ActionCreateTask       = "create_task"
	ActionSendNotification = "send_notification"
)

// Workflow is a trigger-condition-action automation definition. Lower
// ExecutionOrder runs first; ties break on ID for determinism.
type Workflow struct {
	ID               string
	TenantID         string
	Name             string
	Description      string
	IsActive         bool
	TriggerEventType string
	// TriggerConditions is a conjunction of payload field comparisons,
	// keyed "payload.<field>". Unknown key shapes fail closed.
	TriggerConditions   map[string]any
	Actions             []WorkflowAction
	MaxExecutionsPerDay *int
	ExecutionOrder      int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

type WorkflowAction struct {
	Type   string         `json:"type"`
	Params map[string]any `json:"params,omitempty"`
}

// WorkflowExecution is the append-only audit record of one firing.
type WorkflowExecution struct {
	ID                   string
	TenantID             string
	WorkflowID           string
	TriggeredByEventID   string
	TriggeredBySubjectID string
	Status               WorkflowExecutionStatus
	StartedAt            time.Time
	CompletedAt          time.Time
	ActionsExecuted      int
	ActionsFailed        int
	ExecutionLog         []ActionOutcome
	ErrorMessage         string
}

// ActionOutcome is one entry of the ordered execution log.
type ActionOutcome struct {
	Action string `json:"action"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// Task is the row created by the create_task workflow action.
type Task struct {
	ID          string
	TenantID    string
	SubjectID   string
	Title       string
	Description string
	Status      string
	DueAt       *time.Time
	CreatedAt   time.Time
}
