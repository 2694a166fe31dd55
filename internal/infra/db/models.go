package db

import "time"

type TenantModel struct {
	ID        string    `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"uniqueIndex;not null"`
	IsActive  bool      `gorm:"not null;default:true"`
	CreatedAt time.Time `gorm:"not null"`
}

func (TenantModel) TableName() string {
	return "tenants"
}

type SubjectModel struct {
	ID             string  `gorm:"type:uuid;primaryKey"`
	TenantID       string  `gorm:"type:uuid;index;uniqueIndex:idx_subjects_tenant_external_ref,priority:1;not null"`
	SubjectType    string  `gorm:"not null"`
	ExternalRef    *string `gorm:"uniqueIndex:idx_subjects_tenant_external_ref,priority:2"`
	DisplayName    string
	AttributesJSON []byte    `gorm:"type:jsonb"`
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

func (SubjectModel) TableName() string {
	return "subjects"
}

type EventModel struct {
	ID            string    `gorm:"type:uuid;primaryKey"`
	TenantID      string    `gorm:"type:uuid;index:idx_events_tenant;not null"`
	SubjectID     string    `gorm:"type:uuid;uniqueIndex:idx_events_subject_seq,priority:1;not null"`
	EventType     string    `gorm:"index;not null"`
	SchemaVersion int       `gorm:"not null"`
	EventTime     time.Time `gorm:"index;not null"`
	PayloadJSON   []byte    `gorm:"type:jsonb;not null"`
	PreviousHash  string    `gorm:"not null"`
	Hash          string    `gorm:"uniqueIndex;not null"`
	Seq           int64     `gorm:"uniqueIndex:idx_events_subject_seq,priority:2;not null"`
	CreatedAt     time.Time `gorm:"not null"`
}

func (EventModel) TableName() string {
	return "events"
}

// SubjectChainModel is the serialization point for appends: one row per
// subject stream, locked FOR UPDATE while the next link is computed.
type SubjectChainModel struct {
	TenantID      string `gorm:"type:uuid;primaryKey"`
	SubjectID     string `gorm:"type:uuid;primaryKey"`
	Seq           int64  `gorm:"not null"`
	HeadHash      string `gorm:"not null"`
	LastEventTime time.Time
}

func (SubjectChainModel) TableName() string {
	return "subject_chains"
}

type EventSchemaModel struct {
	ID                  string `gorm:"type:uuid;primaryKey"`
	TenantID            string `gorm:"type:uuid;uniqueIndex:idx_schemas_version,priority:1;not null"`
	EventType           string `gorm:"uniqueIndex:idx_schemas_version,priority:2;not null"`
	Version             int    `gorm:"uniqueIndex:idx_schemas_version,priority:3;not null"`
	DefinitionJSON      []byte `gorm:"type:jsonb;not null"`
	IsActive            bool   `gorm:"not null"`
	AllowedSubjectTypes []byte `gorm:"type:jsonb"`
	CreatedAt           time.Time `gorm:"not null"`
}

func (EventSchemaModel) TableName() string {
	return "event_schemas"
}

type TransitionRuleModel struct {
	ID                      string `gorm:"type:uuid;primaryKey"`
	TenantID                string `gorm:"type:uuid;uniqueIndex:idx_rules_event_type,priority:1;not null"`
	EventType               string `gorm:"uniqueIndex:idx_rules_event_type,priority:2;not null"`
	RequiredPriorTypesJSON  []byte `gorm:"type:jsonb"`
	PayloadConditionsJSON   []byte `gorm:"type:jsonb"`
	MaxOccurrencesPerStream *int
	FreshPriorEventType     string
	Description             string
	CreatedAt               time.Time `gorm:"not null"`
	UpdatedAt               time.Time `gorm:"not null"`
}

func (TransitionRuleModel) TableName() string {
	return "transition_rules"
}

type WorkflowModel struct {
	ID                  string `gorm:"type:uuid;primaryKey"`
	TenantID            string `gorm:"type:uuid;index;not null"`
	Name                string `gorm:"not null"`
	Description         string
	IsActive            bool   `gorm:"not null;default:true"`
	TriggerEventType    string `gorm:"index;not null"`
	TriggerConditionsJSON []byte `gorm:"type:jsonb"`
	ActionsJSON         []byte `gorm:"type:jsonb;not null"`
	MaxExecutionsPerDay *int
	ExecutionOrder      int       `gorm:"not null;default:0"`
	CreatedAt           time.Time `gorm:"not null"`
	UpdatedAt           time.Time `gorm:"not null"`
}

func (WorkflowModel) TableName() string {
	return "workflows"
}

type WorkflowExecutionModel struct {
	ID                   string    `gorm:"type:uuid;primaryKey"`
	TenantID             string    `gorm:"type:uuid;index;not null"`
	WorkflowID           string    `gorm:"type:uuid;index;not null"`
	TriggeredByEventID   string    `gorm:"type:uuid;not null"`
	TriggeredBySubjectID string    `gorm:"type:uuid;not null"`
	Status               string    `gorm:"not null"`
	StartedAt            time.Time `gorm:"index;not null"`
	CompletedAt          time.Time
	ActionsExecuted      int `gorm:"not null;default:0"`
	ActionsFailed        int `gorm:"not null;default:0"`
	ExecutionLogJSON     []byte `gorm:"type:jsonb"`
	ErrorMessage         string
}

func (WorkflowExecutionModel) TableName() string {
	return "workflow_executions"
}

type TaskModel struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	TenantID    string `gorm:"type:uuid;index;not null"`
	SubjectID   string `gorm:"type:uuid;index;not null"`
	Title       string `gorm:"not null"`
	Description string
	Status      string `gorm:"not null"`
	DueAt       *time.Time
	CreatedAt   time.Time `gorm:"not null"`
}

func (TaskModel) TableName() string {
	return "tasks"
}

type SubjectSnapshotModel struct {
	ID                   string `gorm:"type:uuid;primaryKey"`
	TenantID             string `gorm:"type:uuid;uniqueIndex:idx_snapshots_subject,priority:1;not null"`
	SubjectID            string `gorm:"type:uuid;uniqueIndex:idx_snapshots_subject,priority:2;not null"`
	SnapshotAtEventID    string `gorm:"type:uuid;not null"`
	StateJSON            []byte `gorm:"type:jsonb;not null"`
	EventCountAtSnapshot int    `gorm:"not null"`
	CreatedAt            time.Time `gorm:"not null"`
}

func (SubjectSnapshotModel) TableName() string {
	return "subject_snapshots"
}
