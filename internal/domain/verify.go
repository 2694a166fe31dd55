package domain

import "time"

// Chain verification error kinds. Structured results, not errors, so a
// verification job reports every divergence instead of stopping at the first.
const (
	CheckHashMismatch = "HASH_MISMATCH"
	CheckAlgMismatch  = "ALG_MISMATCH"
	CheckGenesisError = "GENESIS_ERROR"
	CheckChainBreak   = "CHAIN_BREAK"
)

// EventCheck is the verification outcome for a single event.
type EventCheck struct {
	SubjectID    string    `json:"subject_id"`
	EventID      string    `json:"event_id"`
	EventType    string    `json:"event_type"`
	EventTime    time.Time `json:"event_time"`
	Sequence     int       `json:"sequence"`
	Valid        bool      `json:"valid"`
	ErrorType    string    `json:"error_type,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	ExpectedHash string    `json:"expected_hash,omitempty"`
	ActualHash   string    `json:"actual_hash,omitempty"`
	PreviousHash string    `json:"previous_hash,omitempty"`
}

// ChainReport is the result of verifying one subject chain or all chains
// of a tenant. Truncated is set when the max-event ceiling or wall-clock
// budget stopped the scan before all events were checked.
type ChainReport struct {
	TenantID      string       `json:"tenant_id"`
	SubjectID     string       `json:"subject_id,omitempty"`
	TotalEvents   int          `json:"total_events"`
	ValidEvents   int          `json:"valid_events"`
	InvalidEvents int          `json:"invalid_events"`
	ChainValid    bool         `json:"chain_valid"`
	Truncated     bool         `json:"truncated"`
	VerifiedAt    time.Time    `json:"verified_at"`
	Checks        []EventCheck `json:"checks"`
}

type VerificationJobStatus string

const (
	JobPending   VerificationJobStatus = "pending"
	JobRunning   VerificationJobStatus = "running"
	JobCompleted VerificationJobStatus = "completed"
	JobFailed    VerificationJobStatus = "failed"
)

// VerificationJob tracks one background chain verification run.
type VerificationJob struct {
	ID        string
	TenantID  string
	Status    VerificationJobStatus
	Report    *ChainReport
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
