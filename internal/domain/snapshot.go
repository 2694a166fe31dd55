package domain

import "time"

// SubjectSnapshot is a replay checkpoint: the derived state after folding
// the stream up to SnapshotAtEventID. At most one per subject; replaced on
// refresh. Never a source of truth; full replay must reproduce it.
type SubjectSnapshot struct {
	ID                   string
	TenantID             string
	SubjectID            string
	SnapshotAtEventID    string
	State                map[string]any
	EventCountAtSnapshot int
	CreatedAt            time.Time
}

// StateResult is the outcome of deriving a subject's state.
type StateResult struct {
	State       map[string]any
	LastEventID string
	EventCount  int
}

// SnapshotRunResult summarizes one batch snapshot job over a tenant.
type SnapshotRunResult struct {
	TenantID           string
	SubjectsProcessed  int
	SnapshotsWritten   int
	SkippedNoEvents    int
	ErrorCount         int
	ErrorSubjectIDs    []string
}
