package domain

import "time"

// Event is one immutable fact in a subject's stream. Seq is the 1-based
// position in the stream; ordered by Seq the events form a singly linked
// hash chain where PreviousHash of event n equals Hash of event n-1, and
// the first event's PreviousHash is empty.
type Event struct {
	ID            string
	TenantID      string
	SubjectID     string
	EventType     string
	SchemaVersion int
	EventTime     time.Time
	Payload       map[string]any
	PreviousHash  string
	Hash          string
	Seq           int64
	CreatedAt     time.Time
}

// NewEventInput carries the caller-supplied fields for one append.
// SchemaVersion 0 means "resolve the active schema version".
type NewEventInput struct {
	SubjectID     string
	EventType     string
	SchemaVersion int
	EventTime     time.Time
	Payload       map[string]any
}

// EventSchema is a versioned JSON Schema for (tenant, event type). At most
// one version per pair is active at a time; superseded versions remain for
// historical replay. AllowedSubjectTypes, when non-empty, restricts which
// subject types may emit this event type.
type EventSchema struct {
	ID                  string
	TenantID            string
	EventType           string
	Version             int
	Definition          map[string]any
	IsActive            bool
	AllowedSubjectTypes []string
	CreatedAt           time.Time
}

// TransitionRule gates whether an event type may be appended to a stream.
// At most one rule per (tenant, event type); all fields other than
// RequiredPriorEventTypes are optional.
type TransitionRule struct {
	ID                      string
	TenantID                string
	EventType               string
	RequiredPriorEventTypes []string
	// PriorEventPayloadConditions maps a required prior event type to
	// field constraints its freshest occurrence must satisfy. The value
	// PresenceMarker asserts the field exists; anything else is an
	// equality check.
	PriorEventPayloadConditions map[string]map[string]any
	MaxOccurrencesPerStream     *int
	FreshPriorEventType         string
	Description                 string
	CreatedAt                   time.Time
	UpdatedAt                   time.Time
}

// PresenceMarker in a payload condition asserts the field is present with
// any value, rather than equal to a literal.
const PresenceMarker = "$present"
