package domain

import "time"

type Tenant struct {
	ID        string
	Name      string
	IsActive  bool
	CreatedAt time.Time
}

// Subject is a tracked entity whose history is an append-only event stream.
// SubjectType is immutable after creation; Attributes are free-form metadata
// owned by the administrative surface.
type Subject struct {
	ID          string
	TenantID    string
	SubjectType string
	ExternalRef string
	DisplayName string
	Attributes  map[string]any
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
