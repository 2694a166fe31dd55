package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrStoreClosed  = errors.New("store unavailable")
)

// ValidationError rejects an append or admin write. Clause names the rule
// or check that failed (e.g. "schema", "required_prior", "max_occurrences").
type ValidationError struct {
	Clause  string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed (%s): %s: %s", e.Clause, e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed (%s): %s", e.Clause, e.Message)
}

func NewValidationError(clause, message string) *ValidationError {
	return &ValidationError{Clause: clause, Message: message}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// NotFoundError reports an absent subject, tenant, schema, rule or workflow.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// ConflictError reports a duplicate-assignment style collision, e.g. a
// transition rule that already exists for an event type.
type ConflictError struct {
	Resource string
	Detail   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s conflict: %s", e.Resource, e.Detail)
}

func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IntegrityError surfaces an attempted mutation of an immutable row. The
// storage triggers raise integrity_constraint_violation; repositories wrap
// that as this type so callers see a hard failure, not a silent no-op.
type IntegrityError struct {
	Table  string
	Detail string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity violation on %s: %s", e.Table, e.Detail)
}

func IsIntegrity(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}
