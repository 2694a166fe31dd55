package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/hspiira/timeline-sub001/internal/domain"
)

// TransitionValidator checks structural preconditions against a subject's
// existing event stream before a new event is chained. Rules are opt-in:
// no rule for the event type means the append passes trivially.
type TransitionValidator struct {
	Rules  TransitionRuleRepository
	Events EventRepository
}

func NewTransitionValidator(rules TransitionRuleRepository, events EventRepository) *TransitionValidator {
	return &TransitionValidator{Rules: rules, Events: events}
}

// Validate applies the transition rule for (tenant, eventType), if any, to
// the subject's stream. Any failing clause rejects the whole append with a
// single ValidationError naming the clause.
func (v *TransitionValidator) Validate(ctx context.Context, tenantID, subjectID, eventType string, payload map[string]any) error {
	return v.ValidateWithPending(ctx, tenantID, subjectID, eventType, payload, nil)
}

// ValidateWithPending validates against the persisted stream extended by
// pending events that will persist in the same transaction. Bulk appends
// thread each accepted batch item back in as pending, so occurrence caps
// and prior requirements hold across a whole batch, not just against the
// pre-batch stream.
func (v *TransitionValidator) ValidateWithPending(ctx context.Context, tenantID, subjectID, eventType string, payload map[string]any, pending []domain.Event) error {
	rule, err := v.Rules.GetForEventType(ctx, tenantID, eventType)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil
		}
		return err
	}
	if rule == nil {
		return nil
	}

	stream, err := v.Events.ListBySubject(ctx, tenantID, subjectID, nil)
	if err != nil {
		return err
	}
	if len(pending) > 0 {
		var seq int64
		if len(stream) > 0 {
			seq = stream[len(stream)-1].Seq
		}
		stream = append(stream[:len(stream):len(stream)], pending...)
		for i := len(stream) - len(pending); i < len(stream); i++ {
			seq++
			stream[i].Seq = seq
		}
	}

	seen := make(map[string]bool, len(stream))
	for _, e := range stream {
		seen[e.EventType] = true
	}

	var missing []string
	for _, required := range rule.RequiredPriorEventTypes {
		if !seen[required] {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return &domain.ValidationError{
			Clause: "required_prior",
			Message: fmt.Sprintf("event type %q requires prior event type(s) %s for this subject",
				eventType, strings.Join(missing, ", ")),
		}
	}

	for priorType, conditions := range rule.PriorEventPayloadConditions {
		freshest := latestOfType(stream, priorType)
		if freshest == nil {
			// Conditions only attach to required priors; a missing one
			// is reported by the required_prior clause above, but a rule
			// can also condition a type it does not require.
			return &domain.ValidationError{
				Clause:  "prior_payload",
				Message: fmt.Sprintf("no prior %q event to evaluate payload conditions against", priorType),
			}
		}
		if err := checkPayloadConditions(priorType, freshest.Payload, conditions); err != nil {
			return err
		}
	}

	if rule.MaxOccurrencesPerStream != nil {
		count := 0
		for _, e := range stream {
			if e.EventType == eventType {
				count++
			}
		}
		if count >= *rule.MaxOccurrencesPerStream {
			return &domain.ValidationError{
				Clause: "max_occurrences",
				Message: fmt.Sprintf("event type %q may occur at most %d time(s) per subject; stream already has %d",
					eventType, *rule.MaxOccurrencesPerStream, count),
			}
		}
	}

	if rule.FreshPriorEventType != "" {
		if err := checkFreshness(stream, eventType, rule.FreshPriorEventType); err != nil {
			return err
		}
	}

	return nil
}

// checkFreshness enforces resubmission semantics: the incoming event acts
// on the latest occurrence of the fresh prior type. If an event of the
// incoming type already followed that occurrence, the prior fact is spent
// and the append is rejected as stale.
func checkFreshness(stream []domain.Event, eventType, freshType string) error {
	fresh := latestOfType(stream, freshType)
	if fresh == nil {
		return &domain.ValidationError{
			Clause:  "fresh_prior",
			Message: fmt.Sprintf("no prior %q event in stream", freshType),
		}
	}
	lastOwn := latestOfType(stream, eventType)
	if lastOwn != nil && lastOwn.Seq > fresh.Seq {
		return &domain.ValidationError{
			Clause: "fresh_prior",
			Message: fmt.Sprintf("latest %q already has a %q after it; a fresh %q is required",
				freshType, eventType, freshType),
		}
	}
	return nil
}

func checkPayloadConditions(priorType string, payload map[string]any, conditions map[string]any) error {
	for field, want := range conditions {
		got, present := payload[field]
		if want == domain.PresenceMarker {
			if !present {
				return &domain.ValidationError{
					Clause: "prior_payload",
					Field:  field,
					Message: fmt.Sprintf("latest %q event payload is missing required field %q",
						priorType, field),
				}
			}
			continue
		}
		if !present || !looselyEqual(got, want) {
			return &domain.ValidationError{
				Clause: "prior_payload",
				Field:  field,
				Message: fmt.Sprintf("latest %q event payload field %q does not match required value",
					priorType, field),
			}
		}
	}
	return nil
}

func latestOfType(stream []domain.Event, eventType string) *domain.Event {
	for i := len(stream) - 1; i >= 0; i-- {
		if stream[i].EventType == eventType {
			return &stream[i]
		}
	}
	return nil
}

// looselyEqual compares condition literals against decoded payload values.
// JSON numbers decode as float64; rule values stored as int must still
// match.
func looselyEqual(got, want any) bool {
	if got == want {
		return true
	}
	gf, gok := asFloat(got)
	wf, wok := asFloat(want)
	return gok && wok && gf == wf
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
