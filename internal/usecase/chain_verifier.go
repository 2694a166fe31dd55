package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hspiira/timeline-sub001/internal/domain"
	"github.com/hspiira/timeline-sub001/internal/infra/crypto"
)

// ChainVerifier recomputes event hashes and chain links from stored data.
// Divergences become structured checks in the report, never errors: a
// corrupted chain is a finding, not a failure of the verifier.
type ChainVerifier struct {
	Events   EventRepository
	Subjects SubjectRepository
	Hasher   *crypto.EventHasher
	Clock    Clock
	Log      *slog.Logger

	// MaxEvents caps how many events one run inspects; 0 means no cap.
	MaxEvents int
	// Timeout bounds one run's wall clock; 0 means no budget.
	Timeout time.Duration
}

func NewChainVerifier(events EventRepository, subjects SubjectRepository, hasher *crypto.EventHasher, clock Clock, log *slog.Logger, maxEvents int, timeout time.Duration) *ChainVerifier {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	if log == nil {
		log = slog.Default()
	}
	return &ChainVerifier{
		Events:    events,
		Subjects:  subjects,
		Hasher:    hasher,
		Clock:     clock,
		Log:       log,
		MaxEvents: maxEvents,
		Timeout:   timeout,
	}
}

// VerifySubject checks one subject's chain front to back.
func (v *ChainVerifier) VerifySubject(ctx context.Context, tenantID, subjectID string) (*domain.ChainReport, error) {
	if _, err := v.Subjects.GetByIDAndTenant(ctx, subjectID, tenantID); err != nil {
		return nil, err
	}
	report := &domain.ChainReport{
		TenantID:   tenantID,
		SubjectID:  subjectID,
		ChainValid: true,
	}
	deadline := v.runDeadline()
	if err := v.verifyChain(ctx, tenantID, subjectID, report, deadline); err != nil {
		return nil, err
	}
	report.VerifiedAt = v.Clock().UTC()
	return report, nil
}

// VerifyTenant checks every subject chain of the tenant, aggregated into
// one report. The event ceiling and time budget span the whole run.
func (v *ChainVerifier) VerifyTenant(ctx context.Context, tenantID string) (*domain.ChainReport, error) {
	report := &domain.ChainReport{
		TenantID:   tenantID,
		ChainValid: true,
	}
	deadline := v.runDeadline()

	offset := 0
	const subjectPage = 100
	for !report.Truncated {
		subjects, err := v.Subjects.ListByTenant(ctx, tenantID, offset, subjectPage)
		if err != nil {
			return nil, fmt.Errorf("list subjects for tenant %s: %w", tenantID, err)
		}
		if len(subjects) == 0 {
			break
		}
		offset += len(subjects)
		for _, subject := range subjects {
			if err := v.verifyChain(ctx, tenantID, subject.ID, report, deadline); err != nil {
				return nil, err
			}
			if report.Truncated {
				break
			}
		}
	}
	report.VerifiedAt = v.Clock().UTC()
	return report, nil
}

func (v *ChainVerifier) runDeadline() time.Time {
	if v.Timeout <= 0 {
		return time.Time{}
	}
	return v.Clock().Add(v.Timeout)
}

func (v *ChainVerifier) budgetExhausted(report *domain.ChainReport, deadline time.Time) bool {
	if v.MaxEvents > 0 && report.TotalEvents >= v.MaxEvents {
		return true
	}
	if !deadline.IsZero() && v.Clock().After(deadline) {
		return true
	}
	return false
}

// verifyChain walks one subject's stream in creation order, appending
// per-event checks to the shared report.
func (v *ChainVerifier) verifyChain(ctx context.Context, tenantID, subjectID string, report *domain.ChainReport, deadline time.Time) error {
	events, err := v.Events.ListBySubject(ctx, tenantID, subjectID, nil)
	if err != nil {
		return fmt.Errorf("load events for subject %s: %w", subjectID, err)
	}

	prevHash := ""
	for i, event := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		if v.budgetExhausted(report, deadline) {
			report.Truncated = true
			return nil
		}

		check := domain.EventCheck{
			SubjectID:    subjectID,
			EventID:      event.ID,
			EventType:    event.EventType,
			EventTime:    event.EventTime,
			Sequence:     i,
			Valid:        true,
			PreviousHash: event.PreviousHash,
		}

		switch {
		case i == 0 && event.PreviousHash != "":
			check.Valid = false
			check.ErrorType = domain.CheckGenesisError
			check.ErrorMessage = "first event of the chain carries a previous hash"
		case i > 0 && event.PreviousHash != prevHash:
			check.Valid = false
			check.ErrorType = domain.CheckChainBreak
			check.ErrorMessage = fmt.Sprintf("previous_hash does not match hash of event at sequence %d", i-1)
			check.ExpectedHash = prevHash
			check.ActualHash = event.PreviousHash
		case len(event.Hash) != v.Hasher.Algorithm().HexLen():
			check.Valid = false
			check.ErrorType = domain.CheckAlgMismatch
			check.ErrorMessage = fmt.Sprintf("stored hash length %d does not match algorithm %s",
				len(event.Hash), v.Hasher.Algorithm().Name())
			check.ActualHash = event.Hash
		default:
			expected, herr := v.Hasher.ComputeHash(event.SubjectID, event.EventType, event.SchemaVersion, event.EventTime, event.Payload, event.PreviousHash)
			if herr != nil {
				check.Valid = false
				check.ErrorType = domain.CheckHashMismatch
				check.ErrorMessage = fmt.Sprintf("hash recomputation failed: %v", herr)
			} else if expected != event.Hash {
				check.Valid = false
				check.ErrorType = domain.CheckHashMismatch
				check.ErrorMessage = "stored hash does not match recomputed hash"
				check.ExpectedHash = expected
				check.ActualHash = event.Hash
			}
		}

		report.TotalEvents++
		if check.Valid {
			report.ValidEvents++
		} else {
			report.InvalidEvents++
			report.ChainValid = false
			report.Checks = append(report.Checks, check)
		}
		prevHash = event.Hash
	}
	return nil
}
