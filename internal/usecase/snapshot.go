package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hspiira/timeline-sub001/internal/domain"
)

const (
	snapshotJobPageSize     = 100
	snapshotJobDefaultLimit = 500
	snapshotJobMaxLimit     = 2000
	snapshotJobMaxErrorIDs  = 50
)

// SnapshotService writes replay checkpoints. Snapshots are derived data:
// losing one costs replay time, never correctness.
type SnapshotService struct {
	Events    EventRepository
	Subjects  SubjectRepository
	Snapshots SnapshotRepository
	State     *StateService
	Clock     Clock
	Log       *slog.Logger

	// JobDefaultLimit and JobMaxLimit bound how many subjects one
	// RunSnapshotJob call touches; zero values fall back to the package
	// defaults.
	JobDefaultLimit int
	JobMaxLimit     int
}

func NewSnapshotService(events EventRepository, subjects SubjectRepository, snapshots SnapshotRepository, state *StateService, clock Clock, log *slog.Logger) *SnapshotService {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	if log == nil {
		log = slog.Default()
	}
	return &SnapshotService{
		Events: events, Subjects: subjects, Snapshots: snapshots, State: state, Clock: clock, Log: log,
		JobDefaultLimit: snapshotJobDefaultLimit,
		JobMaxLimit:     snapshotJobMaxLimit,
	}
}

// CreateSnapshot folds the subject's full stream and replaces its stored
// snapshot. Subjects with no events are rejected; there is no state to
// checkpoint.
func (s *SnapshotService) CreateSnapshot(ctx context.Context, tenantID, subjectID string) (domain.SubjectSnapshot, error) {
	if _, err := s.Subjects.GetByIDAndTenant(ctx, subjectID, tenantID); err != nil {
		return domain.SubjectSnapshot{}, err
	}
	events, err := s.Events.ListBySubject(ctx, tenantID, subjectID, nil)
	if err != nil {
		return domain.SubjectSnapshot{}, fmt.Errorf("load events for subject %s: %w", subjectID, err)
	}
	if len(events) == 0 {
		return domain.SubjectSnapshot{}, domain.NewValidationError("snapshot",
			fmt.Sprintf("subject %s has no events to snapshot", subjectID))
	}
	result := s.State.fold(make(map[string]any), "", 0, events)
	return s.Snapshots.Upsert(ctx, domain.SubjectSnapshot{
		TenantID:             tenantID,
		SubjectID:            subjectID,
		SnapshotAtEventID:    result.LastEventID,
		State:                result.State,
		EventCountAtSnapshot: result.EventCount,
		CreatedAt:            s.Clock().UTC(),
	})
}

// RunSnapshotJob refreshes snapshots for up to limit subjects of the
// tenant, paging through the subject list. Per-subject failures are
// counted and the job continues; only the first few failing subject ids
// are reported.
func (s *SnapshotService) RunSnapshotJob(ctx context.Context, tenantID string, limit int) (domain.SnapshotRunResult, error) {
	defaultLimit, maxLimit := s.JobDefaultLimit, s.JobMaxLimit
	if defaultLimit <= 0 {
		defaultLimit = snapshotJobDefaultLimit
	}
	if maxLimit <= 0 {
		maxLimit = snapshotJobMaxLimit
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	result := domain.SnapshotRunResult{TenantID: tenantID}
	offset := 0
	for result.SubjectsProcessed < limit {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		pageSize := snapshotJobPageSize
		if remaining := limit - result.SubjectsProcessed; remaining < pageSize {
			pageSize = remaining
		}
		subjects, err := s.Subjects.ListByTenant(ctx, tenantID, offset, pageSize)
		if err != nil {
			return result, fmt.Errorf("list subjects for tenant %s: %w", tenantID, err)
		}
		if len(subjects) == 0 {
			break
		}
		offset += len(subjects)

		for _, subject := range subjects {
			result.SubjectsProcessed++
			if _, err := s.CreateSnapshot(ctx, tenantID, subject.ID); err != nil {
				if domain.IsValidation(err) {
					result.SkippedNoEvents++
					continue
				}
				result.ErrorCount++
				if len(result.ErrorSubjectIDs) < snapshotJobMaxErrorIDs {
					result.ErrorSubjectIDs = append(result.ErrorSubjectIDs, subject.ID)
				}
				s.Log.Error("snapshot refresh failed",
					"tenant_id", tenantID, "subject_id", subject.ID, "error", err)
			} else {
				result.SnapshotsWritten++
			}
		}
	}

	s.Log.Info("snapshot job finished",
		"tenant_id", tenantID,
		"subjects_processed", result.SubjectsProcessed,
		"snapshots_written", result.SnapshotsWritten,
		"skipped_no_events", result.SkippedNoEvents,
		"errors", result.ErrorCount)
	return result, nil
}
