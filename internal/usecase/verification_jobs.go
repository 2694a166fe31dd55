package usecase

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/hspiira/timeline-sub001/internal/domain"
)

// VerificationJobRunner runs chain verification in the background and
// tracks progress through the job store. One goroutine per job; the
// verifier's own event ceiling and time budget bound each run.
type VerificationJobRunner struct {
	Verifier *ChainVerifier
	Jobs     VerificationJobStore
	Log      *slog.Logger
}

func NewVerificationJobRunner(verifier *ChainVerifier, jobs VerificationJobStore, log *slog.Logger) *VerificationJobRunner {
	if log == nil {
		log = slog.Default()
	}
	return &VerificationJobRunner{Verifier: verifier, Jobs: jobs, Log: log}
}

// Start registers a new job and launches the verification goroutine. The
// job covers one subject when subjectID is set, the whole tenant
// otherwise. The passed context scopes the background run; callers hand
// in a server-lifetime context, not the request's.
func (r *VerificationJobRunner) Start(ctx context.Context, tenantID, subjectID string) string {
	jobID := uuid.NewString()
	r.Jobs.Set(jobID, tenantID)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.Log.Error("verification job panic recovered", "job_id", jobID, "panic", rec)
				r.Jobs.Update(jobID, domain.JobFailed, nil, "internal error during verification")
			}
		}()

		r.Jobs.Update(jobID, domain.JobRunning, nil, "")
		var (
			report *domain.ChainReport
			err    error
		)
		if subjectID != "" {
			report, err = r.Verifier.VerifySubject(ctx, tenantID, subjectID)
		} else {
			report, err = r.Verifier.VerifyTenant(ctx, tenantID)
		}
		if err != nil {
			r.Log.Error("verification job failed", "job_id", jobID, "tenant_id", tenantID, "error", err)
			r.Jobs.Update(jobID, domain.JobFailed, nil, err.Error())
			return
		}
		r.Jobs.Update(jobID, domain.JobCompleted, report, "")
		r.Log.Info("verification job completed",
			"job_id", jobID,
			"tenant_id", tenantID,
			"total_events", report.TotalEvents,
			"invalid_events", report.InvalidEvents,
			"truncated", report.Truncated)
	}()

	return jobID
}

// Get returns the job when it exists and belongs to the tenant.
func (r *VerificationJobRunner) Get(jobID, tenantID string) (*domain.VerificationJob, error) {
	job, ok := r.Jobs.Get(jobID)
	if !ok || job.TenantID != tenantID {
		return nil, domain.NewNotFoundError("verification job", jobID)
	}
	return job, nil
}
