package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hspiira/timeline-sub001/internal/domain"
)

type jobStoreStub struct {
	mu   sync.Mutex
	jobs map[string]*domain.VerificationJob
}

func newJobStoreStub() *jobStoreStub {
	return &jobStoreStub{jobs: make(map[string]*domain.VerificationJob)}
}

func (s *jobStoreStub) Set(jobID, tenantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[jobID] = &domain.VerificationJob{ID: jobID, TenantID: tenantID, Status: domain.JobPending}
}

func (s *jobStoreStub) Get(jobID string) (*domain.VerificationJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, false
	}
	out := *job
	return &out, true
}

func (s *jobStoreStub) Update(jobID string, status domain.VerificationJobStatus, report *domain.ChainReport, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return
	}
	job.Status = status
	job.Report = report
	job.Error = errMsg
}

func waitForJob(t *testing.T, runner *VerificationJobRunner, jobID, tenantID string) *domain.VerificationJob {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, err := runner.Get(jobID, tenantID)
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		if job.Status == domain.JobCompleted || job.Status == domain.JobFailed {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("verification job did not finish in time")
	return nil
}

func TestVerificationJobRunner_CompletesWithReport(t *testing.T) {
	verifier, subjects, events := newVerifierFixture(0)
	subjects.add("s1", "t1", "patient")
	seedChain(t, events, "t1", "s1", 3)
	events.events[1].Payload["n"] = float64(99)

	runner := NewVerificationJobRunner(verifier, newJobStoreStub(), nil)
	jobID := runner.Start(context.Background(), "t1", "s1")

	job := waitForJob(t, runner, jobID, "t1")
	if job.Status != domain.JobCompleted {
		t.Fatalf("expected completed job, got %+v", job)
	}
	if job.Report == nil || job.Report.InvalidEvents != 1 {
		t.Fatalf("expected report with one invalid event, got %+v", job.Report)
	}
}

func TestVerificationJobRunner_UnknownSubjectFailsJob(t *testing.T) {
	verifier, _, _ := newVerifierFixture(0)
	runner := NewVerificationJobRunner(verifier, newJobStoreStub(), nil)
	jobID := runner.Start(context.Background(), "t1", "ghost")

	job := waitForJob(t, runner, jobID, "t1")
	if job.Status != domain.JobFailed || job.Error == "" {
		t.Fatalf("expected failed job with error message, got %+v", job)
	}
}

func TestVerificationJobRunner_TenantScopedLookup(t *testing.T) {
	verifier, subjects, events := newVerifierFixture(0)
	subjects.add("s1", "t1", "patient")
	seedChain(t, events, "t1", "s1", 1)

	runner := NewVerificationJobRunner(verifier, newJobStoreStub(), nil)
	jobID := runner.Start(context.Background(), "t1", "")

	if _, err := runner.Get(jobID, "t2"); !domain.IsNotFound(err) {
		t.Fatalf("job lookup must be tenant scoped, got %v", err)
	}
}
