// Package jobmem keeps verification job state in process memory. Jobs do
// not survive a restart; callers are expected to resubmit.
package jobmem

import (
	"sync"
	"time"

	"github.com/hspiira/timeline-sub001/internal/domain"
	"github.com/hspiira/timeline-sub001/internal/usecase"
)

type Store struct {
	mu   sync.Mutex
	jobs map[string]domain.VerificationJob
}

func New() *Store {
	return &Store{jobs: make(map[string]domain.VerificationJob)}
}

func (s *Store) Set(jobID, tenantID string) {
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[jobID] = domain.VerificationJob{
		ID:        jobID,
		TenantID:  tenantID,
		Status:    domain.JobPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *Store) Get(jobID string) (*domain.VerificationJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, false
	}
	return &job, true
}

func (s *Store) Update(jobID string, status domain.VerificationJobStatus, report *domain.ChainReport, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return
	}
	job.Status = status
	job.Report = report
	job.Error = errMsg
	job.UpdatedAt = time.Now().UTC()
	s.jobs[jobID] = job
}

var _ usecase.VerificationJobStore = (*Store)(nil)
