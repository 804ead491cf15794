package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/dachtraufe/traufe/internal/domain/model"
	"github.com/dachtraufe/traufe/pkg/metrics"
)

// MemoryJobStore is a mutex-guarded in-memory JobStore.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]*model.Job
}

// NewMemoryJobStore constructs an empty job store.
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]*model.Job)}
}

// Create registers a new job.
func (s *MemoryJobStore) Create(ctx context.Context, job model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; ok {
		return ErrDuplicateJob
	}
	j := job
	s.jobs[job.ID] = &j
	metrics.UpdateTotalJobs(len(s.jobs))
	return nil
}

// Get returns a copy of a job.
func (s *MemoryJobStore) Get(ctx context.Context, id string) (model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return model.Job{}, ErrNotFound
	}
	return *j, nil
}

// Update applies fn to the stored job under the store lock, so state
// transitions from workers and reads from handlers never interleave.
func (s *MemoryJobStore) Update(ctx context.Context, id string, fn func(*model.Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	fn(j)
	return nil
}

// List returns all jobs, most recently submitted first.
func (s *MemoryJobStore) List(ctx context.Context) []model.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *j)
	}
	sort.Slice(out, func(i, k int) bool {
		if !out[i].SubmittedAt.Equal(out[k].SubmittedAt) {
			return out[i].SubmittedAt.After(out[k].SubmittedAt)
		}
		return out[i].ID < out[k].ID
	})
	return out
}

// Count returns the number of tracked jobs.
func (s *MemoryJobStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}
