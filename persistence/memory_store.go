package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/verdantlabs/delegraph/types"
)

// MemoryJobStore is an in-memory implementation of JobStore.
// Suitable for development and testing. Data is lost on restart.
type MemoryJobStore struct {
	jobs   map[string]*types.Job
	events map[string][]*JobEvent
	mu     sync.RWMutex
	closed bool
}

// NewMemoryJobStore creates a new in-memory job store.
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{
		jobs:   make(map[string]*types.Job),
		events: make(map[string][]*JobEvent),
	}
}

// Close closes the store.
func (s *MemoryJobStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Ping checks if the store is healthy.
func (s *MemoryJobStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// CreateJob persists a freshly built job record.
func (s *MemoryJobStore) CreateJob(ctx context.Context, job *types.Job) error {
	if job == nil || job.ID == "" {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	s.jobs[job.ID] = cloneJob(job)
	return nil
}

// UpdateJob persists the job's current state.
func (s *MemoryJobStore) UpdateJob(ctx context.Context, job *types.Job) error {
	if job == nil || job.ID == "" {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, ok := s.jobs[job.ID]; !ok {
		return ErrNotFound
	}

	s.jobs[job.ID] = cloneJob(job)
	return nil
}

// GetJob retrieves a job by ID.
func (s *MemoryJobStore) GetJob(ctx context.Context, jobID string) (*types.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}

	return cloneJob(job), nil
}

// ListJobs retrieves jobs matching the filter criteria, ordered by
// creation time.
func (s *MemoryJobStore) ListJobs(ctx context.Context, filter JobFilter) ([]*types.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	result := make([]*types.Job, 0)
	for _, job := range s.jobs {
		if filter.Matches(job) {
			result = append(result, cloneJob(job))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].NodeID < result[j].NodeID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return paginate(result, filter.Offset, filter.Limit), nil
}

// AppendEvent appends a lifecycle event to the audit trail.
func (s *MemoryJobStore) AppendEvent(ctx context.Context, event *JobEvent) error {
	if event == nil || event.JobID == "" {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	copied := *event
	s.events[event.JobID] = append(s.events[event.JobID], &copied)
	return nil
}

// ListEvents retrieves the audit trail for a job in append order.
func (s *MemoryJobStore) ListEvents(ctx context.Context, jobID string) ([]*JobEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	events := s.events[jobID]
	result := make([]*JobEvent, len(events))
	for i, ev := range events {
		copied := *ev
		result[i] = &copied
	}
	return result, nil
}

// Cleanup removes terminal jobs (and their events) older than the
// specified duration.
func (s *MemoryJobStore) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	cutoff := time.Now().Add(-olderThan)
	count := 0

	for jobID, job := range s.jobs {
		if !job.State.IsTerminal() {
			continue
		}

		checkTime := job.UpdatedAt
		if job.CompletedAt != nil {
			checkTime = *job.CompletedAt
		}

		if checkTime.Before(cutoff) {
			delete(s.jobs, jobID)
			delete(s.events, jobID)
			count++
		}
	}

	return count, nil
}

// paginate applies offset and limit to a result slice.
func paginate[T any](result []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(result) {
			return []T{}
		}
		result = result[offset:]
	}
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result
}

// Ensure MemoryJobStore implements JobStore
var _ JobStore = (*MemoryJobStore)(nil)
