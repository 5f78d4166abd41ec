// Package mocks provides test doubles for the persistence layer.
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/verdantlabs/delegraph/persistence"
	"github.com/verdantlabs/delegraph/types"
)

// FlakyJobStore wraps a JobStore and injects errors on demand. It is used
// to verify that callers treat persistence as fire-and-forget: a run must
// finish even when every write fails.
type FlakyJobStore struct {
	inner persistence.JobStore

	mu         sync.Mutex
	failWrites error
	failReads  error
	writes     int
	reads      int
}

var _ persistence.JobStore = (*FlakyJobStore)(nil)

// NewFlakyJobStore wraps inner with error injection disabled.
func NewFlakyJobStore(inner persistence.JobStore) *FlakyJobStore {
	return &FlakyJobStore{inner: inner}
}

// FailWrites makes every write operation return err. Nil disables.
func (s *FlakyJobStore) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWrites = err
}

// FailReads makes every read operation return err. Nil disables.
func (s *FlakyJobStore) FailReads(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failReads = err
}

// Writes returns the number of attempted write operations.
func (s *FlakyJobStore) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// Reads returns the number of attempted read operations.
func (s *FlakyJobStore) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

func (s *FlakyJobStore) writeErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	return s.failWrites
}

func (s *FlakyJobStore) readErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	return s.failReads
}

func (s *FlakyJobStore) Close() error { return s.inner.Close() }

func (s *FlakyJobStore) Ping(ctx context.Context) error { return s.inner.Ping(ctx) }

func (s *FlakyJobStore) CreateJob(ctx context.Context, job *types.Job) error {
	if err := s.writeErr(); err != nil {
		return err
	}
	return s.inner.CreateJob(ctx, job)
}

func (s *FlakyJobStore) UpdateJob(ctx context.Context, job *types.Job) error {
	if err := s.writeErr(); err != nil {
		return err
	}
	return s.inner.UpdateJob(ctx, job)
}

func (s *FlakyJobStore) GetJob(ctx context.Context, jobID string) (*types.Job, error) {
	if err := s.readErr(); err != nil {
		return nil, err
	}
	return s.inner.GetJob(ctx, jobID)
}

func (s *FlakyJobStore) ListJobs(ctx context.Context, filter persistence.JobFilter) ([]*types.Job, error) {
	if err := s.readErr(); err != nil {
		return nil, err
	}
	return s.inner.ListJobs(ctx, filter)
}

func (s *FlakyJobStore) AppendEvent(ctx context.Context, event *persistence.JobEvent) error {
	if err := s.writeErr(); err != nil {
		return err
	}
	return s.inner.AppendEvent(ctx, event)
}

func (s *FlakyJobStore) ListEvents(ctx context.Context, jobID string) ([]*persistence.JobEvent, error) {
	if err := s.readErr(); err != nil {
		return nil, err
	}
	return s.inner.ListEvents(ctx, jobID)
}

func (s *FlakyJobStore) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	if err := s.writeErr(); err != nil {
		return 0, err
	}
	return s.inner.Cleanup(ctx, olderThan)
}
