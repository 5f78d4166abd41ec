package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdantlabs/delegraph/types"
)

func newAttemptJob(timeout time.Duration) *types.Job {
	return &types.Job{
		ID:     "attempt-job",
		NodeID: "node",
		Brief: types.Brief{
			ID:          "node",
			Constraints: types.BriefConstraints{Timeout: timeout},
		},
		State:   types.JobStateRunning,
		Attempt: 1,
	}
}

func TestRunAttemptSuccess(t *testing.T) {
	s, err := New(func(ctx context.Context, req *types.Request, job types.JobSnapshot) (string, error) {
		return "output", nil
	})
	require.NoError(t, err)

	res := s.runAttempt(context.Background(), testRequest(), newAttemptJob(0))
	assert.Equal(t, attemptCompleted, res.outcome)
	assert.Equal(t, "output", res.output)
}

func TestRunAttemptExecutorError(t *testing.T) {
	cause := errors.New("broken")
	s, err := New(func(ctx context.Context, req *types.Request, job types.JobSnapshot) (string, error) {
		return "", cause
	})
	require.NoError(t, err)

	res := s.runAttempt(context.Background(), testRequest(), newAttemptJob(0))
	assert.Equal(t, attemptFailed, res.outcome)
	assert.Equal(t, types.ErrExecutionFailed, types.GetErrorCode(res.err))
	assert.ErrorIs(t, res.err, cause)
}

func TestRunAttemptBriefTimeoutOverridesDefault(t *testing.T) {
	var deadline time.Time
	s, err := New(func(ctx context.Context, req *types.Request, job types.JobSnapshot) (string, error) {
		deadline, _ = ctx.Deadline()
		return "", nil
	})
	require.NoError(t, err)

	start := time.Now()
	res := s.runAttempt(context.Background(), testRequest(), newAttemptJob(time.Minute))
	require.Equal(t, attemptCompleted, res.outcome)

	// The default is 20s; the brief asked for a minute.
	assert.Greater(t, deadline.Sub(start), 30*time.Second)
}

func TestRunAttemptTimeoutIsRetryable(t *testing.T) {
	s, err := New(func(ctx context.Context, req *types.Request, job types.JobSnapshot) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	require.NoError(t, err)

	res := s.runAttempt(context.Background(), testRequest(), newAttemptJob(20*time.Millisecond))
	assert.Equal(t, attemptFailed, res.outcome)
	assert.Equal(t, types.ErrTimeout, types.GetErrorCode(res.err))
	assert.True(t, types.IsRetryable(res.err))
}

func TestRunAttemptWaitsForCooperativeExecutorOnTimeout(t *testing.T) {
	var sawCancel atomic.Bool
	s, err := New(func(ctx context.Context, req *types.Request, job types.JobSnapshot) (string, error) {
		select {
		case <-time.After(time.Minute):
			return "too late", nil
		case <-ctx.Done():
			sawCancel.Store(true)
			return "", ctx.Err()
		}
	})
	require.NoError(t, err)

	res := s.runAttempt(context.Background(), testRequest(), newAttemptJob(20*time.Millisecond))
	assert.Equal(t, attemptFailed, res.outcome)
	assert.Equal(t, types.ErrTimeout, types.GetErrorCode(res.err))
	assert.True(t, sawCancel.Load(), "executor must observe cancellation before the attempt is classified")
}

func TestRunAttemptAbandonsStuckExecutor(t *testing.T) {
	release := make(chan struct{})
	s, err := New(func(ctx context.Context, req *types.Request, job types.JobSnapshot) (string, error) {
		<-release
		return "", nil
	})
	require.NoError(t, err)

	start := time.Now()
	res := s.runAttempt(context.Background(), testRequest(), newAttemptJob(20*time.Millisecond))
	close(release)

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, attemptFailed, res.outcome)
	assert.Equal(t, types.ErrTimeout, types.GetErrorCode(res.err))
}

func TestRunAttemptParentCancellation(t *testing.T) {
	s, err := New(func(ctx context.Context, req *types.Request, job types.JobSnapshot) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	res := s.runAttempt(ctx, testRequest(), newAttemptJob(time.Minute))
	assert.Equal(t, attemptCancelled, res.outcome)
}
