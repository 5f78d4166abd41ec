package scheduler

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/verdantlabs/delegraph/types"
)

// Executor runs one job attempt and returns its output. The executor must
// honor ctx: the scheduler cancels it on timeout and on run cancellation.
// A non-cooperative executor is abandoned when its deadline passes; its
// goroutine keeps running but its result is discarded.
type Executor func(ctx context.Context, req *types.Request, job types.JobSnapshot) (string, error)

// attemptOutcome classifies how one execution attempt ended.
type attemptOutcome int

const (
	attemptCompleted attemptOutcome = iota
	attemptFailed
	attemptCancelled
)

// executorGracePeriod bounds how long the scheduler waits for an executor
// to return after its attempt context expires.
const executorGracePeriod = 100 * time.Millisecond

type attemptResult struct {
	outcome attemptOutcome
	output  string
	err     error
}

// runAttempt executes one attempt of a job with its effective timeout.
// The brief's constraint overrides the configured default when positive.
func (s *Scheduler) runAttempt(ctx context.Context, req *types.Request, job *types.Job) attemptResult {
	timeout := s.config.JobTimeout
	if t := job.Brief.Constraints.Timeout; t > 0 {
		timeout = t
	}

	ctx, span := s.tracer.Start(ctx, "delegation.attempt")
	defer span.End()
	span.SetAttributes(
		attribute.String("delegation.node_id", job.NodeID),
		attribute.Int("delegation.attempt", job.Attempt),
	)

	res := s.attempt(ctx, req, job, timeout)
	if res.err != nil {
		span.RecordError(res.err)
		if res.outcome == attemptFailed {
			span.SetStatus(codes.Error, "attempt failed")
		}
	}
	return res
}

// attempt races the executor against the per-attempt deadline.
func (s *Scheduler) attempt(ctx context.Context, req *types.Request, job *types.Job, timeout time.Duration) attemptResult {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	job.BindCancel(cancel)

	type payload struct {
		output string
		err    error
	}
	done := make(chan payload, 1)
	go func() {
		output, err := s.executor(attemptCtx, req, job.Snapshot())
		done <- payload{output: output, err: err}
	}()

	select {
	case p := <-done:
		return s.classify(ctx, attemptCtx, job, timeout, p.output, p.err)

	case <-attemptCtx.Done():
		// Give a cooperative executor a moment to return after seeing the
		// cancellation before abandoning its goroutine.
		grace := time.NewTimer(executorGracePeriod)
		defer grace.Stop()
		select {
		case p := <-done:
			return s.classify(ctx, attemptCtx, job, timeout, p.output, p.err)
		case <-grace.C:
		}
		if ctx.Err() != nil {
			return attemptResult{outcome: attemptCancelled, err: ctx.Err()}
		}
		return attemptResult{outcome: attemptFailed, err: s.timeoutError(job, timeout)}
	}
}

// classify interprets the executor's return once the attempt finished.
// Run-level cancellation wins over the executor's own error, and a deadline
// on the attempt context maps to a retryable timeout.
func (s *Scheduler) classify(ctx, attemptCtx context.Context, job *types.Job, timeout time.Duration, output string, err error) attemptResult {
	if err == nil {
		return attemptResult{outcome: attemptCompleted, output: output}
	}
	if ctx.Err() != nil {
		return attemptResult{outcome: attemptCancelled, err: ctx.Err()}
	}
	if errors.Is(err, context.DeadlineExceeded) || attemptCtx.Err() == context.DeadlineExceeded {
		return attemptResult{outcome: attemptFailed, err: s.timeoutError(job, timeout)}
	}
	return attemptResult{
		outcome: attemptFailed,
		err: types.NewErrorf(types.ErrExecutionFailed,
			"executor failed for node %q", job.NodeID).WithNodeID(job.NodeID).WithCause(err),
	}
}

func (s *Scheduler) timeoutError(job *types.Job, timeout time.Duration) error {
	return types.NewErrorf(types.ErrTimeout,
		"node %q timed out after %s", job.NodeID, timeout).
		WithNodeID(job.NodeID).
		WithRetryable(true)
}
