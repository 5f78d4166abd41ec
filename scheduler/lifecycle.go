package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/verdantlabs/delegraph/persistence"
	"github.com/verdantlabs/delegraph/types"
)

// lifecycle applies state transitions to jobs and records them to the job
// store. Persistence failures are logged and swallowed: the store is an
// audit trail, not a coordination mechanism, and a run must not abort
// because its trail is unavailable.
type lifecycle struct {
	store  persistence.JobStore
	logger *zap.Logger
}

func newLifecycle(store persistence.JobStore, logger *zap.Logger) *lifecycle {
	return &lifecycle{
		store:  store,
		logger: logger.With(zap.String("component", "lifecycle")),
	}
}

// created records a freshly built job and its creation event.
func (l *lifecycle) created(ctx context.Context, job *types.Job) {
	if err := l.store.CreateJob(ctx, job); err != nil {
		l.logger.Error("failed to persist job",
			zap.String("job_id", job.ID),
			zap.String("node_id", job.NodeID),
			zap.Error(err))
	}
	l.appendEvent(ctx, job, "", "job created")
}

// transition moves a job to the given state, stamps the relevant
// timestamps, and records the change. An illegal transition returns an
// error and leaves the job untouched.
func (l *lifecycle) transition(ctx context.Context, job *types.Job, to types.JobState, detail string) error {
	if !job.State.CanTransitionTo(to) {
		return types.NewErrorf(types.ErrInvalidTransition,
			"illegal transition %s -> %s", job.State, to).WithNodeID(job.NodeID)
	}

	from := job.State
	now := time.Now()
	job.State = to
	job.UpdatedAt = now

	if to == types.JobStateRunning && job.StartedAt == nil {
		job.StartedAt = &now
	}
	// CompletedAt marks the end of an attempt: terminal states and the
	// retry path back to queued both close one.
	if to.IsTerminal() || (from == types.JobStateRunning && to == types.JobStateQueued) {
		t := now
		job.CompletedAt = &t
	}

	l.update(ctx, job)
	l.appendEvent(ctx, job, from, detail)
	return nil
}

// update persists the job's current state without a transition.
func (l *lifecycle) update(ctx context.Context, job *types.Job) {
	if err := l.store.UpdateJob(ctx, job); err != nil {
		l.logger.Error("failed to persist job update",
			zap.String("job_id", job.ID),
			zap.String("node_id", job.NodeID),
			zap.Error(err))
	}
}

func (l *lifecycle) appendEvent(ctx context.Context, job *types.Job, from types.JobState, detail string) {
	event := &persistence.JobEvent{
		JobID:     job.ID,
		NodeID:    job.NodeID,
		SessionID: job.SessionID,
		FromState: from,
		ToState:   job.State,
		Detail:    detail,
		Attempt:   job.Attempt,
		Timestamp: job.UpdatedAt,
	}
	if err := l.store.AppendEvent(ctx, event); err != nil {
		l.logger.Error("failed to persist job event",
			zap.String("job_id", job.ID),
			zap.String("node_id", job.NodeID),
			zap.Error(err))
	}
}
