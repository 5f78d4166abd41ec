package types

import (
	"context"
	"time"
)

// JobState represents the lifecycle state of a runtime job.
type JobState string

const (
	// JobStateQueued indicates the job is waiting for its dependencies
	// or for scheduler capacity.
	JobStateQueued JobState = "queued"

	// JobStateRunning indicates the job's executor callback is in flight.
	JobStateRunning JobState = "running"

	// JobStateCompleted indicates the job finished successfully.
	JobStateCompleted JobState = "completed"

	// JobStateFailed indicates the job exhausted its retries and failed.
	JobStateFailed JobState = "failed"

	// JobStateCancelled indicates the job was cancelled before or during
	// execution (cascade, deadlock, or circuit breaker).
	JobStateCancelled JobState = "cancelled"
)

// jobTransitions is the table of legal state transitions. Terminal states
// have no outgoing entries. running→queued is the retry path.
var jobTransitions = map[JobState][]JobState{
	JobStateQueued:  {JobStateRunning, JobStateCancelled},
	JobStateRunning: {JobStateQueued, JobStateCompleted, JobStateFailed, JobStateCancelled},
}

// IsTerminal returns true if the state is a terminal state.
func (s JobState) IsTerminal() bool {
	switch s {
	case JobStateCompleted, JobStateFailed, JobStateCancelled:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether the transition s→to is legal.
func (s JobState) CanTransitionTo(to JobState) bool {
	for _, next := range jobTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Job is the mutable execution record for one brief within one request.
// A Job is exclusively owned by the scheduler for the duration of one
// delegation run; it is never shared across requests.
type Job struct {
	// ID is the globally unique job identifier.
	ID string `json:"id"`

	// NodeID is the graph-local key (== Brief.ID).
	NodeID string `json:"node_id"`

	// SessionID is the session the delegation belongs to.
	SessionID string `json:"session_id"`

	// ParentMessage is the originating user request.
	ParentMessage string `json:"parent_message,omitempty"`

	// Brief is the caller-supplied work description.
	Brief Brief `json:"brief"`

	// State is the current lifecycle state.
	State JobState `json:"state"`

	// Attempt is the current attempt number, starting at 1.
	Attempt int `json:"attempt"`

	// Output is the executor result on success.
	Output string `json:"output,omitempty"`

	// Error is the failure or cancellation reason.
	Error string `json:"error,omitempty"`

	// CreatedAt is when the job record was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the job was last mutated.
	UpdatedAt time.Time `json:"updated_at"`

	// StartedAt is set on first entry to running.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is set on any terminal state, and when an attempt
	// ends with a retry (return to queued).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// cancel interrupts the in-flight executor call, if any.
	cancel context.CancelFunc
}

// BindCancel attaches the cancellation handle for the current attempt.
func (j *Job) BindCancel(cancel context.CancelFunc) {
	j.cancel = cancel
}

// Cancel interrupts the in-flight executor call. Safe to call when no
// attempt is in flight.
func (j *Job) Cancel() {
	if j.cancel != nil {
		j.cancel()
	}
}

// IsTerminal returns true if the job reached a terminal state.
func (j *Job) IsTerminal() bool {
	return j.State.IsTerminal()
}

// Duration returns the job duration, or time since start if still running.
func (j *Job) Duration() time.Duration {
	if j.StartedAt == nil {
		return 0
	}
	if j.CompletedAt != nil {
		return j.CompletedAt.Sub(*j.StartedAt)
	}
	return time.Since(*j.StartedAt)
}

// JobSnapshot is a read-only copy of a job, handed to executor callbacks
// and returned to callers in results.
type JobSnapshot struct {
	ID            string     `json:"id"`
	NodeID        string     `json:"node_id"`
	SessionID     string     `json:"session_id"`
	ParentMessage string     `json:"parent_message,omitempty"`
	Brief         Brief      `json:"brief"`
	State         JobState   `json:"state"`
	Attempt       int        `json:"attempt"`
	Output        string     `json:"output,omitempty"`
	Error         string     `json:"error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// Snapshot returns a read-only copy of the job.
func (j *Job) Snapshot() JobSnapshot {
	snap := JobSnapshot{
		ID:            j.ID,
		NodeID:        j.NodeID,
		SessionID:     j.SessionID,
		ParentMessage: j.ParentMessage,
		Brief:         j.Brief,
		State:         j.State,
		Attempt:       j.Attempt,
		Output:        j.Output,
		Error:         j.Error,
		CreatedAt:     j.CreatedAt,
		UpdatedAt:     j.UpdatedAt,
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		snap.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		snap.CompletedAt = &t
	}
	return snap
}
