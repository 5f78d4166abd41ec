package types

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestJobState_IsTerminal(t *testing.T) {
	assert.False(t, JobStateQueued.IsTerminal())
	assert.False(t, JobStateRunning.IsTerminal())
	assert.True(t, JobStateCompleted.IsTerminal())
	assert.True(t, JobStateFailed.IsTerminal())
	assert.True(t, JobStateCancelled.IsTerminal())
}

func TestJobState_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    JobState
		to      JobState
		allowed bool
	}{
		{"queued to running", JobStateQueued, JobStateRunning, true},
		{"queued to cancelled", JobStateQueued, JobStateCancelled, true},
		{"queued to completed", JobStateQueued, JobStateCompleted, false},
		{"queued to failed", JobStateQueued, JobStateFailed, false},
		{"running to queued (retry)", JobStateRunning, JobStateQueued, true},
		{"running to completed", JobStateRunning, JobStateCompleted, true},
		{"running to failed", JobStateRunning, JobStateFailed, true},
		{"running to cancelled", JobStateRunning, JobStateCancelled, true},
		{"completed is terminal", JobStateCompleted, JobStateQueued, false},
		{"failed is terminal", JobStateFailed, JobStateRunning, false},
		{"cancelled is terminal", JobStateCancelled, JobStateCancelled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

// Random walks through the transition table must never leave a terminal
// state, and every step taken must be in the table.
func TestJobState_TransitionWalks(t *testing.T) {
	all := []JobState{
		JobStateQueued, JobStateRunning,
		JobStateCompleted, JobStateFailed, JobStateCancelled,
	}

	rapid.Check(t, func(rt *rapid.T) {
		state := JobStateQueued
		steps := rapid.IntRange(1, 20).Draw(rt, "steps")

		for i := 0; i < steps; i++ {
			next := all[rapid.IntRange(0, len(all)-1).Draw(rt, "next")]
			if !state.CanTransitionTo(next) {
				continue
			}
			if state.IsTerminal() {
				rt.Fatalf("terminal state %s allowed transition to %s", state, next)
			}
			state = next
		}
	})
}

func TestJob_Snapshot(t *testing.T) {
	started := time.Now()
	job := &Job{
		ID:        "j-1",
		NodeID:    "fetch",
		SessionID: "s-1",
		Brief:     Brief{ID: "fetch", Title: "Fetch data"},
		State:     JobStateRunning,
		Attempt:   2,
		StartedAt: &started,
	}

	snap := job.Snapshot()
	assert.Equal(t, "j-1", snap.ID)
	assert.Equal(t, "fetch", snap.NodeID)
	assert.Equal(t, JobStateRunning, snap.State)
	assert.Equal(t, 2, snap.Attempt)
	require.NotNil(t, snap.StartedAt)

	// Mutating the snapshot's timestamp must not touch the job.
	*snap.StartedAt = snap.StartedAt.Add(time.Hour)
	assert.Equal(t, started, *job.StartedAt)
}

func TestJob_Cancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	job := &Job{ID: "j-1", State: JobStateRunning}
	job.Cancel() // no handle bound yet, must not panic

	job.BindCancel(cancel)
	job.Cancel()

	select {
	case <-ctx.Done():
	default:
		t.Fatal("expected bound context to be cancelled")
	}
}

func TestJob_Duration(t *testing.T) {
	job := &Job{}
	assert.Equal(t, time.Duration(0), job.Duration())

	started := time.Now().Add(-2 * time.Second)
	completed := started.Add(time.Second)
	job.StartedAt = &started
	job.CompletedAt = &completed
	assert.Equal(t, time.Second, job.Duration())
}
