package testutil

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/verdantlabs/delegraph/types"
)

// TestContext returns a context bounded by a 30 second timeout, cancelled
// automatically when the test finishes.
func TestContext(t *testing.T) context.Context {
	return TestContextWithTimeout(t, 30*time.Second)
}

// TestContextWithTimeout returns a context with a custom timeout,
// cancelled automatically when the test finishes.
func TestContextWithTimeout(t *testing.T, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// CancelledContext returns a context that is already cancelled.
func CancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

// WaitFor polls condition every 10ms until it returns true or the timeout
// expires. Returns whether the condition became true.
func WaitFor(condition func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

// WaitForChannel waits for a value from ch or until the timeout expires.
func WaitForChannel[T any](ch <-chan T, timeout time.Duration) (T, bool) {
	select {
	case v, ok := <-ch:
		return v, ok
	case <-time.After(timeout):
		var zero T
		return zero, false
	}
}

// MustJSON marshals v to JSON, panicking on error.
func MustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(data)
}

// NewBrief builds a brief with the given ID and dependencies.
func NewBrief(id string, dependsOn ...string) types.Brief {
	return types.Brief{
		ID:        id,
		Title:     "brief " + id,
		DependsOn: dependsOn,
	}
}

// NewRequest builds a delegation request for the given session.
func NewRequest(sessionID string, briefs ...types.Brief) *types.Request {
	return &types.Request{
		SessionID:     sessionID,
		ParentMessage: "test delegation",
		Briefs:        briefs,
	}
}

// CallRecorder counts executor invocations per node, safe for concurrent
// use from scheduler batches.
type CallRecorder struct {
	mu    sync.Mutex
	calls map[string]int
	order []string
}

// NewCallRecorder returns an empty recorder.
func NewCallRecorder() *CallRecorder {
	return &CallRecorder{calls: make(map[string]int)}
}

// Record notes one invocation for nodeID.
func (r *CallRecorder) Record(nodeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[nodeID]++
	r.order = append(r.order, nodeID)
}

// Calls returns the invocation count for nodeID.
func (r *CallRecorder) Calls(nodeID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[nodeID]
}

// Total returns the number of invocations across all nodes.
func (r *CallRecorder) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// Order returns a copy of node IDs in invocation order.
func (r *CallRecorder) Order() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
