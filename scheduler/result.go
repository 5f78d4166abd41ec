package scheduler

import (
	"fmt"
	"strings"

	"github.com/verdantlabs/delegraph/graph"
	"github.com/verdantlabs/delegraph/types"
)

// Result is the outcome of one delegation run. Jobs appear in a valid
// execution order regardless of the order they actually finished in.
type Result struct {
	// SessionID is the session the run belonged to.
	SessionID string `json:"session_id"`

	// Jobs holds the final snapshot of every job.
	Jobs []types.JobSnapshot `json:"jobs"`

	// Summary is a human-readable digest of the run.
	Summary string `json:"summary"`

	// HasFailures is true when any job failed or was cancelled.
	HasFailures bool `json:"has_failures"`
}

// Job returns the snapshot for a node ID.
func (r *Result) Job(nodeID string) (types.JobSnapshot, bool) {
	for _, job := range r.Jobs {
		if job.NodeID == nodeID {
			return job, true
		}
	}
	return types.JobSnapshot{}, false
}

const excerptLen = 80

func buildResult(req *types.Request, g *graph.Graph) *Result {
	result := &Result{
		SessionID: req.SessionID,
		Jobs:      make([]types.JobSnapshot, 0, g.Size()),
	}

	var b strings.Builder
	fmt.Fprintf(&b, "delegation run for session %s: %d job(s)\n", req.SessionID, g.Size())

	for _, nodeID := range g.TopologicalOrder() {
		job, ok := g.Job(nodeID)
		if !ok {
			continue
		}
		snap := job.Snapshot()
		result.Jobs = append(result.Jobs, snap)

		if snap.State == types.JobStateFailed || snap.State == types.JobStateCancelled {
			result.HasFailures = true
		}

		fmt.Fprintf(&b, "- %s [%s] %s", snap.NodeID, snap.State, snap.Brief.Title)
		switch {
		case snap.State == types.JobStateCompleted && snap.Output != "":
			fmt.Fprintf(&b, ": %s", excerpt(snap.Output))
		case snap.Error != "":
			fmt.Fprintf(&b, ": %s", excerpt(snap.Error))
		}
		b.WriteByte('\n')
	}

	result.Summary = strings.TrimRight(b.String(), "\n")
	return result
}

// excerpt returns the trailing portion of s, which for command-style
// output tends to carry the conclusion.
func excerpt(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) <= excerptLen {
		return s
	}
	return "..." + string(runes[len(runes)-excerptLen:])
}
