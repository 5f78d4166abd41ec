package graph

import (
	"sort"

	"github.com/verdantlabs/delegraph/types"
)

// Graph is the ephemeral, per-request execution structure. It is exclusively
// owned and mutated by the scheduler loop for the duration of one run and
// discarded afterwards; nothing about it outlives the run except the
// persisted job and event records.
type Graph struct {
	// jobs maps node IDs to their runtime jobs.
	jobs map[string]*types.Job
	// dependents maps a node ID to the node IDs that depend on it
	// (the reverse of DependsOn).
	dependents map[string][]string
	// unmet maps a node ID to its set of not-yet-satisfied dependencies.
	unmet map[string]map[string]struct{}
	// pending is the set of node IDs not yet in a terminal state.
	pending map[string]struct{}
	// topoOrder is a valid execution order, used for result ordering.
	topoOrder []string
	// depth is the longest dependency chain length.
	depth int
}

// Job returns the runtime job for a node.
func (g *Graph) Job(nodeID string) (*types.Job, bool) {
	job, ok := g.jobs[nodeID]
	return job, ok
}

// Jobs returns all runtime jobs keyed by node ID.
func (g *Graph) Jobs() map[string]*types.Job {
	return g.jobs
}

// Dependents returns the node IDs that depend on the given node.
func (g *Graph) Dependents(nodeID string) []string {
	return g.dependents[nodeID]
}

// TopologicalOrder returns node IDs in a valid execution order.
func (g *Graph) TopologicalOrder() []string {
	return g.topoOrder
}

// Depth returns the longest dependency chain length.
func (g *Graph) Depth() int {
	return g.depth
}

// Size returns the number of nodes.
func (g *Graph) Size() int {
	return len(g.jobs)
}

// PendingCount returns the number of nodes not yet terminal.
func (g *Graph) PendingCount() int {
	return len(g.pending)
}

// PendingNodes returns the non-terminal node IDs in lexicographic order.
func (g *Graph) PendingNodes() []string {
	nodes := make([]string, 0, len(g.pending))
	for id := range g.pending {
		nodes = append(nodes, id)
	}
	sort.Strings(nodes)
	return nodes
}

// RemovePending marks a node as terminal for scheduling purposes.
func (g *Graph) RemovePending(nodeID string) {
	delete(g.pending, nodeID)
}

// SatisfyDependency removes dep from the unmet-dependency set of nodeID.
// A node becomes ready only once its unmet set is empty.
func (g *Graph) SatisfyDependency(nodeID, dep string) {
	if set, ok := g.unmet[nodeID]; ok {
		delete(set, dep)
	}
}

// ReadyNodes returns the node IDs that are still queued, still pending, and
// have no unmet dependencies, sorted lexicographically for reproducible
// scheduling behavior.
func (g *Graph) ReadyNodes() []string {
	ready := make([]string, 0, len(g.pending))
	for id := range g.pending {
		job := g.jobs[id]
		if job.State != types.JobStateQueued {
			continue
		}
		if len(g.unmet[id]) > 0 {
			continue
		}
		ready = append(ready, id)
	}
	sort.Strings(ready)
	return ready
}
