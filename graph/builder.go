package graph

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/verdantlabs/delegraph/types"
)

// Builder validates a delegation request and constructs its execution graph.
type Builder struct {
	maxNodes int
	maxDepth int
	logger   *zap.Logger
}

// NewBuilder creates a graph builder enforcing the given node-count and
// depth limits. Limits of zero or less disable the corresponding check.
func NewBuilder(maxNodes, maxDepth int, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		maxNodes: maxNodes,
		maxDepth: maxDepth,
		logger:   logger.With(zap.String("component", "graph_builder")),
	}
}

// Build validates the request and returns the execution graph with one
// queued runtime job per brief. All validation failures happen before any
// job is created, so a rejected request produces zero side effects.
func (b *Builder) Build(req *types.Request) (*Graph, error) {
	if req == nil {
		return nil, types.NewError(types.ErrInvalidRequest, "request must not be nil")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if b.maxNodes > 0 && len(req.Briefs) > b.maxNodes {
		return nil, types.NewErrorf(types.ErrGraphTooLarge,
			"request has %d briefs, limit is %d", len(req.Briefs), b.maxNodes)
	}

	briefs := make(map[string]*types.Brief, len(req.Briefs))
	for i := range req.Briefs {
		brief := &req.Briefs[i]
		if _, dup := briefs[brief.ID]; dup {
			return nil, types.NewErrorf(types.ErrDuplicateBrief,
				"duplicate brief id %q", brief.ID).WithNodeID(brief.ID)
		}
		briefs[brief.ID] = brief
	}

	// Dependency references: no self-deps, every target must exist.
	dependents := make(map[string][]string, len(briefs))
	unmet := make(map[string]map[string]struct{}, len(briefs))
	for _, brief := range req.Briefs {
		unmet[brief.ID] = make(map[string]struct{}, len(brief.DependsOn))
		for _, dep := range brief.DependsOn {
			if dep == brief.ID {
				return nil, types.NewErrorf(types.ErrSelfDependency,
					"brief %q depends on itself", brief.ID).WithNodeID(brief.ID)
			}
			if _, ok := briefs[dep]; !ok {
				return nil, types.NewErrorf(types.ErrMissingDependency,
					"brief %q depends on unknown brief %q", brief.ID, dep).WithNodeID(brief.ID)
			}
			if _, seen := unmet[brief.ID][dep]; seen {
				continue
			}
			unmet[brief.ID][dep] = struct{}{}
			dependents[dep] = append(dependents[dep], brief.ID)
		}
	}

	topo, err := topologicalOrder(req.Briefs, dependents, unmet)
	if err != nil {
		return nil, err
	}

	depth := graphDepth(topo, briefs)
	if b.maxDepth > 0 && depth > b.maxDepth {
		return nil, types.NewErrorf(types.ErrGraphTooDeep,
			"dependency chain depth %d exceeds limit %d", depth, b.maxDepth)
	}

	// All checks passed: create the runtime jobs.
	now := time.Now()
	jobs := make(map[string]*types.Job, len(req.Briefs))
	pending := make(map[string]struct{}, len(req.Briefs))
	for _, brief := range req.Briefs {
		jobs[brief.ID] = &types.Job{
			ID:            uuid.New().String(),
			NodeID:        brief.ID,
			SessionID:     req.SessionID,
			ParentMessage: req.ParentMessage,
			Brief:         brief,
			State:         types.JobStateQueued,
			Attempt:       1,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		pending[brief.ID] = struct{}{}
	}

	b.logger.Debug("delegation graph built",
		zap.String("session_id", req.SessionID),
		zap.Int("nodes", len(jobs)),
		zap.Int("depth", depth))

	return &Graph{
		jobs:       jobs,
		dependents: dependents,
		unmet:      unmet,
		pending:    pending,
		topoOrder:  topo,
		depth:      depth,
	}, nil
}

// topologicalOrder runs Kahn's algorithm. If the resulting order misses any
// node, the dependency relation contains a cycle.
func topologicalOrder(briefs []types.Brief, dependents map[string][]string, unmet map[string]map[string]struct{}) ([]string, error) {
	inDegree := make(map[string]int, len(briefs))
	queue := make([]string, 0, len(briefs))
	for _, brief := range briefs {
		inDegree[brief.ID] = len(unmet[brief.ID])
		if inDegree[brief.ID] == 0 {
			queue = append(queue, brief.ID)
		}
	}

	order := make([]string, 0, len(briefs))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		for _, dep := range dependents[id] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(order) != len(briefs) {
		return nil, types.NewErrorf(types.ErrCycleDetected,
			"dependency cycle detected: %d of %d briefs unreachable via topological sort",
			len(briefs)-len(order), len(briefs))
	}
	return order, nil
}

// graphDepth computes the longest dependency chain: a node with no
// dependencies has depth 1, otherwise 1 + max depth of its dependencies.
// Nodes are visited in topological order, so dependency depths are known.
func graphDepth(topo []string, briefs map[string]*types.Brief) int {
	depths := make(map[string]int, len(topo))
	max := 0
	for _, id := range topo {
		d := 1
		for _, dep := range briefs[id].DependsOn {
			if depths[dep]+1 > d {
				d = depths[dep] + 1
			}
		}
		depths[id] = d
		if d > max {
			max = d
		}
	}
	return max
}
