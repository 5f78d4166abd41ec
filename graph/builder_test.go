package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdantlabs/delegraph/types"
)

func request(briefs ...types.Brief) *types.Request {
	return &types.Request{SessionID: "s-1", ParentMessage: "do the thing", Briefs: briefs}
}

func TestBuilder_LinearGraph(t *testing.T) {
	g, err := NewBuilder(8, 4, nil).Build(request(
		types.Brief{ID: "a", Title: "A"},
		types.Brief{ID: "b", Title: "B", DependsOn: []string{"a"}},
		types.Brief{ID: "c", Title: "C", DependsOn: []string{"b"}},
	))
	require.NoError(t, err)

	assert.Equal(t, 3, g.Size())
	assert.Equal(t, 3, g.Depth())
	assert.Equal(t, []string{"a", "b", "c"}, g.TopologicalOrder())
	assert.Equal(t, []string{"a"}, g.ReadyNodes())
	assert.Equal(t, []string{"b"}, g.Dependents("a"))

	for _, id := range []string{"a", "b", "c"} {
		job, ok := g.Job(id)
		require.True(t, ok)
		assert.Equal(t, types.JobStateQueued, job.State)
		assert.Equal(t, 1, job.Attempt)
		assert.Equal(t, "s-1", job.SessionID)
		assert.NotEmpty(t, job.ID)
	}
}

func TestBuilder_DiamondGraph(t *testing.T) {
	g, err := NewBuilder(8, 4, nil).Build(request(
		types.Brief{ID: "root"},
		types.Brief{ID: "left", DependsOn: []string{"root"}},
		types.Brief{ID: "right", DependsOn: []string{"root"}},
		types.Brief{ID: "join", DependsOn: []string{"left", "right"}},
	))
	require.NoError(t, err)

	assert.Equal(t, 3, g.Depth())
	assert.Equal(t, []string{"root"}, g.ReadyNodes())

	// Completing root retires it and makes both branches ready, in
	// lexicographic order.
	g.RemovePending("root")
	g.SatisfyDependency("left", "root")
	g.SatisfyDependency("right", "root")
	assert.Equal(t, []string{"left", "right"}, g.ReadyNodes())

	g.RemovePending("left")
	g.SatisfyDependency("join", "left")
	assert.Equal(t, []string{"right"}, g.ReadyNodes())

	g.RemovePending("right")
	g.SatisfyDependency("join", "right")
	assert.Equal(t, []string{"join"}, g.ReadyNodes())
}

func TestBuilder_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		req  *types.Request
		code types.ErrorCode
	}{
		{
			name: "duplicate brief id",
			req:  request(types.Brief{ID: "a"}, types.Brief{ID: "a"}),
			code: types.ErrDuplicateBrief,
		},
		{
			name: "self dependency",
			req:  request(types.Brief{ID: "a", DependsOn: []string{"a"}}),
			code: types.ErrSelfDependency,
		},
		{
			name: "missing dependency",
			req:  request(types.Brief{ID: "a", DependsOn: []string{"ghost"}}),
			code: types.ErrMissingDependency,
		},
		{
			name: "two node cycle",
			req: request(
				types.Brief{ID: "a", DependsOn: []string{"b"}},
				types.Brief{ID: "b", DependsOn: []string{"a"}},
			),
			code: types.ErrCycleDetected,
		},
		{
			name: "three node cycle",
			req: request(
				types.Brief{ID: "a", DependsOn: []string{"c"}},
				types.Brief{ID: "b", DependsOn: []string{"a"}},
				types.Brief{ID: "c", DependsOn: []string{"b"}},
			),
			code: types.ErrCycleDetected,
		},
		{
			name: "empty request",
			req:  &types.Request{SessionID: "s-1"},
			code: types.ErrInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewBuilder(8, 4, nil).Build(tt.req)
			require.Error(t, err)
			assert.Nil(t, g)
			assert.Equal(t, tt.code, types.GetErrorCode(err))
		})
	}
}

func TestBuilder_NodeLimit(t *testing.T) {
	req := request(
		types.Brief{ID: "a"}, types.Brief{ID: "b"}, types.Brief{ID: "c"},
	)

	_, err := NewBuilder(2, 4, nil).Build(req)
	require.Error(t, err)
	assert.Equal(t, types.ErrGraphTooLarge, types.GetErrorCode(err))

	_, err = NewBuilder(3, 4, nil).Build(req)
	assert.NoError(t, err)
}

func TestBuilder_DepthLimit(t *testing.T) {
	req := request(
		types.Brief{ID: "a"},
		types.Brief{ID: "b", DependsOn: []string{"a"}},
		types.Brief{ID: "c", DependsOn: []string{"b"}},
		types.Brief{ID: "d", DependsOn: []string{"c"}},
		types.Brief{ID: "e", DependsOn: []string{"d"}},
	)

	_, err := NewBuilder(8, 4, nil).Build(req)
	require.Error(t, err)
	assert.Equal(t, types.ErrGraphTooDeep, types.GetErrorCode(err))

	_, err = NewBuilder(8, 5, nil).Build(req)
	assert.NoError(t, err)
}

func TestBuilder_DuplicateDependencyEdges(t *testing.T) {
	// The same dependency listed twice collapses to a single edge.
	g, err := NewBuilder(8, 4, nil).Build(request(
		types.Brief{ID: "a"},
		types.Brief{ID: "b", DependsOn: []string{"a", "a"}},
	))
	require.NoError(t, err)

	g.SatisfyDependency("b", "a")
	assert.Equal(t, []string{"a", "b"}, g.ReadyNodes())
}

func TestGraph_PendingBookkeeping(t *testing.T) {
	g, err := NewBuilder(8, 4, nil).Build(request(
		types.Brief{ID: "a"},
		types.Brief{ID: "b", DependsOn: []string{"a"}},
	))
	require.NoError(t, err)

	assert.Equal(t, 2, g.PendingCount())
	assert.Equal(t, []string{"a", "b"}, g.PendingNodes())

	g.RemovePending("a")
	assert.Equal(t, 1, g.PendingCount())
	assert.Equal(t, []string{"b"}, g.PendingNodes())
}
