package delegraph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdantlabs/delegraph/types"
)

func TestRun(t *testing.T) {
	exec := func(ctx context.Context, req *types.Request, job types.JobSnapshot) (string, error) {
		return "done: " + job.Brief.Title, nil
	}

	result, err := Run(context.Background(), exec, &types.Request{
		SessionID: "session-1",
		Briefs: []types.Brief{
			{ID: "a", Title: "first"},
			{ID: "b", Title: "second", DependsOn: []string{"a"}},
		},
	})
	require.NoError(t, err)
	assert.False(t, result.HasFailures)
	require.Len(t, result.Jobs, 2)
	assert.Equal(t, "done: first", result.Jobs[0].Output)
}

func TestNewRejectsNilExecutor(t *testing.T) {
	_, err := New(nil)
	assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))
}
