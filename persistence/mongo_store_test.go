package persistence

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdantlabs/delegraph/testutil"
	"github.com/verdantlabs/delegraph/types"
)

// newMongoTestStore connects to the MongoDB instance named by
// DELEGRAPH_MONGO_URI. The test is skipped when the variable is unset so
// the suite stays runnable without infrastructure.
func newMongoTestStore(t *testing.T) *MongoJobStore {
	t.Helper()

	uri := os.Getenv("DELEGRAPH_MONGO_URI")
	if uri == "" {
		t.Skip("DELEGRAPH_MONGO_URI not set, skipping MongoDB integration test")
	}

	config := DefaultStoreConfig()
	config.Type = StoreTypeMongo
	config.Mongo.URI = uri
	config.Mongo.Database = "delegraph_test"

	store, err := NewMongoJobStore(config)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestMongoJobStoreCRUD(t *testing.T) {
	store := newMongoTestStore(t)
	ctx := testutil.TestContext(t)

	id := "m-" + time.Now().Format("150405.000000000")
	job := newTestJob(id, "fetch", "mongo-session", types.JobStateQueued)
	job.Brief.DependsOn = []string{"seed"}
	require.NoError(t, store.CreateJob(ctx, job))

	retrieved, err := store.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "fetch", retrieved.NodeID)
	assert.Equal(t, []string{"seed"}, retrieved.Brief.DependsOn)

	job.State = types.JobStateCompleted
	job.Output = "done"
	now := time.Now()
	job.CompletedAt = &now
	require.NoError(t, store.UpdateJob(ctx, job))

	retrieved, err = store.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, types.JobStateCompleted, retrieved.State)
	assert.Equal(t, "done", retrieved.Output)

	_, err = store.GetJob(ctx, "m-missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.AppendEvent(ctx, &JobEvent{
		JobID:     id,
		NodeID:    "fetch",
		ToState:   types.JobStateCompleted,
		Attempt:   1,
		Timestamp: time.Now(),
	}))

	events, err := store.ListEvents(ctx, id)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, types.JobStateCompleted, events[0].ToState)

	// Remove everything this test created.
	count, err := store.Cleanup(ctx, -time.Minute)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, 1)
}
