package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContexts(t *testing.T) {
	ctx := TestContext(t)
	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.True(t, deadline.After(time.Now()))

	assert.Error(t, CancelledContext().Err())
}

func TestWaitFor(t *testing.T) {
	n := 0
	assert.True(t, WaitFor(func() bool {
		n++
		return n >= 3
	}, time.Second))

	assert.False(t, WaitFor(func() bool { return false }, 50*time.Millisecond))
}

func TestWaitForChannel(t *testing.T) {
	ch := make(chan int, 1)
	ch <- 42
	v, ok := WaitForChannel(ch, time.Second)
	require.True(t, ok)
	assert.Equal(t, 42, v)

	_, ok = WaitForChannel(make(chan int), 20*time.Millisecond)
	assert.False(t, ok)
}

func TestRequestBuilders(t *testing.T) {
	req := NewRequest("s1", NewBrief("a"), NewBrief("b", "a"))
	require.NoError(t, req.Validate())
	assert.Equal(t, []string{"a"}, req.Briefs[1].DependsOn)
}

func TestCallRecorder(t *testing.T) {
	rec := NewCallRecorder()
	rec.Record("a")
	rec.Record("b")
	rec.Record("a")

	assert.Equal(t, 2, rec.Calls("a"))
	assert.Equal(t, 3, rec.Total())
	assert.Equal(t, []string{"a", "b", "a"}, rec.Order())
}
