package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	err := NewError(ErrCycleDetected, "cycle involving node a")
	assert.Equal(t, "[CYCLE_DETECTED] cycle involving node a", err.Error())

	cause := errors.New("boom")
	err = NewError(ErrExecutionFailed, "executor failed").WithCause(cause)
	assert.Contains(t, err.Error(), "EXECUTION_FAILED")
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestError_Builders(t *testing.T) {
	err := NewErrorf(ErrTimeout, "job timed out after %dms", 50).
		WithRetryable(true).
		WithNodeID("fetch")

	assert.Equal(t, ErrTimeout, err.Code)
	assert.Equal(t, "job timed out after 50ms", err.Message)
	assert.Equal(t, "fetch", err.NodeID)
	assert.True(t, IsRetryable(err))
}

func TestGetErrorCode(t *testing.T) {
	assert.Equal(t, ErrSelfDependency, GetErrorCode(NewError(ErrSelfDependency, "x")))
	assert.Equal(t, ErrorCode(""), GetErrorCode(errors.New("plain")))
	assert.False(t, IsRetryable(errors.New("plain")))
}
