package types

import "fmt"

// ErrorCode represents a unified error code across the framework.
type ErrorCode string

// Graph validation error codes
const (
	ErrInvalidRequest    ErrorCode = "INVALID_REQUEST"
	ErrDuplicateBrief    ErrorCode = "DUPLICATE_BRIEF"
	ErrSelfDependency    ErrorCode = "SELF_DEPENDENCY"
	ErrMissingDependency ErrorCode = "MISSING_DEPENDENCY"
	ErrCycleDetected     ErrorCode = "CYCLE_DETECTED"
	ErrGraphTooLarge     ErrorCode = "GRAPH_TOO_LARGE"
	ErrGraphTooDeep      ErrorCode = "GRAPH_TOO_DEEP"
)

// Execution error codes
const (
	ErrInvalidTransition ErrorCode = "INVALID_TRANSITION"
	ErrTimeout           ErrorCode = "TIMEOUT"
	ErrExecutionFailed   ErrorCode = "EXECUTION_FAILED"
	ErrCircuitOpen       ErrorCode = "CIRCUIT_OPEN"
	ErrInternalError     ErrorCode = "INTERNAL_ERROR"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	NodeID    string    `json:"node_id,omitempty"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewErrorf creates a new Error with a formatted message.
func NewErrorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithNodeID tags the error with the graph node it belongs to.
func (e *Error) WithNodeID(nodeID string) *Error {
	e.NodeID = nodeID
	return e
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}
