// Package delegraph provides a top-level convenience entry point for
// running delegation graphs with minimal boilerplate.
//
// Usage:
//
//	import "github.com/verdantlabs/delegraph"
//
//	sched, err := delegraph.New(myExecutor)
//	result, err := sched.RunDelegation(ctx, &types.Request{...})
//
// This is a thin wrapper around [scheduler.New]; both produce identical
// results. Use this package when you prefer the shorter import path.
package delegraph

import (
	"context"

	"github.com/verdantlabs/delegraph/scheduler"
	"github.com/verdantlabs/delegraph/types"
)

// Executor is the caller-supplied function that performs one job attempt.
type Executor = scheduler.Executor

// Option configures the scheduler created by [New].
type Option = scheduler.Option

// Config controls scheduling behavior.
type Config = scheduler.Config

// Result is the outcome of one delegation run.
type Result = scheduler.Result

// New creates a [scheduler.Scheduler] around the given executor.
func New(executor Executor, opts ...Option) (*scheduler.Scheduler, error) {
	return scheduler.New(executor, opts...)
}

// Run builds a one-off scheduler and executes a single delegation request.
// Use [New] directly when the scheduler (and its circuit breaker) should
// live across runs.
func Run(ctx context.Context, executor Executor, req *types.Request, opts ...Option) (*Result, error) {
	sched, err := New(executor, opts...)
	if err != nil {
		return nil, err
	}
	return sched.RunDelegation(ctx, req)
}

// Re-export scheduler options so callers never need to import scheduler/.

// WithConfig replaces the default scheduling configuration.
var WithConfig = scheduler.WithConfig

// WithLogger sets a custom zap logger.
var WithLogger = scheduler.WithLogger

// WithStore sets the job store backend.
var WithStore = scheduler.WithStore

// WithCircuitBreaker shares a circuit breaker across schedulers or runs.
var WithCircuitBreaker = scheduler.WithCircuitBreaker

// WithMetrics attaches a Prometheus metrics collector.
var WithMetrics = scheduler.WithMetrics

// DefaultConfig returns the default scheduling configuration.
var DefaultConfig = scheduler.DefaultConfig
