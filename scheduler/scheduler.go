package scheduler

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/verdantlabs/delegraph/graph"
	"github.com/verdantlabs/delegraph/internal/metrics"
	"github.com/verdantlabs/delegraph/persistence"
	"github.com/verdantlabs/delegraph/types"
)

// Cancellation reasons recorded on jobs that never got to run.
const (
	reasonBreakerOpen     = "circuit-breaker open"
	reasonUpstreamFailure = "unresolved dependencies after upstream failure"
	reasonRunCancelled    = "delegation run cancelled"
)

// Scheduler executes delegation requests. It is safe for concurrent use:
// each run owns its graph exclusively, and the shared circuit breaker and
// job store are internally synchronized.
type Scheduler struct {
	config    Config
	executor  Executor
	builder   *graph.Builder
	store     persistence.JobStore
	breaker   *CircuitBreaker
	lifecycle *lifecycle
	limiter   *rate.Limiter
	metrics   *metrics.Collector
	tracer    trace.Tracer
	logger    *zap.Logger
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithConfig replaces the default configuration.
func WithConfig(config Config) Option {
	return func(s *Scheduler) { s.config = config }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStore sets the job store. Defaults to an in-memory store.
func WithStore(store persistence.JobStore) Option {
	return func(s *Scheduler) { s.store = store }
}

// WithCircuitBreaker injects a shared breaker. Schedulers that should
// trip together pass the same instance.
func WithCircuitBreaker(breaker *CircuitBreaker) Option {
	return func(s *Scheduler) { s.breaker = breaker }
}

// WithMetrics enables Prometheus metrics collection.
func WithMetrics(collector *metrics.Collector) Option {
	return func(s *Scheduler) { s.metrics = collector }
}

// New creates a scheduler around the given executor.
func New(executor Executor, opts ...Option) (*Scheduler, error) {
	if executor == nil {
		return nil, types.NewError(types.ErrInvalidRequest, "executor must not be nil")
	}

	s := &Scheduler{
		config:   DefaultConfig(),
		executor: executor,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.config = s.config.normalized()
	s.logger = s.logger.With(zap.String("component", "scheduler"))

	if s.store == nil {
		s.store = persistence.NewMemoryJobStore()
	}
	if s.breaker == nil {
		s.breaker = NewCircuitBreaker(s.config.FailureThreshold, s.logger)
	}
	if s.config.DispatchRPS > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(s.config.DispatchRPS), s.config.MaxConcurrentJobs)
	}

	s.builder = graph.NewBuilder(s.config.MaxGraphNodes, s.config.MaxGraphDepth, s.logger)
	s.lifecycle = newLifecycle(s.store, s.logger)
	s.tracer = otel.Tracer("delegraph/scheduler")
	return s, nil
}

// Store returns the job store backing this scheduler.
func (s *Scheduler) Store() persistence.JobStore {
	return s.store
}

// Breaker returns the circuit breaker guarding this scheduler.
func (s *Scheduler) Breaker() *CircuitBreaker {
	return s.breaker
}

// RunDelegation validates the request, builds its graph, and executes it
// to completion. A validation failure returns an error before any job is
// created. Execution failures never fail the run itself; they are reported
// per job in the result.
func (s *Scheduler) RunDelegation(ctx context.Context, req *types.Request) (*Result, error) {
	start := time.Now()

	ctx, span := s.tracer.Start(ctx, "delegation.run")
	defer span.End()

	g, err := s.builder.Build(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "graph validation failed")
		return nil, err
	}

	span.SetAttributes(
		attribute.String("delegation.session_id", req.SessionID),
		attribute.Int("delegation.graph_nodes", g.Size()),
		attribute.Int("delegation.graph_depth", g.Depth()),
	)
	if s.metrics != nil {
		s.metrics.RecordGraph(g.Size(), g.Depth())
	}
	s.logger.Info("delegation run started",
		zap.String("session_id", req.SessionID),
		zap.Int("nodes", g.Size()),
		zap.Int("depth", g.Depth()))

	// Validation passed; the jobs now exist and get an audit trail.
	for _, nodeID := range g.TopologicalOrder() {
		job, _ := g.Job(nodeID)
		s.lifecycle.created(ctx, job)
	}

	s.runLoop(ctx, req, g)

	result := buildResult(req, g)
	if s.metrics != nil {
		s.metrics.RecordRun(result.HasFailures, time.Since(start))
	}
	span.SetAttributes(attribute.Bool("delegation.has_failures", result.HasFailures))
	s.logger.Info("delegation run finished",
		zap.String("session_id", req.SessionID),
		zap.Bool("has_failures", result.HasFailures),
		zap.Duration("duration", time.Since(start)))
	return result, nil
}

// runLoop drives the graph to completion batch by batch. Graph bookkeeping
// is mutated only between batches, on this goroutine.
func (s *Scheduler) runLoop(ctx context.Context, req *types.Request, g *graph.Graph) {
	for g.PendingCount() > 0 {
		if ctx.Err() != nil {
			s.cancelPending(ctx, g, reasonRunCancelled)
			return
		}
		if s.breaker.IsOpen() {
			if s.metrics != nil {
				s.metrics.SetBreakerOpen(true)
			}
			s.cancelPending(ctx, g, reasonBreakerOpen)
			return
		}

		ready := g.ReadyNodes()
		if len(ready) == 0 {
			// Nothing runnable and nothing running: the remaining jobs
			// can never become ready.
			s.cancelPending(ctx, g, reasonUpstreamFailure)
			return
		}
		if len(ready) > s.config.MaxConcurrentJobs {
			ready = ready[:s.config.MaxConcurrentJobs]
		}

		s.runBatch(ctx, req, g, ready)
	}
}

// runBatch dispatches the given nodes concurrently and applies their
// outcomes after all of them finish.
func (s *Scheduler) runBatch(ctx context.Context, req *types.Request, g *graph.Graph, nodeIDs []string) {
	if s.metrics != nil {
		s.metrics.RecordBatch(len(nodeIDs))
	}

	jobs := make([]*types.Job, 0, len(nodeIDs))
	for _, nodeID := range nodeIDs {
		job, ok := g.Job(nodeID)
		if !ok {
			continue
		}
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				break
			}
		}
		if err := s.lifecycle.transition(ctx, job, types.JobStateRunning, "dispatched"); err != nil {
			s.logger.Error("failed to dispatch job",
				zap.String("node_id", nodeID), zap.Error(err))
			continue
		}
		s.logger.Debug("job dispatched",
			zap.String("node_id", nodeID),
			zap.Int("attempt", job.Attempt))
		jobs = append(jobs, job)
	}

	results := make([]attemptResult, len(jobs))
	var group errgroup.Group
	for i, job := range jobs {
		i, job := i, job
		group.Go(func() error {
			results[i] = s.runAttempt(ctx, req, job)
			return nil
		})
	}
	_ = group.Wait()

	for i, job := range jobs {
		s.applyOutcome(ctx, g, job, results[i])
	}
}

// applyOutcome updates the job, the breaker, and the graph bookkeeping for
// one finished attempt. Runs between batches only.
func (s *Scheduler) applyOutcome(ctx context.Context, g *graph.Graph, job *types.Job, res attemptResult) {
	switch res.outcome {
	case attemptCompleted:
		job.Output = res.output
		if err := s.lifecycle.transition(ctx, job, types.JobStateCompleted, "executor succeeded"); err != nil {
			s.logger.Error("failed to complete job", zap.String("node_id", job.NodeID), zap.Error(err))
			return
		}
		s.breaker.RecordSuccess()
		if s.metrics != nil {
			s.metrics.SetBreakerOpen(false)
			s.metrics.RecordJob(string(types.JobStateCompleted), job.Attempt, job.Duration())
		}
		g.RemovePending(job.NodeID)
		for _, dependent := range g.Dependents(job.NodeID) {
			g.SatisfyDependency(dependent, job.NodeID)
		}

	case attemptCancelled:
		job.Error = reasonRunCancelled
		if err := s.lifecycle.transition(ctx, job, types.JobStateCancelled, reasonRunCancelled); err != nil {
			s.logger.Error("failed to cancel job", zap.String("node_id", job.NodeID), zap.Error(err))
			return
		}
		if s.metrics != nil {
			s.metrics.RecordJob(string(types.JobStateCancelled), job.Attempt, job.Duration())
		}
		g.RemovePending(job.NodeID)

	case attemptFailed:
		job.Error = res.err.Error()
		if job.Attempt <= s.config.MaxRetryAttempts {
			s.retry(ctx, job, res.err)
			return
		}

		if err := s.lifecycle.transition(ctx, job, types.JobStateFailed, job.Error); err != nil {
			s.logger.Error("failed to fail job", zap.String("node_id", job.NodeID), zap.Error(err))
			return
		}
		s.logger.Warn("job failed",
			zap.String("node_id", job.NodeID),
			zap.Int("attempt", job.Attempt),
			zap.Error(res.err))
		if s.breaker.RecordFailure() && s.metrics != nil {
			s.metrics.RecordBreakerTrip()
		}
		if s.metrics != nil {
			s.metrics.RecordJob(string(types.JobStateFailed), job.Attempt, job.Duration())
		}
		g.RemovePending(job.NodeID)
		s.cascadeCancel(ctx, g, job.NodeID)
	}
}

// retry requeues a failed attempt and bumps the attempt counter.
func (s *Scheduler) retry(ctx context.Context, job *types.Job, cause error) {
	detail := "attempt failed, retrying: " + cause.Error()
	if err := s.lifecycle.transition(ctx, job, types.JobStateQueued, detail); err != nil {
		s.logger.Error("failed to requeue job", zap.String("node_id", job.NodeID), zap.Error(err))
		return
	}
	job.Attempt++
	job.UpdatedAt = time.Now()
	s.lifecycle.update(ctx, job)
	s.logger.Warn("job attempt failed, retrying",
		zap.String("node_id", job.NodeID),
		zap.Int("next_attempt", job.Attempt),
		zap.Error(cause))
}

// cascadeCancel cancels every transitive dependent of a failed node. Those
// jobs can never satisfy their dependencies.
func (s *Scheduler) cascadeCancel(ctx context.Context, g *graph.Graph, rootID string) {
	queue := append([]string(nil), g.Dependents(rootID)...)
	for len(queue) > 0 {
		nodeID := queue[0]
		queue = queue[1:]

		job, ok := g.Job(nodeID)
		if !ok || job.IsTerminal() {
			continue
		}

		s.cancelJob(ctx, g, job, reasonUpstreamFailure)
		queue = append(queue, g.Dependents(nodeID)...)
	}
}

// cancelPending cancels every non-terminal job with the given reason.
func (s *Scheduler) cancelPending(ctx context.Context, g *graph.Graph, reason string) {
	for _, nodeID := range g.PendingNodes() {
		job, ok := g.Job(nodeID)
		if !ok || job.IsTerminal() {
			continue
		}
		s.cancelJob(ctx, g, job, reason)
	}
}

func (s *Scheduler) cancelJob(ctx context.Context, g *graph.Graph, job *types.Job, reason string) {
	job.Cancel()
	job.Error = reason
	if err := s.lifecycle.transition(ctx, job, types.JobStateCancelled, reason); err != nil {
		s.logger.Error("failed to cancel job", zap.String("node_id", job.NodeID), zap.Error(err))
		return
	}
	s.logger.Info("job cancelled",
		zap.String("node_id", job.NodeID),
		zap.String("reason", reason))
	if s.metrics != nil {
		s.metrics.RecordJob(string(types.JobStateCancelled), job.Attempt, job.Duration())
	}
	g.RemovePending(job.NodeID)
}
