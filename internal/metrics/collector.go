// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector aggregates the Prometheus metrics of the delegation scheduler.
type Collector struct {
	// Run metrics
	runsTotal   *prometheus.CounterVec
	runDuration prometheus.Histogram
	graphNodes  prometheus.Histogram
	graphDepth  prometheus.Histogram

	// Job metrics
	jobsTotal   *prometheus.CounterVec
	jobDuration prometheus.Histogram
	jobAttempts prometheus.Histogram

	// Scheduler loop metrics
	batchSize prometheus.Histogram

	// Circuit breaker metrics
	breakerTrips prometheus.Counter
	breakerOpen  prometheus.Gauge

	logger *zap.Logger
}

// NewCollector creates a collector registered on the default Prometheus
// registry.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	return NewCollectorWith(namespace, prometheus.DefaultRegisterer, logger)
}

// NewCollectorWith creates a collector registered on the given registerer.
// Tests pass a fresh registry to avoid duplicate registration panics.
func NewCollectorWith(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.runsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of delegation runs",
		},
		[]string{"outcome"},
	)

	c.runDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Delegation run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		},
	)

	c.graphNodes = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "graph_nodes",
			Help:      "Number of nodes per delegation graph",
			Buckets:   prometheus.LinearBuckets(1, 1, 8),
		},
	)

	c.graphDepth = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "graph_depth",
			Help:      "Longest dependency chain per delegation graph",
			Buckets:   prometheus.LinearBuckets(1, 1, 4),
		},
	)

	c.jobsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Total number of jobs by terminal state",
		},
		[]string{"state"},
	)

	c.jobDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Job execution duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 20, 60},
		},
	)

	c.jobAttempts = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_attempts",
			Help:      "Number of attempts per terminal job",
			Buckets:   prometheus.LinearBuckets(1, 1, 5),
		},
	)

	c.batchSize = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of jobs dispatched per scheduler batch",
			Buckets:   prometheus.LinearBuckets(1, 1, 8),
		},
	)

	c.breakerTrips = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_trips_total",
			Help:      "Total number of circuit breaker trips",
		},
	)

	c.breakerOpen = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_open",
			Help:      "Whether the circuit breaker is currently open (1) or closed (0)",
		},
	)

	return c
}

// RecordRun records a finished delegation run.
func (c *Collector) RecordRun(hasFailures bool, duration time.Duration) {
	outcome := "success"
	if hasFailures {
		outcome = "failure"
	}
	c.runsTotal.WithLabelValues(outcome).Inc()
	c.runDuration.Observe(duration.Seconds())
}

// RecordGraph records the shape of a freshly built graph.
func (c *Collector) RecordGraph(nodes, depth int) {
	c.graphNodes.Observe(float64(nodes))
	c.graphDepth.Observe(float64(depth))
}

// RecordJob records a job reaching a terminal state.
func (c *Collector) RecordJob(state string, attempts int, duration time.Duration) {
	c.jobsTotal.WithLabelValues(state).Inc()
	c.jobAttempts.Observe(float64(attempts))
	if duration > 0 {
		c.jobDuration.Observe(duration.Seconds())
	}
}

// RecordBatch records the size of a dispatched batch.
func (c *Collector) RecordBatch(size int) {
	c.batchSize.Observe(float64(size))
}

// RecordBreakerTrip records a circuit breaker trip.
func (c *Collector) RecordBreakerTrip() {
	c.breakerTrips.Inc()
	c.breakerOpen.Set(1)
}

// SetBreakerOpen updates the breaker state gauge.
func (c *Collector) SetBreakerOpen(open bool) {
	if open {
		c.breakerOpen.Set(1)
	} else {
		c.breakerOpen.Set(0)
	}
}
