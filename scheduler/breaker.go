package scheduler

import (
	"sync"

	"go.uber.org/zap"
)

// CircuitBreaker counts consecutive job failures across delegation runs.
// Once the count reaches the threshold the breaker opens and the scheduler
// stops dispatching; every pending job of the current and any subsequent
// run is cancelled until the breaker is reset.
//
// The breaker is process-wide state: share one instance across schedulers
// via WithCircuitBreaker to get cross-run protection.
type CircuitBreaker struct {
	threshold int
	failures  int
	logger    *zap.Logger
	mu        sync.Mutex
}

// NewCircuitBreaker creates a breaker that opens after threshold
// consecutive failures. A threshold of zero or less disables it.
func NewCircuitBreaker(threshold int, logger *zap.Logger) *CircuitBreaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CircuitBreaker{
		threshold: threshold,
		logger:    logger.With(zap.String("component", "circuit_breaker")),
	}
}

// RecordFailure registers a job failure and reports whether this failure
// tripped the breaker open.
func (b *CircuitBreaker) RecordFailure() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	if b.threshold > 0 && b.failures == b.threshold {
		b.logger.Warn("circuit breaker opened",
			zap.Int("consecutive_failures", b.failures),
			zap.Int("threshold", b.threshold))
		return true
	}
	return false
}

// RecordSuccess resets the consecutive failure count.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failures >= b.threshold && b.threshold > 0 {
		b.logger.Info("circuit breaker closed after success")
	}
	b.failures = 0
}

// IsOpen reports whether the breaker is open.
func (b *CircuitBreaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.threshold > 0 && b.failures >= b.threshold
}

// Failures returns the current consecutive failure count.
func (b *CircuitBreaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Reset clears the failure count, closing the breaker.
func (b *CircuitBreaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
}
