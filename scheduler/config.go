package scheduler

import "time"

// Config controls scheduling behavior. The zero value is not usable;
// start from DefaultConfig.
type Config struct {
	// MaxConcurrentJobs caps the number of jobs dispatched per batch.
	MaxConcurrentJobs int `json:"max_concurrent_jobs" yaml:"max_concurrent_jobs"`

	// JobTimeout is the per-attempt execution timeout. A brief can
	// override it through its constraints.
	JobTimeout time.Duration `json:"job_timeout" yaml:"job_timeout"`

	// MaxRetryAttempts is the number of times a failed job is requeued
	// before it is marked failed.
	MaxRetryAttempts int `json:"max_retry_attempts" yaml:"max_retry_attempts"`

	// FailureThreshold is the number of consecutive job failures that
	// opens the circuit breaker. Zero or less disables the breaker.
	FailureThreshold int `json:"failure_threshold" yaml:"failure_threshold"`

	// MaxGraphNodes caps the number of briefs per request.
	MaxGraphNodes int `json:"max_graph_nodes" yaml:"max_graph_nodes"`

	// MaxGraphDepth caps the longest dependency chain per request.
	MaxGraphDepth int `json:"max_graph_depth" yaml:"max_graph_depth"`

	// DispatchRPS rate-limits job dispatch across batches.
	// Zero disables the limiter.
	DispatchRPS float64 `json:"dispatch_rps" yaml:"dispatch_rps"`
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentJobs: 2,
		JobTimeout:        20 * time.Second,
		MaxRetryAttempts:  1,
		FailureThreshold:  3,
		MaxGraphNodes:     8,
		MaxGraphDepth:     4,
	}
}

// normalized returns a copy with unusable values replaced by safe ones.
func (c Config) normalized() Config {
	if c.MaxConcurrentJobs < 1 {
		c.MaxConcurrentJobs = 1
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = 20 * time.Second
	}
	if c.MaxRetryAttempts < 0 {
		c.MaxRetryAttempts = 0
	}
	return c
}
