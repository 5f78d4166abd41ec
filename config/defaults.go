package config

import "time"

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Scheduler: DefaultSchedulerConfig(),
		Store:     DefaultStoreConfig(),
		Cleanup:   DefaultCleanupConfig(),
		Log:       DefaultLogConfig(),
		Metrics:   DefaultMetricsConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultSchedulerConfig returns the default scheduling limits.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		MaxConcurrentJobs: 2,
		JobTimeout:        20 * time.Second,
		MaxRetryAttempts:  1,
		FailureThreshold:  3,
		MaxGraphNodes:     8,
		MaxGraphDepth:     4,
	}
}

// DefaultStoreConfig returns the default store configuration.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Type: "memory",
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			DB:        0,
			PoolSize:  10,
			KeyPrefix: "delegraph:",
		},
		Database: DatabaseConfig{
			Driver:      "sqlite",
			DSN:         "./data/delegraph.db",
			AutoMigrate: true,
		},
		Mongo: MongoConfig{
			URI:      "mongodb://localhost:27017",
			Database: "delegraph",
		},
	}
}

// DefaultCleanupConfig returns the default retention settings.
func DefaultCleanupConfig() CleanupConfig {
	return CleanupConfig{
		Enabled:   false,
		OlderThan: 24 * time.Hour,
		Interval:  time.Hour,
	}
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		EnableCaller:     false,
		EnableStacktrace: false,
	}
}

// DefaultMetricsConfig returns the default metrics configuration.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   false,
		Namespace: "delegraph",
	}
}

// DefaultTelemetryConfig returns the default telemetry configuration.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "delegraph",
		SampleRate:   1.0,
	}
}
