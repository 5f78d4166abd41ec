// Package config loads the delegraph service configuration from YAML
// files with environment variable overrides.
//
// Usage:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("DELEGRAPH").
//	    Load()
//
// Precedence: defaults, then the YAML file, then environment variables.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete service configuration.
type Config struct {
	// Scheduler controls delegation execution.
	Scheduler SchedulerConfig `yaml:"scheduler" env:"SCHEDULER"`

	// Store selects and configures the job store backend.
	Store StoreConfig `yaml:"store" env:"STORE"`

	// Cleanup controls retention of terminal jobs.
	Cleanup CleanupConfig `yaml:"cleanup" env:"CLEANUP"`

	// Log configures structured logging.
	Log LogConfig `yaml:"log" env:"LOG"`

	// Metrics configures Prometheus metrics.
	Metrics MetricsConfig `yaml:"metrics" env:"METRICS"`

	// Telemetry configures OpenTelemetry tracing export.
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// SchedulerConfig mirrors scheduler.Config for file/env loading.
type SchedulerConfig struct {
	// MaxConcurrentJobs caps the number of jobs dispatched per batch.
	MaxConcurrentJobs int `yaml:"max_concurrent_jobs" env:"MAX_CONCURRENT_JOBS"`
	// JobTimeout is the per-attempt execution timeout.
	JobTimeout time.Duration `yaml:"job_timeout" env:"JOB_TIMEOUT"`
	// MaxRetryAttempts is the number of requeues before a job fails.
	MaxRetryAttempts int `yaml:"max_retry_attempts" env:"MAX_RETRY_ATTEMPTS"`
	// FailureThreshold opens the circuit breaker after this many
	// consecutive failures.
	FailureThreshold int `yaml:"failure_threshold" env:"FAILURE_THRESHOLD"`
	// MaxGraphNodes caps briefs per request.
	MaxGraphNodes int `yaml:"max_graph_nodes" env:"MAX_GRAPH_NODES"`
	// MaxGraphDepth caps the longest dependency chain.
	MaxGraphDepth int `yaml:"max_graph_depth" env:"MAX_GRAPH_DEPTH"`
	// DispatchRPS rate-limits job dispatch. Zero disables.
	DispatchRPS float64 `yaml:"dispatch_rps" env:"DISPATCH_RPS"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	// Type: memory, redis, gorm, mongo.
	Type string `yaml:"type" env:"TYPE"`
	// Redis backend settings.
	Redis RedisConfig `yaml:"redis" env:"REDIS"`
	// Database backend settings (gorm).
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`
	// Mongo backend settings.
	Mongo MongoConfig `yaml:"mongo" env:"MONGO"`
}

// RedisConfig configures the Redis job store.
type RedisConfig struct {
	// Address (host:port).
	Addr string `yaml:"addr" env:"ADDR"`
	// Password, optional.
	Password string `yaml:"password" env:"PASSWORD"`
	// Database number.
	DB int `yaml:"db" env:"DB"`
	// Connection pool size.
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
	// Prefix for all keys.
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
}

// DatabaseConfig configures the relational job store.
type DatabaseConfig struct {
	// Driver: sqlite, mysql, postgres.
	Driver string `yaml:"driver" env:"DRIVER"`
	// DSN is the connection string; a file path for sqlite.
	DSN string `yaml:"dsn" env:"DSN"`
	// AutoMigrate creates tables on open.
	AutoMigrate bool `yaml:"auto_migrate" env:"AUTO_MIGRATE"`
}

// MongoConfig configures the MongoDB job store.
type MongoConfig struct {
	// Connection URI.
	URI string `yaml:"uri" env:"URI"`
	// Database name.
	Database string `yaml:"database" env:"DATABASE"`
}

// CleanupConfig controls removal of old terminal jobs.
type CleanupConfig struct {
	// Enabled turns periodic cleanup on.
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OlderThan is the retention window for terminal jobs.
	OlderThan time.Duration `yaml:"older_than" env:"OLDER_THAN"`
	// Interval between cleanup passes.
	Interval time.Duration `yaml:"interval" env:"INTERVAL"`
}

// LogConfig configures zap logging.
type LogConfig struct {
	// Level: debug, info, warn, error.
	Level string `yaml:"level" env:"LEVEL"`
	// Format: json, console.
	Format string `yaml:"format" env:"FORMAT"`
	// Output paths, e.g. stdout or file paths.
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// EnableCaller annotates entries with the call site.
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// EnableStacktrace attaches stack traces to error entries.
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	// Enabled turns metrics collection on.
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// Namespace prefixes every metric name.
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	// Enabled turns OTLP export on.
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLPEndpoint is the collector address (host:port).
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// ServiceName reported with every span.
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// SampleRate in [0, 1].
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// Loader loads configuration with a builder-style API.
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader creates a loader with the DELEGRAPH env prefix.
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "DELEGRAPH",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath sets the YAML file path.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix overrides the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator appends a validation function run after loading.
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load resolves the configuration. Precedence: defaults, YAML file,
// environment variables.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile merges the YAML file into cfg. A missing file is not an
// error; defaults apply.
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv walks the struct recursively, mapping nested env tags
// to PREFIX_OUTER_INNER variable names.
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// time.Duration accepts "20s" style values.
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// Comma-separated string slices.
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// MustLoad loads configuration from path, panicking on failure. Intended
// for initialization only.
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}
