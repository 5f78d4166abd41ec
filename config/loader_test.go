package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 2, cfg.Scheduler.MaxConcurrentJobs)
	assert.Equal(t, 20*time.Second, cfg.Scheduler.JobTimeout)
	assert.Equal(t, 1, cfg.Scheduler.MaxRetryAttempts)
	assert.Equal(t, 3, cfg.Scheduler.FailureThreshold)
	assert.Equal(t, 8, cfg.Scheduler.MaxGraphNodes)
	assert.Equal(t, 4, cfg.Scheduler.MaxGraphDepth)

	assert.Equal(t, "memory", cfg.Store.Type)
	assert.Equal(t, "localhost:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, "sqlite", cfg.Store.Database.Driver)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Store.Mongo.URI)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "delegraph", cfg.Metrics.Namespace)
}

func TestLoaderFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
scheduler:
  max_concurrent_jobs: 4
  job_timeout: 45s
  failure_threshold: 5
store:
  type: redis
  redis:
    addr: redis.internal:6380
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Scheduler.MaxConcurrentJobs)
	assert.Equal(t, 45*time.Second, cfg.Scheduler.JobTimeout)
	assert.Equal(t, 5, cfg.Scheduler.FailureThreshold)
	assert.Equal(t, "redis", cfg.Store.Type)
	assert.Equal(t, "redis.internal:6380", cfg.Store.Redis.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Values the file does not mention keep their defaults.
	assert.Equal(t, 1, cfg.Scheduler.MaxRetryAttempts)
	assert.Equal(t, 8, cfg.Scheduler.MaxGraphNodes)
}

func TestLoaderMissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/nonexistent/config.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Scheduler.MaxConcurrentJobs)
}

func TestLoaderInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scheduler: [not a map"), 0o644))

	_, err := NewLoader().WithConfigPath(path).Load()
	require.Error(t, err)
}

func TestLoaderEnvOverrides(t *testing.T) {
	t.Setenv("DELEGRAPH_SCHEDULER_MAX_CONCURRENT_JOBS", "8")
	t.Setenv("DELEGRAPH_SCHEDULER_JOB_TIMEOUT", "90s")
	t.Setenv("DELEGRAPH_STORE_TYPE", "gorm")
	t.Setenv("DELEGRAPH_STORE_DATABASE_DRIVER", "postgres")
	t.Setenv("DELEGRAPH_STORE_DATABASE_AUTO_MIGRATE", "false")
	t.Setenv("DELEGRAPH_LOG_OUTPUT_PATHS", "stdout, /var/log/delegraph.log")
	t.Setenv("DELEGRAPH_TELEMETRY_SAMPLE_RATE", "0.25")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Scheduler.MaxConcurrentJobs)
	assert.Equal(t, 90*time.Second, cfg.Scheduler.JobTimeout)
	assert.Equal(t, "gorm", cfg.Store.Type)
	assert.Equal(t, "postgres", cfg.Store.Database.Driver)
	assert.False(t, cfg.Store.Database.AutoMigrate)
	assert.Equal(t, []string{"stdout", "/var/log/delegraph.log"}, cfg.Log.OutputPaths)
	assert.Equal(t, 0.25, cfg.Telemetry.SampleRate)
}

func TestLoaderEnvBeatsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scheduler:\n  max_concurrent_jobs: 4\n"), 0o644))

	t.Setenv("DELEGRAPH_SCHEDULER_MAX_CONCURRENT_JOBS", "16")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Scheduler.MaxConcurrentJobs)
}

func TestLoaderValidator(t *testing.T) {
	_, err := NewLoader().
		WithValidator(func(cfg *Config) error {
			if cfg.Scheduler.MaxGraphNodes > 100 {
				return assert.AnError
			}
			return nil
		}).
		Load()
	require.NoError(t, err)

	t.Setenv("DELEGRAPH_SCHEDULER_MAX_GRAPH_NODES", "200")
	_, err = NewLoader().
		WithValidator(func(cfg *Config) error {
			if cfg.Scheduler.MaxGraphNodes > 100 {
				return assert.AnError
			}
			return nil
		}).
		Load()
	require.Error(t, err)
}

func TestBuildLogger(t *testing.T) {
	logger, err := DefaultLogConfig().BuildLogger()
	require.NoError(t, err)
	logger.Sync()

	bad := DefaultLogConfig()
	bad.Level = "loud"
	_, err = bad.BuildLogger()
	require.Error(t, err)

	bad = DefaultLogConfig()
	bad.Format = "xml"
	_, err = bad.BuildLogger()
	require.Error(t, err)
}
