package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/verdantlabs/delegraph/types"
)

// Common errors
var (
	ErrNotFound     = errors.New("not found")
	ErrStoreClosed  = errors.New("store is closed")
	ErrInvalidInput = errors.New("invalid input")
)

// StoreType represents the type of storage backend.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeRedis  StoreType = "redis"
	StoreTypeGorm   StoreType = "gorm"
	StoreTypeMongo  StoreType = "mongo"
)

// RedisStoreConfig contains Redis-specific configuration.
type RedisStoreConfig struct {
	// Addr is the Redis server address (host:port).
	Addr string `json:"addr" yaml:"addr"`
	// Password is the Redis password (optional).
	Password string `json:"password" yaml:"password"`
	// DB is the Redis database number.
	DB int `json:"db" yaml:"db"`
	// PoolSize is the connection pool size.
	PoolSize int `json:"pool_size" yaml:"pool_size"`
	// KeyPrefix is the prefix for all Redis keys.
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix"`
}

// DatabaseStoreConfig contains relational database configuration.
type DatabaseStoreConfig struct {
	// Driver selects the dialect: sqlite, mysql, postgres.
	Driver string `json:"driver" yaml:"driver"`
	// DSN is the connection string. For sqlite this is the file path.
	DSN string `json:"dsn" yaml:"dsn"`
	// AutoMigrate creates the job/event tables on open.
	AutoMigrate bool `json:"auto_migrate" yaml:"auto_migrate"`
	// MaxIdleConns caps idle pooled connections. Zero uses a default.
	MaxIdleConns int `json:"max_idle_conns" yaml:"max_idle_conns"`
	// MaxOpenConns caps open connections. Zero uses a default.
	MaxOpenConns int `json:"max_open_conns" yaml:"max_open_conns"`
	// ConnMaxLifetime bounds connection reuse. Zero uses a default.
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"`
}

// MongoStoreConfig contains MongoDB configuration.
type MongoStoreConfig struct {
	// URI is the MongoDB connection string.
	URI string `json:"uri" yaml:"uri"`
	// Database is the database name.
	Database string `json:"database" yaml:"database"`
}

// StoreConfig is the configuration shared by all store implementations.
type StoreConfig struct {
	// Type is the storage backend type.
	Type StoreType `json:"type" yaml:"type"`
	// Redis configuration (only used when Type is "redis").
	Redis RedisStoreConfig `json:"redis" yaml:"redis"`
	// Database configuration (only used when Type is "gorm").
	Database DatabaseStoreConfig `json:"database" yaml:"database"`
	// Mongo configuration (only used when Type is "mongo").
	Mongo MongoStoreConfig `json:"mongo" yaml:"mongo"`
}

// DefaultStoreConfig returns the default store configuration.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Type: StoreTypeMemory,
		Redis: RedisStoreConfig{
			Addr:      "localhost:6379",
			DB:        0,
			PoolSize:  10,
			KeyPrefix: "delegraph:",
		},
		Database: DatabaseStoreConfig{
			Driver:      "sqlite",
			DSN:         "./data/delegraph.db",
			AutoMigrate: true,
		},
		Mongo: MongoStoreConfig{
			URI:      "mongodb://localhost:27017",
			Database: "delegraph",
		},
	}
}

// Store is the base interface for all persistent stores.
type Store interface {
	// Close closes the store and releases resources.
	Close() error

	// Ping checks if the store is healthy.
	Ping(ctx context.Context) error
}

// JobStore persists delegation jobs and their audit trail. All writes are
// fire-and-forget from the scheduler's perspective: the scheduler logs
// persistence failures but never aborts a run on them.
type JobStore interface {
	Store

	// CreateJob persists a freshly built job record.
	CreateJob(ctx context.Context, job *types.Job) error

	// UpdateJob persists the job's current state after a transition.
	UpdateJob(ctx context.Context, job *types.Job) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*types.Job, error)

	// ListJobs retrieves jobs matching the filter criteria.
	ListJobs(ctx context.Context, filter JobFilter) ([]*types.Job, error)

	// AppendEvent appends a lifecycle event to the audit trail.
	AppendEvent(ctx context.Context, event *JobEvent) error

	// ListEvents retrieves the audit trail for a job in append order.
	ListEvents(ctx context.Context, jobID string) ([]*JobEvent, error)

	// Cleanup removes terminal jobs (and their events) older than the
	// given duration, returning the number of jobs removed.
	Cleanup(ctx context.Context, olderThan time.Duration) (int, error)
}

// JobEvent records one lifecycle transition of a job.
type JobEvent struct {
	// JobID is the job this event belongs to.
	JobID string `json:"job_id"`
	// NodeID is the graph-local node key.
	NodeID string `json:"node_id"`
	// SessionID is the session the delegation belongs to.
	SessionID string `json:"session_id"`
	// FromState is the state before the transition (empty on creation).
	FromState types.JobState `json:"from_state,omitempty"`
	// ToState is the state after the transition.
	ToState types.JobState `json:"to_state"`
	// Detail is a free-text description of the transition.
	Detail string `json:"detail,omitempty"`
	// Attempt is the attempt number at the time of the event.
	Attempt int `json:"attempt"`
	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`
}

// JobFilter defines criteria for filtering jobs.
type JobFilter struct {
	// SessionID filters by session.
	SessionID string `json:"session_id,omitempty"`
	// NodeID filters by graph node key.
	NodeID string `json:"node_id,omitempty"`
	// States filters by job state (any of).
	States []types.JobState `json:"states,omitempty"`
	// CreatedAfter filters jobs created after this time.
	CreatedAfter *time.Time `json:"created_after,omitempty"`
	// CreatedBefore filters jobs created before this time.
	CreatedBefore *time.Time `json:"created_before,omitempty"`
	// Limit is the maximum number of jobs to return.
	Limit int `json:"limit,omitempty"`
	// Offset is the number of jobs to skip.
	Offset int `json:"offset,omitempty"`
}

// Matches checks if a job matches the filter criteria.
func (f JobFilter) Matches(job *types.Job) bool {
	if f.SessionID != "" && job.SessionID != f.SessionID {
		return false
	}
	if f.NodeID != "" && job.NodeID != f.NodeID {
		return false
	}
	if len(f.States) > 0 {
		found := false
		for _, state := range f.States {
			if job.State == state {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.CreatedAfter != nil && job.CreatedAt.Before(*f.CreatedAfter) {
		return false
	}
	if f.CreatedBefore != nil && job.CreatedAt.After(*f.CreatedBefore) {
		return false
	}
	return true
}

// cloneJob returns a deep copy so stored records are insulated from
// later scheduler mutations of the live job.
func cloneJob(job *types.Job) *types.Job {
	clone := *job
	if job.StartedAt != nil {
		t := *job.StartedAt
		clone.StartedAt = &t
	}
	if job.CompletedAt != nil {
		t := *job.CompletedAt
		clone.CompletedAt = &t
	}
	if len(job.Brief.DependsOn) > 0 {
		clone.Brief.DependsOn = append([]string(nil), job.Brief.DependsOn...)
	}
	if len(job.Brief.Metadata) > 0 {
		clone.Brief.Metadata = make(map[string]string, len(job.Brief.Metadata))
		for k, v := range job.Brief.Metadata {
			clone.Brief.Metadata[k] = v
		}
	}
	return &clone
}
