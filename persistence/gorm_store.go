package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/verdantlabs/delegraph/types"
)

// jobRecord is the relational representation of a delegation job.
type jobRecord struct {
	ID            string `gorm:"primaryKey;size:64"`
	NodeID        string `gorm:"size:128;index"`
	SessionID     string `gorm:"size:128;index"`
	ParentMessage string
	Title         string
	DependsOn     string // JSON-encoded list
	Metadata      string // JSON-encoded map
	Timeout       int64  // nanoseconds, 0 = service default
	State         string `gorm:"size:16;index"`
	Attempt       int
	Output        string
	Error         string
	CreatedAt     time.Time `gorm:"index"`
	UpdatedAt     time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
}

// TableName sets the table name for job records.
func (jobRecord) TableName() string { return "delegation_jobs" }

// jobEventRecord is the relational representation of a lifecycle event.
type jobEventRecord struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	JobID     string `gorm:"size:64;index"`
	NodeID    string `gorm:"size:128"`
	SessionID string `gorm:"size:128"`
	FromState string `gorm:"size:16"`
	ToState   string `gorm:"size:16"`
	Detail    string
	Attempt   int
	Timestamp time.Time
}

// TableName sets the table name for event records.
func (jobEventRecord) TableName() string { return "delegation_job_events" }

// GormJobStore is a relational implementation of JobStore supporting
// sqlite, mysql, and postgres through GORM dialectors.
type GormJobStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewGormJobStore opens a database connection for the configured driver
// and creates the job/event tables when AutoMigrate is enabled.
func NewGormJobStore(config StoreConfig, logger *zap.Logger) (*GormJobStore, error) {
	var dialector gorm.Dialector
	switch config.Database.Driver {
	case "sqlite", "":
		dialector = sqlite.Open(config.Database.DSN)
	case "mysql":
		dialector = mysql.Open(config.Database.DSN)
	case "postgres":
		dialector = postgres.Open(config.Database.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", config.Database.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := tunePool(db, config.Database); err != nil {
		return nil, err
	}

	store, err := NewGormJobStoreFromDB(db, logger)
	if err != nil {
		return nil, err
	}

	if config.Database.AutoMigrate {
		if err := db.AutoMigrate(&jobRecord{}, &jobEventRecord{}); err != nil {
			return nil, fmt.Errorf("failed to migrate job tables: %w", err)
		}
	}

	return store, nil
}

// tunePool applies connection pool limits to the underlying sql.DB.
// Zero values fall back to defaults suited to a small job store.
func tunePool(db *gorm.DB, config DatabaseStoreConfig) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	maxIdle := config.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 5
	}
	maxOpen := config.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 25
	}
	maxLifetime := config.ConnMaxLifetime
	if maxLifetime <= 0 {
		maxLifetime = time.Hour
	}

	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetConnMaxLifetime(maxLifetime)
	return nil
}

// NewGormJobStoreFromDB wraps an existing GORM connection. No migration
// is performed; the caller owns the schema.
func NewGormJobStoreFromDB(db *gorm.DB, logger *zap.Logger) (*GormJobStore, error) {
	if db == nil {
		return nil, ErrInvalidInput
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GormJobStore{
		db:     db,
		logger: logger.With(zap.String("component", "gorm_job_store")),
	}, nil
}

// Close closes the underlying database connection.
func (s *GormJobStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks if the store is healthy.
func (s *GormJobStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// CreateJob persists a freshly built job record.
func (s *GormJobStore) CreateJob(ctx context.Context, job *types.Job) error {
	if job == nil || job.ID == "" {
		return ErrInvalidInput
	}

	record, err := toJobRecord(job)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(record).Error
}

// UpdateJob persists the job's current state.
func (s *GormJobStore) UpdateJob(ctx context.Context, job *types.Job) error {
	if job == nil || job.ID == "" {
		return ErrInvalidInput
	}

	record, err := toJobRecord(job)
	if err != nil {
		return err
	}

	res := s.db.WithContext(ctx).
		Model(&jobRecord{}).
		Where("id = ?", record.ID).
		Select("*").
		Updates(record)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *GormJobStore) GetJob(ctx context.Context, jobID string) (*types.Job, error) {
	var record jobRecord
	err := s.db.WithContext(ctx).First(&record, "id = ?", jobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromJobRecord(&record)
}

// ListJobs retrieves jobs matching the filter criteria.
func (s *GormJobStore) ListJobs(ctx context.Context, filter JobFilter) ([]*types.Job, error) {
	query := s.db.WithContext(ctx).Model(&jobRecord{})

	if filter.SessionID != "" {
		query = query.Where("session_id = ?", filter.SessionID)
	}
	if filter.NodeID != "" {
		query = query.Where("node_id = ?", filter.NodeID)
	}
	if len(filter.States) > 0 {
		states := make([]string, len(filter.States))
		for i, state := range filter.States {
			states[i] = string(state)
		}
		query = query.Where("state IN ?", states)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var records []jobRecord
	if err := query.Order("created_at, node_id").Find(&records).Error; err != nil {
		return nil, err
	}

	result := make([]*types.Job, 0, len(records))
	for i := range records {
		job, err := fromJobRecord(&records[i])
		if err != nil {
			return nil, err
		}
		result = append(result, job)
	}
	return result, nil
}

// AppendEvent appends a lifecycle event to the audit trail.
func (s *GormJobStore) AppendEvent(ctx context.Context, event *JobEvent) error {
	if event == nil || event.JobID == "" {
		return ErrInvalidInput
	}

	record := jobEventRecord{
		JobID:     event.JobID,
		NodeID:    event.NodeID,
		SessionID: event.SessionID,
		FromState: string(event.FromState),
		ToState:   string(event.ToState),
		Detail:    event.Detail,
		Attempt:   event.Attempt,
		Timestamp: event.Timestamp,
	}
	return s.db.WithContext(ctx).Create(&record).Error
}

// ListEvents retrieves the audit trail for a job in append order.
func (s *GormJobStore) ListEvents(ctx context.Context, jobID string) ([]*JobEvent, error) {
	var records []jobEventRecord
	err := s.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("id").
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	result := make([]*JobEvent, len(records))
	for i, record := range records {
		result[i] = &JobEvent{
			JobID:     record.JobID,
			NodeID:    record.NodeID,
			SessionID: record.SessionID,
			FromState: types.JobState(record.FromState),
			ToState:   types.JobState(record.ToState),
			Detail:    record.Detail,
			Attempt:   record.Attempt,
			Timestamp: record.Timestamp,
		}
	}
	return result, nil
}

// Cleanup removes terminal jobs (and their events) older than the
// specified duration.
func (s *GormJobStore) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	terminal := []string{
		string(types.JobStateCompleted),
		string(types.JobStateFailed),
		string(types.JobStateCancelled),
	}

	var jobIDs []string
	err := s.db.WithContext(ctx).
		Model(&jobRecord{}).
		Where("state IN ? AND completed_at < ?", terminal, cutoff).
		Pluck("id", &jobIDs).Error
	if err != nil || len(jobIDs) == 0 {
		return 0, err
	}

	if err := s.db.WithContext(ctx).Where("job_id IN ?", jobIDs).Delete(&jobEventRecord{}).Error; err != nil {
		return 0, err
	}

	res := s.db.WithContext(ctx).Where("id IN ?", jobIDs).Delete(&jobRecord{})
	return int(res.RowsAffected), res.Error
}

// toJobRecord converts a runtime job to its relational representation.
func toJobRecord(job *types.Job) (*jobRecord, error) {
	dependsOn, err := json.Marshal(job.Brief.DependsOn)
	if err != nil {
		return nil, err
	}
	metadata, err := json.Marshal(job.Brief.Metadata)
	if err != nil {
		return nil, err
	}

	return &jobRecord{
		ID:            job.ID,
		NodeID:        job.NodeID,
		SessionID:     job.SessionID,
		ParentMessage: job.ParentMessage,
		Title:         job.Brief.Title,
		DependsOn:     string(dependsOn),
		Metadata:      string(metadata),
		Timeout:       int64(job.Brief.Constraints.Timeout),
		State:         string(job.State),
		Attempt:       job.Attempt,
		Output:        job.Output,
		Error:         job.Error,
		CreatedAt:     job.CreatedAt,
		UpdatedAt:     job.UpdatedAt,
		StartedAt:     job.StartedAt,
		CompletedAt:   job.CompletedAt,
	}, nil
}

// fromJobRecord converts a relational record back to a runtime job.
func fromJobRecord(record *jobRecord) (*types.Job, error) {
	var dependsOn []string
	if record.DependsOn != "" {
		if err := json.Unmarshal([]byte(record.DependsOn), &dependsOn); err != nil {
			return nil, err
		}
	}
	var metadata map[string]string
	if record.Metadata != "" {
		if err := json.Unmarshal([]byte(record.Metadata), &metadata); err != nil {
			return nil, err
		}
	}

	return &types.Job{
		ID:            record.ID,
		NodeID:        record.NodeID,
		SessionID:     record.SessionID,
		ParentMessage: record.ParentMessage,
		Brief: types.Brief{
			ID:          record.NodeID,
			Title:       record.Title,
			DependsOn:   dependsOn,
			Constraints: types.BriefConstraints{Timeout: time.Duration(record.Timeout)},
			Metadata:    metadata,
		},
		State:       types.JobState(record.State),
		Attempt:     record.Attempt,
		Output:      record.Output,
		Error:       record.Error,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
		StartedAt:   record.StartedAt,
		CompletedAt: record.CompletedAt,
	}, nil
}

// Ensure GormJobStore implements JobStore
var _ JobStore = (*GormJobStore)(nil)
