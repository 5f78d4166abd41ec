package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/verdantlabs/delegraph/types"
)

// RedisJobStore is a Redis-based implementation of JobStore.
// Jobs are stored as JSON values with sorted-set indexes by state and
// session; events are stored as an append-only list per job.
type RedisJobStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisJobStore creates a new Redis-based job store.
func NewRedisJobStore(config StoreConfig) (*RedisJobStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Redis.Addr,
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
		PoolSize: config.Redis.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	keyPrefix := config.Redis.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "delegraph:"
	}

	return &RedisJobStore{
		client:    client,
		keyPrefix: keyPrefix + "job:",
	}, nil
}

// Close closes the store.
func (s *RedisJobStore) Close() error {
	return s.client.Close()
}

// Ping checks if the store is healthy.
func (s *RedisJobStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// jobKey returns the Redis key for a job's data.
func (s *RedisJobStore) jobKey(jobID string) string {
	return s.keyPrefix + "data:" + jobID
}

// stateKey returns the Redis key for a state index.
func (s *RedisJobStore) stateKey(state types.JobState) string {
	return s.keyPrefix + "state:" + string(state)
}

// sessionKey returns the Redis key for a session's job index.
func (s *RedisJobStore) sessionKey(sessionID string) string {
	return s.keyPrefix + "session:" + sessionID
}

// allJobsKey returns the Redis key for the all-jobs index.
func (s *RedisJobStore) allJobsKey() string {
	return s.keyPrefix + "all"
}

// eventsKey returns the Redis key for a job's event list.
func (s *RedisJobStore) eventsKey(jobID string) string {
	return s.keyPrefix + "events:" + jobID
}

// CreateJob persists a freshly built job record.
func (s *RedisJobStore) CreateJob(ctx context.Context, job *types.Job) error {
	if job == nil || job.ID == "" {
		return ErrInvalidInput
	}
	return s.save(ctx, job, "")
}

// UpdateJob persists the job's current state.
func (s *RedisJobStore) UpdateJob(ctx context.Context, job *types.Job) error {
	if job == nil || job.ID == "" {
		return ErrInvalidInput
	}

	old, err := s.GetJob(ctx, job.ID)
	if err != nil {
		return err
	}
	return s.save(ctx, job, old.State)
}

// save writes the job data and refreshes indexes. oldState, when non-empty
// and different from the current state, is removed from its index.
func (s *RedisJobStore) save(ctx context.Context, job *types.Job, oldState types.JobState) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	score := float64(job.CreatedAt.UnixNano())
	pipe := s.client.Pipeline()

	pipe.Set(ctx, s.jobKey(job.ID), data, 0)
	if oldState != "" && oldState != job.State {
		pipe.ZRem(ctx, s.stateKey(oldState), job.ID)
	}
	pipe.ZAdd(ctx, s.stateKey(job.State), redis.Z{Score: score, Member: job.ID})
	pipe.ZAdd(ctx, s.allJobsKey(), redis.Z{Score: score, Member: job.ID})
	if job.SessionID != "" {
		pipe.ZAdd(ctx, s.sessionKey(job.SessionID), redis.Z{Score: score, Member: job.ID})
	}

	_, err = pipe.Exec(ctx)
	return err
}

// GetJob retrieves a job by ID.
func (s *RedisJobStore) GetJob(ctx context.Context, jobID string) (*types.Job, error) {
	data, err := s.client.Get(ctx, s.jobKey(jobID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var job types.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// ListJobs retrieves jobs matching the filter criteria.
func (s *RedisJobStore) ListJobs(ctx context.Context, filter JobFilter) ([]*types.Job, error) {
	var jobIDs []string
	var err error

	// Pick the narrowest index available.
	switch {
	case len(filter.States) == 1:
		jobIDs, err = s.client.ZRange(ctx, s.stateKey(filter.States[0]), 0, -1).Result()
	case filter.SessionID != "":
		jobIDs, err = s.client.ZRange(ctx, s.sessionKey(filter.SessionID), 0, -1).Result()
	default:
		jobIDs, err = s.client.ZRange(ctx, s.allJobsKey(), 0, -1).Result()
	}
	if err != nil {
		return nil, err
	}

	result := make([]*types.Job, 0, len(jobIDs))
	for _, jobID := range jobIDs {
		job, err := s.GetJob(ctx, jobID)
		if err != nil {
			continue
		}
		if filter.Matches(job) {
			result = append(result, job)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].NodeID < result[j].NodeID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return paginate(result, filter.Offset, filter.Limit), nil
}

// AppendEvent appends a lifecycle event to the job's event list.
func (s *RedisJobStore) AppendEvent(ctx context.Context, event *JobEvent) error {
	if event == nil || event.JobID == "" {
		return ErrInvalidInput
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return s.client.RPush(ctx, s.eventsKey(event.JobID), data).Err()
}

// ListEvents retrieves the audit trail for a job in append order.
func (s *RedisJobStore) ListEvents(ctx context.Context, jobID string) ([]*JobEvent, error) {
	items, err := s.client.LRange(ctx, s.eventsKey(jobID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	result := make([]*JobEvent, 0, len(items))
	for _, item := range items {
		var event JobEvent
		if err := json.Unmarshal([]byte(item), &event); err != nil {
			return nil, err
		}
		result = append(result, &event)
	}
	return result, nil
}

// Cleanup removes terminal jobs (and their events) older than the
// specified duration.
func (s *RedisJobStore) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan).UnixNano()
	count := 0

	terminal := []types.JobState{
		types.JobStateCompleted,
		types.JobStateFailed,
		types.JobStateCancelled,
	}

	for _, state := range terminal {
		jobIDs, err := s.client.ZRangeByScore(ctx, s.stateKey(state), &redis.ZRangeBy{
			Min: "-inf",
			Max: strconv.FormatInt(cutoff, 10),
		}).Result()
		if err != nil {
			continue
		}

		for _, jobID := range jobIDs {
			if err := s.deleteJob(ctx, jobID, state); err == nil {
				count++
			}
		}
	}

	return count, nil
}

// deleteJob removes a job's data, events, and index entries.
func (s *RedisJobStore) deleteJob(ctx context.Context, jobID string, state types.JobState) error {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.jobKey(jobID))
	pipe.Del(ctx, s.eventsKey(jobID))
	pipe.ZRem(ctx, s.stateKey(state), jobID)
	pipe.ZRem(ctx, s.allJobsKey(), jobID)
	if job.SessionID != "" {
		pipe.ZRem(ctx, s.sessionKey(job.SessionID), jobID)
	}

	_, err = pipe.Exec(ctx)
	return err
}

// Ensure RedisJobStore implements JobStore
var _ JobStore = (*RedisJobStore)(nil)
