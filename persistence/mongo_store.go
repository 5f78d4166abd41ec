package persistence

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/verdantlabs/delegraph/types"
)

// mongoJobDoc is the document representation of a delegation job.
type mongoJobDoc struct {
	ID            string            `bson:"_id"`
	NodeID        string            `bson:"node_id"`
	SessionID     string            `bson:"session_id"`
	ParentMessage string            `bson:"parent_message,omitempty"`
	Title         string            `bson:"title,omitempty"`
	DependsOn     []string          `bson:"depends_on,omitempty"`
	Metadata      map[string]string `bson:"metadata,omitempty"`
	Timeout       int64             `bson:"timeout_ns,omitempty"`
	State         string            `bson:"state"`
	Attempt       int               `bson:"attempt"`
	Output        string            `bson:"output,omitempty"`
	Error         string            `bson:"error,omitempty"`
	CreatedAt     time.Time         `bson:"created_at"`
	UpdatedAt     time.Time         `bson:"updated_at"`
	StartedAt     *time.Time        `bson:"started_at,omitempty"`
	CompletedAt   *time.Time        `bson:"completed_at,omitempty"`
}

// mongoEventDoc is the document representation of a lifecycle event.
type mongoEventDoc struct {
	JobID     string    `bson:"job_id"`
	NodeID    string    `bson:"node_id"`
	SessionID string    `bson:"session_id"`
	FromState string    `bson:"from_state,omitempty"`
	ToState   string    `bson:"to_state"`
	Detail    string    `bson:"detail,omitempty"`
	Attempt   int       `bson:"attempt"`
	Timestamp time.Time `bson:"timestamp"`
	Seq       int64     `bson:"seq"`
}

// MongoJobStore is a MongoDB-based implementation of JobStore.
type MongoJobStore struct {
	client *mongo.Client
	jobs   *mongo.Collection
	events *mongo.Collection
	seq    atomic.Int64
}

// NewMongoJobStore connects to MongoDB and prepares the job and event
// collections.
func NewMongoJobStore(config StoreConfig) (*MongoJobStore, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(config.Mongo.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(config.Mongo.Database)
	return &MongoJobStore{
		client: client,
		jobs:   db.Collection("delegation_jobs"),
		events: db.Collection("delegation_job_events"),
	}, nil
}

// Close disconnects from MongoDB.
func (s *MongoJobStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Ping checks if the store is healthy.
func (s *MongoJobStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// CreateJob persists a freshly built job record.
func (s *MongoJobStore) CreateJob(ctx context.Context, job *types.Job) error {
	if job == nil || job.ID == "" {
		return ErrInvalidInput
	}
	_, err := s.jobs.InsertOne(ctx, toMongoJobDoc(job))
	return err
}

// UpdateJob persists the job's current state.
func (s *MongoJobStore) UpdateJob(ctx context.Context, job *types.Job) error {
	if job == nil || job.ID == "" {
		return ErrInvalidInput
	}

	res, err := s.jobs.ReplaceOne(ctx, bson.M{"_id": job.ID}, toMongoJobDoc(job))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *MongoJobStore) GetJob(ctx context.Context, jobID string) (*types.Job, error) {
	var doc mongoJobDoc
	err := s.jobs.FindOne(ctx, bson.M{"_id": jobID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromMongoJobDoc(&doc), nil
}

// ListJobs retrieves jobs matching the filter criteria.
func (s *MongoJobStore) ListJobs(ctx context.Context, filter JobFilter) ([]*types.Job, error) {
	query := bson.M{}
	if filter.SessionID != "" {
		query["session_id"] = filter.SessionID
	}
	if filter.NodeID != "" {
		query["node_id"] = filter.NodeID
	}
	if len(filter.States) > 0 {
		states := make([]string, len(filter.States))
		for i, state := range filter.States {
			states[i] = string(state)
		}
		query["state"] = bson.M{"$in": states}
	}
	created := bson.M{}
	if filter.CreatedAfter != nil {
		created["$gt"] = *filter.CreatedAfter
	}
	if filter.CreatedBefore != nil {
		created["$lt"] = *filter.CreatedBefore
	}
	if len(created) > 0 {
		query["created_at"] = created
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "node_id", Value: 1}})
	if filter.Offset > 0 {
		opts = opts.SetSkip(int64(filter.Offset))
	}
	if filter.Limit > 0 {
		opts = opts.SetLimit(int64(filter.Limit))
	}

	cursor, err := s.jobs.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	var docs []mongoJobDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	result := make([]*types.Job, len(docs))
	for i := range docs {
		result[i] = fromMongoJobDoc(&docs[i])
	}
	return result, nil
}

// AppendEvent appends a lifecycle event to the audit trail.
func (s *MongoJobStore) AppendEvent(ctx context.Context, event *JobEvent) error {
	if event == nil || event.JobID == "" {
		return ErrInvalidInput
	}

	doc := mongoEventDoc{
		JobID:     event.JobID,
		NodeID:    event.NodeID,
		SessionID: event.SessionID,
		FromState: string(event.FromState),
		ToState:   string(event.ToState),
		Detail:    event.Detail,
		Attempt:   event.Attempt,
		Timestamp: event.Timestamp,
		Seq:       s.seq.Add(1),
	}
	_, err := s.events.InsertOne(ctx, doc)
	return err
}

// ListEvents retrieves the audit trail for a job in append order.
func (s *MongoJobStore) ListEvents(ctx context.Context, jobID string) ([]*JobEvent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "seq", Value: 1}})
	cursor, err := s.events.Find(ctx, bson.M{"job_id": jobID}, opts)
	if err != nil {
		return nil, err
	}

	var docs []mongoEventDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	result := make([]*JobEvent, len(docs))
	for i, doc := range docs {
		result[i] = &JobEvent{
			JobID:     doc.JobID,
			NodeID:    doc.NodeID,
			SessionID: doc.SessionID,
			FromState: types.JobState(doc.FromState),
			ToState:   types.JobState(doc.ToState),
			Detail:    doc.Detail,
			Attempt:   doc.Attempt,
			Timestamp: doc.Timestamp,
		}
	}
	return result, nil
}

// Cleanup removes terminal jobs (and their events) older than the
// specified duration.
func (s *MongoJobStore) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	terminal := []string{
		string(types.JobStateCompleted),
		string(types.JobStateFailed),
		string(types.JobStateCancelled),
	}

	query := bson.M{
		"state":        bson.M{"$in": terminal},
		"completed_at": bson.M{"$lt": cutoff},
	}

	cursor, err := s.jobs.Find(ctx, query)
	if err != nil {
		return 0, err
	}
	var docs []mongoJobDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, nil
	}

	ids := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID
	}

	if _, err := s.events.DeleteMany(ctx, bson.M{"job_id": bson.M{"$in": ids}}); err != nil {
		return 0, err
	}
	res, err := s.jobs.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, err
	}
	return int(res.DeletedCount), nil
}

// toMongoJobDoc converts a runtime job to its document representation.
func toMongoJobDoc(job *types.Job) *mongoJobDoc {
	return &mongoJobDoc{
		ID:            job.ID,
		NodeID:        job.NodeID,
		SessionID:     job.SessionID,
		ParentMessage: job.ParentMessage,
		Title:         job.Brief.Title,
		DependsOn:     job.Brief.DependsOn,
		Metadata:      job.Brief.Metadata,
		Timeout:       int64(job.Brief.Constraints.Timeout),
		State:         string(job.State),
		Attempt:       job.Attempt,
		Output:        job.Output,
		Error:         job.Error,
		CreatedAt:     job.CreatedAt,
		UpdatedAt:     job.UpdatedAt,
		StartedAt:     job.StartedAt,
		CompletedAt:   job.CompletedAt,
	}
}

// fromMongoJobDoc converts a document back to a runtime job.
func fromMongoJobDoc(doc *mongoJobDoc) *types.Job {
	return &types.Job{
		ID:            doc.ID,
		NodeID:        doc.NodeID,
		SessionID:     doc.SessionID,
		ParentMessage: doc.ParentMessage,
		Brief: types.Brief{
			ID:          doc.NodeID,
			Title:       doc.Title,
			DependsOn:   doc.DependsOn,
			Constraints: types.BriefConstraints{Timeout: time.Duration(doc.Timeout)},
			Metadata:    doc.Metadata,
		},
		State:       types.JobState(doc.State),
		Attempt:     doc.Attempt,
		Output:      doc.Output,
		Error:       doc.Error,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
		StartedAt:   doc.StartedAt,
		CompletedAt: doc.CompletedAt,
	}
}

// Ensure MongoJobStore implements JobStore
var _ JobStore = (*MongoJobStore)(nil)
