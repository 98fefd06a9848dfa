package storage

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vitalio/medsearch/internal/models"
)

// JobStore persists the ingestion job history. Unlike the in-memory
// tracker, which only holds active jobs, the job store keeps terminal
// records for audit and status queries after completion.
type JobStore interface {
	Create(ctx context.Context, record *models.ProcessingRecord) error
	GetByID(ctx context.Context, documentID string) (*models.ProcessingRecord, error)
	GetByUserID(ctx context.Context, userID string, page, limit int) ([]*models.ProcessingRecord, error)
	Update(ctx context.Context, record *models.ProcessingRecord) error
}

// MongoJobStore is the MongoDB implementation of JobStore.
type MongoJobStore struct {
	collection *mongo.Collection
}

// NewMongoJobStore creates a MongoJobStore.
func NewMongoJobStore(db *mongo.Database, collectionName string) *MongoJobStore {
	return &MongoJobStore{
		collection: db.Collection(collectionName),
	}
}

// Create inserts a new job record.
func (s *MongoJobStore) Create(ctx context.Context, record *models.ProcessingRecord) error {
	if record.SubmittedAt.IsZero() {
		record.SubmittedAt = time.Now()
	}
	if _, err := s.collection.InsertOne(ctx, record); err != nil {
		return fmt.Errorf("failed to insert job record: %w", err)
	}
	return nil
}

// GetByID retrieves the job record of a document. A missing record yields
// (nil, nil).
func (s *MongoJobStore) GetByID(ctx context.Context, documentID string) (*models.ProcessingRecord, error) {
	var record models.ProcessingRecord
	err := s.collection.FindOne(ctx, bson.M{"_id": documentID}).Decode(&record)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query job record: %w", err)
	}
	return &record, nil
}

// GetByUserID retrieves a paginated list of job records for a user, newest
// first.
func (s *MongoJobStore) GetByUserID(ctx context.Context, userID string, page, limit int) ([]*models.ProcessingRecord, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "submitted_at", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cursor, err := s.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list job records: %w", err)
	}
	defer cursor.Close(ctx)

	var records []*models.ProcessingRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode job records: %w", err)
	}
	return records, nil
}

// Update overwrites the mutable fields of a job record.
func (s *MongoJobStore) Update(ctx context.Context, record *models.ProcessingRecord) error {
	update := bson.M{
		"$set": bson.M{
			"status":   record.Status,
			"progress": record.Progress,
			"message":  record.Message,
		},
	}
	if record.Status.Terminal() {
		if record.CompletedAt.IsZero() {
			record.CompletedAt = time.Now()
		}
		update["$set"].(bson.M)["completed_at"] = record.CompletedAt
	}

	_, err := s.collection.UpdateOne(ctx, bson.M{"_id": record.DocumentID}, update)
	if err != nil {
		return fmt.Errorf("failed to update job record: %w", err)
	}
	return nil
}

var _ JobStore = (*MongoJobStore)(nil)
