package webhook

import (
	"context"
	"time"

	"go-qbsync/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// eventRetention bounds how long idempotency markers live. Provider
// redelivery windows are measured in days.
const eventRetention = 7 * 24 * time.Hour

type ProcessedEventRepository interface {
	// MarkProcessed inserts the idempotency marker. Returns false when the
	// key already exists, meaning another delivery owns this entity.
	MarkProcessed(ctx context.Context, event *ProcessedEvent) (bool, error)
	// Release removes a marker after a failed dispatch so the provider's
	// redelivery of the same event gets another attempt.
	Release(ctx context.Context, key string) error
	EnsureIndexes(ctx context.Context) error
}

type ProcessedEventRepositoryImpl struct {
	collection *mongo.Collection
}

func NewProcessedEventRepository(db *database.MongodbDB) ProcessedEventRepository {
	return &ProcessedEventRepositoryImpl{
		collection: db.DB.Collection("webhook_events"),
	}
}

func (r *ProcessedEventRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "key", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_key"),
		},
		{
			Keys:    bson.D{{Key: "processed_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(eventRetention.Seconds())).SetName("ttl_processed_at"),
		},
	})
	return err
}

func (r *ProcessedEventRepositoryImpl) MarkProcessed(ctx context.Context, event *ProcessedEvent) (bool, error) {
	if event.ProcessedAt.IsZero() {
		event.ProcessedAt = time.Now()
	}

	_, err := r.collection.InsertOne(ctx, event)
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *ProcessedEventRepositoryImpl) Release(ctx context.Context, key string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"key": key})
	return err
}
