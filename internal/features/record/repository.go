package record

import (
	"context"
	"time"

	"go-qbsync/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository interface {
	Get(ctx context.Context, entityType, internalID string) (*Record, error)
	Upsert(ctx context.Context, rec *Record) error
	ListUnsynced(ctx context.Context, entityType string) ([]Record, error)
	SetSyncStatus(ctx context.Context, entityType, internalID, status, syncErr string) error
	Deactivate(ctx context.Context, entityType, internalID string) error
	EnsureIndexes(ctx context.Context) error
}

type RepositoryImpl struct {
	collection *mongo.Collection
}

func NewRepository(db *database.MongodbDB) Repository {
	return &RepositoryImpl{
		collection: db.DB.Collection("records"),
	}
}

func (r *RepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "entity_type", Value: 1},
				{Key: "internal_id", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("uniq_record"),
		},
		{
			Keys: bson.D{
				{Key: "entity_type", Value: 1},
				{Key: "sync_status", Value: 1},
			},
			Options: options.Index().SetName("idx_sync_status"),
		},
	})
	return err
}

func (r *RepositoryImpl) Get(ctx context.Context, entityType, internalID string) (*Record, error) {
	var rec Record
	err := r.collection.FindOne(ctx, bson.M{
		"entity_type": entityType,
		"internal_id": internalID,
	}).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Upsert writes the record wholesale, keyed by (entity_type, internal_id).
// Pull applies remote state through this path: last writer wins.
func (r *RepositoryImpl) Upsert(ctx context.Context, rec *Record) error {
	rec.UpdatedAt = time.Now()

	filter := bson.M{
		"entity_type": rec.EntityType,
		"internal_id": rec.InternalID,
	}
	_, err := r.collection.ReplaceOne(ctx, filter, rec, options.Replace().SetUpsert(true))
	return err
}

// ListUnsynced returns active records that still need a push: freshly edited
// ones (pending) and previously failed ones (error).
func (r *RepositoryImpl) ListUnsynced(ctx context.Context, entityType string) ([]Record, error) {
	filter := bson.M{
		"entity_type": entityType,
		"active":      true,
		"sync_status": bson.M{"$ne": "synced"},
	}
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []Record
	if err = cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *RepositoryImpl) SetSyncStatus(ctx context.Context, entityType, internalID, status, syncErr string) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"entity_type": entityType, "internal_id": internalID},
		bson.M{"$set": bson.M{
			"sync_status": status,
			"sync_error":  syncErr,
			"updated_at":  time.Now(),
		}})
	return err
}

// Deactivate soft-deletes an internal record after a provider-side deletion.
// The row stays behind for audit history.
func (r *RepositoryImpl) Deactivate(ctx context.Context, entityType, internalID string) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"entity_type": entityType, "internal_id": internalID},
		bson.M{"$set": bson.M{
			"active":     false,
			"updated_at": time.Now(),
		}})
	return err
}
