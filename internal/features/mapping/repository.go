package mapping

import (
	"context"
	"time"

	"go-qbsync/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository interface {
	FindByExternalID(ctx context.Context, provider, entityType, externalID string) (*ExternalMapping, error)
	FindByInternalID(ctx context.Context, provider, entityType, internalID string) (*ExternalMapping, error)
	Create(ctx context.Context, m *ExternalMapping) error
	UpdateSyncState(ctx context.Context, m *ExternalMapping, status SyncStatus, syncErr string, at time.Time) error
	ListByProvider(ctx context.Context, provider string, limit int64) ([]ExternalMapping, error)
	EnsureIndexes(ctx context.Context) error
}

type RepositoryImpl struct {
	collection *mongo.Collection
}

func NewRepository(db *database.MongodbDB) Repository {
	return &RepositoryImpl{
		collection: db.DB.Collection("external_mappings"),
	}
}

// EnsureIndexes creates the two unique compound indexes that enforce the
// per-partition bijection. They are also the sole serialization point for
// racing webhook-triggered and poll-triggered creates of the same entity.
func (r *RepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "provider", Value: 1},
				{Key: "entity_type", Value: 1},
				{Key: "internal_id", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("uniq_internal"),
		},
		{
			Keys: bson.D{
				{Key: "provider", Value: 1},
				{Key: "entity_type", Value: 1},
				{Key: "external_id", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("uniq_external"),
		},
	})
	return err
}

func (r *RepositoryImpl) FindByExternalID(ctx context.Context, provider, entityType, externalID string) (*ExternalMapping, error) {
	return r.findOne(ctx, bson.M{
		"provider":    provider,
		"entity_type": entityType,
		"external_id": externalID,
	})
}

func (r *RepositoryImpl) FindByInternalID(ctx context.Context, provider, entityType, internalID string) (*ExternalMapping, error) {
	return r.findOne(ctx, bson.M{
		"provider":    provider,
		"entity_type": entityType,
		"internal_id": internalID,
	})
}

func (r *RepositoryImpl) findOne(ctx context.Context, filter bson.M) (*ExternalMapping, error) {
	var m ExternalMapping
	err := r.collection.FindOne(ctx, filter).Decode(&m)
	if err == mongo.ErrNoDocuments {
		return nil, ErrMappingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *RepositoryImpl) Create(ctx context.Context, m *ExternalMapping) error {
	if m.ID.IsZero() {
		m.ID = primitive.NewObjectID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	if m.SyncStatus == "" {
		m.SyncStatus = StatusSynced
	}

	_, err := r.collection.InsertOne(ctx, m)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateMapping
	}
	return err
}

func (r *RepositoryImpl) UpdateSyncState(ctx context.Context, m *ExternalMapping, status SyncStatus, syncErr string, at time.Time) error {
	updates := bson.M{
		"sync_status":  status,
		"last_sync_at": at,
		"sync_error":   syncErr,
	}

	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": m.ID}, bson.M{"$set": updates})
	if err == nil {
		m.SyncStatus = status
		m.SyncError = syncErr
		m.LastSyncAt = at
	}
	return err
}

func (r *RepositoryImpl) ListByProvider(ctx context.Context, provider string, limit int64) ([]ExternalMapping, error) {
	if limit <= 0 {
		limit = 100
	}
	opts := options.Find().SetSort(bson.D{{Key: "last_sync_at", Value: -1}}).SetLimit(limit)
	cursor, err := r.collection.Find(ctx, bson.M{"provider": provider}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var mappings []ExternalMapping
	if err = cursor.All(ctx, &mappings); err != nil {
		return nil, err
	}
	return mappings, nil
}
