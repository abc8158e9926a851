package schedule

import (
	"context"
	"time"

	"go-qbsync/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ConfigRepository interface {
	Get(ctx context.Context, provider string) (*ScheduleConfig, error)
	List(ctx context.Context) ([]ScheduleConfig, error)
	ListEnabled(ctx context.Context) ([]ScheduleConfig, error)
	Upsert(ctx context.Context, cfg *ScheduleConfig) error
	UpdateRunTimes(ctx context.Context, provider string, lastRun, nextRun *time.Time) error
	EnsureIndexes(ctx context.Context) error
}

type ConfigRepositoryImpl struct {
	collection *mongo.Collection
}

func NewConfigRepository(db *database.MongodbDB) ConfigRepository {
	return &ConfigRepositoryImpl{
		collection: db.DB.Collection("schedule_configs"),
	}
}

func (r *ConfigRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "provider", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_provider"),
	})
	return err
}

func (r *ConfigRepositoryImpl) Get(ctx context.Context, provider string) (*ScheduleConfig, error) {
	var cfg ScheduleConfig
	err := r.collection.FindOne(ctx, bson.M{"provider": provider}).Decode(&cfg)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *ConfigRepositoryImpl) List(ctx context.Context) ([]ScheduleConfig, error) {
	return r.list(ctx, bson.M{})
}

func (r *ConfigRepositoryImpl) ListEnabled(ctx context.Context) ([]ScheduleConfig, error) {
	return r.list(ctx, bson.M{"enabled": true})
}

func (r *ConfigRepositoryImpl) list(ctx context.Context, filter bson.M) ([]ScheduleConfig, error) {
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "provider", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var configs []ScheduleConfig
	if err = cursor.All(ctx, &configs); err != nil {
		return nil, err
	}
	return configs, nil
}

func (r *ConfigRepositoryImpl) Upsert(ctx context.Context, cfg *ScheduleConfig) error {
	cfg.UpdatedAt = time.Now()

	_, err := r.collection.ReplaceOne(ctx,
		bson.M{"provider": cfg.Provider},
		cfg,
		options.Replace().SetUpsert(true))
	return err
}

func (r *ConfigRepositoryImpl) UpdateRunTimes(ctx context.Context, provider string, lastRun, nextRun *time.Time) error {
	updates := bson.M{}
	if lastRun != nil {
		updates["last_run"] = *lastRun
	}
	if nextRun != nil {
		updates["next_run"] = *nextRun
	}
	if len(updates) == 0 {
		return nil
	}

	_, err := r.collection.UpdateOne(ctx, bson.M{"provider": provider}, bson.M{"$set": updates})
	return err
}
