package mongodb

import (
	"context"
	"errors"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"pluginrelay/internal/domain/entity"
	"pluginrelay/internal/domain/repository"
	"pluginrelay/internal/infrastructure/metrics"
)

const (
	backendName    = "mongo"
	collectionName = "generations"
)

type MongoGenerationRepo struct {
	col    *mongo.Collection
	logger *slog.Logger
}

var _ repository.GenerationRepository = (*MongoGenerationRepo)(nil)

func NewMongoGenerationRepo(ctx context.Context, db *mongo.Database, logger *slog.Logger) *MongoGenerationRepo {
	col := db.Collection(collectionName)

	_, err := col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{bson.E{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{bson.E{Key: "created_at", Value: -1}}},
	})
	if err != nil {
		logger.Warn("create generation indexes failed", "err", err)
	}

	return &MongoGenerationRepo{
		col:    col,
		logger: logger,
	}
}

func (r *MongoGenerationRepo) Save(ctx context.Context, g *entity.Generation) error {
	metrics.IncStoreOp(backendName, "put")

	_, err := r.col.ReplaceOne(ctx, bson.M{"id": g.ID}, g, options.Replace().SetUpsert(true))
	if err != nil {
		metrics.IncError("mongo_generation_repo", "save_error")
		return err
	}
	return nil
}

func (r *MongoGenerationRepo) GetByID(ctx context.Context, id string) (*entity.Generation, error) {
	metrics.IncStoreOp(backendName, "get")

	var g entity.Generation
	err := r.col.FindOne(ctx, bson.M{"id": id}).Decode(&g)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrGenerationNotFound
		}
		metrics.IncError("mongo_generation_repo", "get_error")
		return nil, err
	}
	return &g, nil
}

func (r *MongoGenerationRepo) List(ctx context.Context, limit int) ([]*entity.Generation, error) {
	metrics.IncStoreOp(backendName, "list")

	opts := options.Find().SetSort(bson.D{bson.E{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := r.col.Find(ctx, bson.D{}, opts)
	if err != nil {
		metrics.IncError("mongo_generation_repo", "list_error")
		return nil, err
	}
	defer func() {
		if err := cur.Close(ctx); err != nil {
			r.logger.Warn("close cursor failed", "err", err)
		}
	}()

	var generations []*entity.Generation
	for cur.Next(ctx) {
		var g entity.Generation
		if err := cur.Decode(&g); err != nil {
			metrics.IncError("mongo_generation_repo", "list_decode_error")
			return nil, err
		}
		generations = append(generations, &g)
	}
	if err := cur.Err(); err != nil {
		metrics.IncError("mongo_generation_repo", "list_cursor_error")
		return nil, err
	}
	return generations, nil
}

func (r *MongoGenerationRepo) Delete(ctx context.Context, id string) error {
	metrics.IncStoreOp(backendName, "delete")

	res, err := r.col.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		metrics.IncError("mongo_generation_repo", "delete_error")
		return err
	}
	if res.DeletedCount == 0 {
		return repository.ErrGenerationNotFound
	}
	return nil
}
