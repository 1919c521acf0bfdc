package pipeline

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"go.pipelinehub.dev/internal/common/mongo"
	"go.pipelinehub.dev/internal/common/repository"
	"go.pipelinehub.dev/internal/common/sqlite"
	"go.pipelinehub.dev/internal/config"
)

// Repository is the pipeline CRUD contract.
type Repository = repository.Repository[Entity, int64]

// Store is an opened, instrumented pipeline repository and the connection
// behind it.
type Store struct {
	Repository
	close func(ctx context.Context) error
}

// Close releases the backend connection.
func (s *Store) Close(ctx context.Context) error {
	return s.close(ctx)
}

// Open connects to the backend selected by cfg.Driver. It returns nil, nil
// when no driver is configured.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	switch cfg.Driver {
	case config.DriverNone:
		return nil, nil

	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.DSN, &Entity{})
		if err != nil {
			return nil, err
		}
		return &Store{
			Repository: repository.NewInstrumented[Entity, int64]("sqlite", NewGormRepository(db)),
			close:      func(context.Context) error { return sqlite.Close(db) },
		}, nil

	case config.DriverMongoDB:
		client, err := mongo.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		client.EnsureIndexes(ctx, []mongo.Index{
			{Collection: Collection, Keys: bson.D{{Key: "email", Value: 1}}},
			{Collection: Collection, Keys: bson.D{{Key: "created_at", Value: -1}}, Options: options.Index().SetName("created_at_desc")},
		})
		return &Store{
			Repository: repository.NewInstrumented[Entity, int64]("mongodb", NewMongoRepository(client.Database())),
			close:      client.Disconnect,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}
