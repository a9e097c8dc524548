package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendMongo    = "mongo"
)

// Options selects and configures a backend.
type Options struct {
	Backend     string
	DataDir     string
	PostgresDSN string
	SQLitePath  string
	MongoURI    string
	MongoDB     string
}

// Open connects the configured backend. Migrations are not applied; callers
// run Migrate when the backend implements Migrator.
func Open(ctx context.Context, opts Options, logger *zap.Logger) (Backend, error) {
	logger = logger.With(zap.String("backend", opts.Backend))

	switch opts.Backend {
	case BackendMemory:
		logger.Warn("using in-memory store; data is lost on restart")
		return NewMemoryBackend(), nil

	case BackendFile:
		logger.Info("using JSON file store", zap.String("dir", opts.DataDir))
		return NewFileBackend(opts.DataDir)

	case BackendPostgres:
		pool, err := pgxpool.New(ctx, opts.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("postgres connect: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("postgres ping: %w", err)
		}
		logger.Info("connected to postgres")
		return NewPostgresBackend(pool), nil

	case BackendSQLite:
		logger.Info("using sqlite store", zap.String("path", opts.SQLitePath))
		return OpenSQLite(opts.SQLitePath)

	case BackendMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(opts.MongoURI))
		if err != nil {
			return nil, fmt.Errorf("mongo connect: %w", err)
		}
		if err := client.Ping(ctx, nil); err != nil {
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("mongo ping: %w", err)
		}
		logger.Info("connected to mongo", zap.String("db", opts.MongoDB))
		return NewMongoBackend(client, client.Database(opts.MongoDB)), nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}

// Migrate applies the backend schema if it has one.
func Migrate(ctx context.Context, b Backend) error {
	if m, ok := b.(Migrator); ok {
		return m.Migrate(ctx)
	}
	return nil
}
