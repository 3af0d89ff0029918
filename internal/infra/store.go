package infra

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/battlegrounds/tournaments/internal/docstore"
)

// OpenedStore is a document store plus what the binary needs to supervise it.
type OpenedStore struct {
	Store  docstore.Store
	Health func(ctx context.Context) error
	Close  func()
}

// OpenStore connects the backend selected by STORE_DRIVER, running
// migrations first for Postgres when RUN_MIGRATIONS is set.
func OpenStore(ctx context.Context, cfg *Config, logger *slog.Logger) (*OpenedStore, error) {
	switch cfg.StoreDriver {
	case DriverPostgres:
		if cfg.RunMigrations {
			if err := RunMigrations(cfg.DSN(), logger); err != nil {
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		pool, err := NewPostgresPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		logger.Info("document store ready", "driver", cfg.StoreDriver)
		return &OpenedStore{
			Store:  docstore.NewPostgresStore(pool),
			Health: PostgresHealthCheck(pool),
			Close:  pool.Close,
		}, nil

	case DriverDynamo:
		client, err := NewDynamoClient(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connect dynamodb: %w", err)
		}
		logger.Info("document store ready", "driver", cfg.StoreDriver, "table", cfg.DynamoTable)
		return &OpenedStore{
			Store:  docstore.NewDynamoStore(client, cfg.DynamoTable),
			Health: DynamoHealthCheck(client, cfg.DynamoTable),
			Close:  func() {},
		}, nil

	case DriverMemory:
		logger.Warn("using in-memory document store; data is lost on restart")
		return &OpenedStore{
			Store: docstore.NewMemoryStore(),
			Close: func() {},
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
