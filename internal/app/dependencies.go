package app

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderpipe/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/orderpipe/internal/health"
	"github.com/vladislavdragonenkov/orderpipe/internal/storage/memory"
	"github.com/vladislavdragonenkov/orderpipe/internal/storage/postgres"
	"github.com/vladislavdragonenkov/orderpipe/internal/storage/sqlite"
)

// runtimeDependencies — хранилище, выбранное конфигурацией.
type runtimeDependencies struct {
	repo           domain.OrderRepository
	storageChecker healthcheck.Checker
	closeFn        func() error
}

func (d *runtimeDependencies) close(logger *log.Entry) {
	if d == nil || d.closeFn == nil {
		return
	}
	if err := d.closeFn(); err != nil {
		logger.WithError(err).Warn("failed to close storage")
		return
	}
	logger.Info("storage closed")
}

// initRuntimeDependencies открывает хранилище заказов по cfg.StorageDriver.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	if driver == "" {
		driver = StorageDriverMemory
	}

	switch driver {
	case StorageDriverMemory:
		logger.Info("using in-memory order storage")
		return &runtimeDependencies{
			repo: memory.NewOrderRepository(),
			storageChecker: healthcheck.Critical("storage", func(context.Context) error {
				return nil
			}),
		}, nil

	case StorageDriverPostgres:
		dsn := strings.TrimSpace(cfg.PostgresDSN)
		if dsn == "" {
			return nil, fmt.Errorf("postgres storage driver requires ORDERS_POSTGRES_DSN")
		}
		store, err := postgres.Open(ctx, dsn)
		if err != nil {
			return nil, err
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply postgres migrations: %w", err)
			}
		}
		logger.WithField("auto_migrate", cfg.PostgresAutoMigrate).Info("using postgres order storage")
		return &runtimeDependencies{
			repo:           postgres.NewOrderRepository(store),
			storageChecker: healthcheck.Critical("storage", store.Ping),
			closeFn:        store.Close,
		}, nil

	case StorageDriverSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.WithField("path", cfg.SQLitePath).Info("using sqlite order storage")
		return &runtimeDependencies{
			repo:           sqlite.NewOrderRepository(store),
			storageChecker: healthcheck.Critical("storage", store.Ping),
			closeFn:        store.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}
