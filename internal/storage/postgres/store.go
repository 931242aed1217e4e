package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

const defaultConnTimeout = 5 * time.Second

var errStoreNotInitialized = errors.New("postgres store is not initialized")

// poolSettings — лимиты database/sql пула поверх pgx.
type poolSettings struct {
	maxOpen     int
	maxIdle     int
	maxLifetime time.Duration
	maxIdleTime time.Duration
}

var defaultPool = poolSettings{
	maxOpen:     25,
	maxIdle:     25,
	maxLifetime: 30 * time.Minute,
	maxIdleTime: 5 * time.Minute,
}

// Store — пул подключений к PostgreSQL для хранилища заказов.
type Store struct {
	db *sql.DB
}

// Open разбирает DSN через pgx, открывает пул и проверяет доступность базы.
func Open(ctx context.Context, dsn string) (*Store, error) {
	connCfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if connCfg.ConnectTimeout == 0 {
		connCfg.ConnectTimeout = defaultConnTimeout
	}

	db := stdlib.OpenDB(*connCfg)
	db.SetMaxOpenConns(defaultPool.maxOpen)
	db.SetMaxIdleConns(defaultPool.maxIdle)
	db.SetConnMaxLifetime(defaultPool.maxLifetime)
	db.SetConnMaxIdleTime(defaultPool.maxIdleTime)

	store := &Store{db: db}
	if err := store.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return store, nil
}

// DB отдаёт пул для репозитория и тестов.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping используется health-проверкой хранилища.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errStoreNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	return s.db.PingContext(ctx)
}

// EnsureSchema применяет все недостающие миграции.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.MigrateUp(ctx, 0)
}

// Close закрывает пул. Безопасен для nil.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
