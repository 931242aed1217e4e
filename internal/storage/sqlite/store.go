// Package sqlite хранит заказы во встроенной базе SQLite.
// Используется драйвер modernc.org/sqlite, сборка не требует CGO.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS orders (
    seq            INTEGER PRIMARY KEY AUTOINCREMENT,
    id             TEXT    NOT NULL UNIQUE,
    order_id       TEXT    NOT NULL,
    customer_id    TEXT    NOT NULL,
    customer_phone TEXT    NOT NULL,
    customer_email TEXT    NOT NULL DEFAULT '',
    status         TEXT    NOT NULL CHECK (status IN ('PROCESSING', 'COMPLETED', 'FAILED')),
    items          TEXT    NOT NULL CHECK (json_array_length(items) > 0),
    -- UTC фиксированной ширины (см. formatTS): лексикографический порядок совпадает с временным
    ts             TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_orders_order_id ON orders(order_id, seq);
CREATE INDEX IF NOT EXISTS idx_orders_ts ON orders(ts);
`

// Store оборачивает подключение к SQLite.
type Store struct {
	db *sql.DB
}

// Open открывает (или создаёт) базу по пути и применяет схему.
// WAL позволяет читателям не блокировать единственного писателя.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// DB возвращает raw SQL DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping проверяет доступность подключения.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlite store is not initialized")
	}
	return s.db.PingContext(ctx)
}

// Close закрывает подключение к БД.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
