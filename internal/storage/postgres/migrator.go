package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

//go:embed sql/migrations/*.sql
var migrationsFS embed.FS

const (
	migrationsDir = "sql/migrations"
	// Ключ advisory lock, общий для всех экземпляров сервиса.
	migrationLockKey = int64(0x6f726465)

	createMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version BIGINT PRIMARY KEY,
    name TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
)

var migrationFileRe = regexp.MustCompile(`^(\d+)_(\w+)\.(up|down)\.sql$`)

// migration — пара up/down скриптов одной версии схемы.
type migration struct {
	Version int64
	Name    string
	Up      string
	Down    string
}

// readMigrations читает migrationsDir и возвращает миграции по возрастанию версии.
// У каждой версии должны быть оба скрипта.
func readMigrations(fsys fs.FS) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}

	byVersion := make(map[int64]*migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		parts := migrationFileRe.FindStringSubmatch(entry.Name())
		if parts == nil {
			return nil, fmt.Errorf("invalid migration file name: %s", entry.Name())
		}
		version, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse migration version from %s: %w", entry.Name(), err)
		}

		raw, err := fs.ReadFile(fsys, path.Join(migrationsDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		script := strings.TrimSpace(string(raw))
		if script == "" {
			return nil, fmt.Errorf("migration file is empty: %s", entry.Name())
		}

		m, ok := byVersion[version]
		if !ok {
			m = &migration{Version: version, Name: parts[2]}
			byVersion[version] = m
		}
		if m.Name != parts[2] {
			return nil, fmt.Errorf("migration %d has two names: %s and %s", version, m.Name, parts[2])
		}

		target := &m.Up
		if parts[3] == "down" {
			target = &m.Down
		}
		if *target != "" {
			return nil, fmt.Errorf("duplicate %s migration for version %d", parts[3], version)
		}
		*target = script
	}
	if len(byVersion) == 0 {
		return nil, errors.New("no migration files found")
	}

	migrations := make([]migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.Up == "" || m.Down == "" {
			return nil, fmt.Errorf("migration %d_%s must have both up and down files", m.Version, m.Name)
		}
		migrations = append(migrations, *m)
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}

// pendingMigrations возвращает не более steps неприменённых миграций (steps<=0 — все).
func pendingMigrations(all []migration, applied []int64, steps int) []migration {
	done := make(map[int64]struct{}, len(applied))
	for _, v := range applied {
		done[v] = struct{}{}
	}
	var pending []migration
	for _, m := range all {
		if _, ok := done[m.Version]; ok {
			continue
		}
		pending = append(pending, m)
		if steps > 0 && len(pending) == steps {
			break
		}
	}
	return pending
}

// rollbackPlan возвращает steps последних применённых миграций, начиная с новейшей.
// applied должен быть отсортирован по возрастанию.
func rollbackPlan(all []migration, applied []int64, steps int) ([]migration, error) {
	known := make(map[int64]migration, len(all))
	for _, m := range all {
		known[m.Version] = m
	}
	var plan []migration
	for i := len(applied) - 1; i >= 0 && len(plan) < steps; i-- {
		m, ok := known[applied[i]]
		if !ok {
			return nil, fmt.Errorf("cannot rollback unknown migration version %d", applied[i])
		}
		plan = append(plan, m)
	}
	return plan, nil
}

// MigrateUp применяет up-миграции. steps=0 применяет все.
func (s *Store) MigrateUp(ctx context.Context, steps int) error {
	return s.withMigrations(ctx, func(conn *sql.Conn, all []migration, applied []int64) error {
		for _, m := range pendingMigrations(all, applied, steps) {
			if err := runMigration(ctx, conn, m, true); err != nil {
				return err
			}
		}
		return nil
	})
}

// MigrateDown откатывает последние steps миграций, steps<=0 считается одним шагом.
func (s *Store) MigrateDown(ctx context.Context, steps int) error {
	if steps <= 0 {
		steps = 1
	}
	return s.withMigrations(ctx, func(conn *sql.Conn, all []migration, applied []int64) error {
		plan, err := rollbackPlan(all, applied, steps)
		if err != nil {
			return err
		}
		for _, m := range plan {
			if err := runMigration(ctx, conn, m, false); err != nil {
				return err
			}
		}
		return nil
	})
}

// MigrationStatus возвращает последнюю применённую версию и число применённых миграций.
func (s *Store) MigrationStatus(ctx context.Context) (int64, int, error) {
	if s == nil || s.db == nil {
		return 0, 0, errStoreNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, createMigrationsTable); err != nil {
		return 0, 0, fmt.Errorf("ensure migration table: %w", err)
	}
	var (
		version int64
		count   int
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0), COUNT(*) FROM schema_migrations`,
	).Scan(&version, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("query migration status: %w", err)
	}
	return version, count, nil
}

// withMigrations держит advisory lock на выделенном соединении, пока выполняется fn.
func (s *Store) withMigrations(ctx context.Context, fn func(conn *sql.Conn, all []migration, applied []int64) error) error {
	if s == nil || s.db == nil {
		return errStoreNotInitialized
	}
	all, err := readMigrations(migrationsFS)
	if err != nil {
		return err
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire db connection: %w", err)
	}
	defer conn.Close()

	lockCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	if _, err := conn.ExecContext(lockCtx, `SELECT pg_advisory_lock($1)`, migrationLockKey); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, migrationLockKey)
	}()

	if _, err := conn.ExecContext(ctx, createMigrationsTable); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}
	applied, err := appliedVersions(ctx, conn)
	if err != nil {
		return err
	}
	return fn(conn, all, applied)
}

func appliedVersions(ctx context.Context, conn *sql.Conn) ([]int64, error) {
	rows, err := conn.QueryContext(ctx, `SELECT version FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	var versions []int64
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied migrations: %w", err)
	}
	return versions, nil
}

// runMigration выполняет скрипт и запись в schema_migrations в одной транзакции.
func runMigration(ctx context.Context, conn *sql.Conn, m migration, up bool) (err error) {
	direction, script, record := "down", m.Down, `DELETE FROM schema_migrations WHERE version = $1`
	args := []any{m.Version}
	if up {
		direction, script, record = "up", m.Up, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`
		args = append(args, m.Name)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s migration %d: %w", direction, m.Version, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, script); err != nil {
		return fmt.Errorf("execute %s migration %d_%s: %w", direction, m.Version, m.Name, err)
	}
	if _, err = tx.ExecContext(ctx, record, args...); err != nil {
		return fmt.Errorf("record %s migration %d_%s: %w", direction, m.Version, m.Name, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit %s migration %d_%s: %w", direction, m.Version, m.Name, err)
	}
	return nil
}
