package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderpipe/internal/storage/postgres"
)

const (
	defaultTimeout = 30 * time.Second
	envPostgresDSN = "ORDERS_POSTGRES_DSN"
)

// migrator — операции над схемой, которые нужны CLI.
type migrator interface {
	MigrateUp(ctx context.Context, steps int) error
	MigrateDown(ctx context.Context, steps int) error
	MigrationStatus(ctx context.Context) (int64, int, error)
	Close() error
}

type options struct {
	direction string
	steps     int
	dsn       string
}

func parseOptions(args []string, lookup func(string) (string, bool)) (options, error) {
	var opts options
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&opts.direction, "direction", "up", "migration direction: up|down|status")
	fs.IntVar(&opts.steps, "steps", 0, "number of migrations to apply/rollback (0=all for up, 1 for down)")
	fs.StringVar(&opts.dsn, "dsn", "", "PostgreSQL DSN (fallback: "+envPostgresDSN+")")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	opts.direction = strings.ToLower(strings.TrimSpace(opts.direction))
	opts.dsn = strings.TrimSpace(opts.dsn)
	if opts.dsn == "" {
		if v, ok := lookup(envPostgresDSN); ok {
			opts.dsn = strings.TrimSpace(v)
		}
	}
	if opts.dsn == "" {
		return opts, errors.New(envPostgresDSN + " (or -dsn) is required")
	}
	if opts.steps < 0 {
		return opts, errors.New("steps must be >= 0")
	}
	switch opts.direction {
	case "up", "down", "status":
	default:
		return opts, fmt.Errorf("unsupported direction: %s (use up|down|status)", opts.direction)
	}
	return opts, nil
}

// run применяет направление миграции и печатает итоговую версию схемы.
func run(ctx context.Context, m migrator, opts options, out io.Writer) error {
	switch opts.direction {
	case "up":
		if err := m.MigrateUp(ctx, opts.steps); err != nil {
			return fmt.Errorf("migrate up failed: %w", err)
		}
	case "down":
		steps := opts.steps
		if steps <= 0 {
			steps = 1
		}
		if err := m.MigrateDown(ctx, steps); err != nil {
			return fmt.Errorf("migrate down failed: %w", err)
		}
	}

	version, count, err := m.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("migration status failed: %w", err)
	}
	_, _ = fmt.Fprintf(out, "migrate %s ok: version=%d applied=%d\n", opts.direction, version, count)
	return nil
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	logger := log.WithField("component", "migrate")

	opts, err := parseOptions(os.Args[1:], os.LookupEnv)
	if err != nil {
		logger.WithError(err).Fatal("invalid arguments")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	store, err := postgres.Open(ctx, opts.dsn)
	if err != nil {
		logger.WithError(err).Fatal("open postgres store")
	}

	runErr := run(ctx, store, opts, os.Stdout)
	if err := store.Close(); err != nil {
		logger.WithError(err).Warn("failed to close postgres store")
	}
	if runErr != nil {
		logger.WithError(runErr).Fatal("migration failed")
	}
}
