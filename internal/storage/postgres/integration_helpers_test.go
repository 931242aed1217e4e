package postgres

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// postgresTestDSN берёт DSN из окружения; без него интеграционные тесты пропускаются.
func postgresTestDSN(t *testing.T) string {
	t.Helper()
	for _, key := range []string{"ORDERS_POSTGRES_TEST_DSN", "ORDERS_POSTGRES_DSN"} {
		if dsn := strings.TrimSpace(os.Getenv(key)); dsn != "" {
			return dsn
		}
	}
	t.Skip("ORDERS_POSTGRES_TEST_DSN is not set")
	return ""
}

func openRawPostgresStoreForIntegrationTest(t *testing.T) *Store {
	t.Helper()
	dsn := postgresTestDSN(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	store, err := Open(ctx, dsn)
	if err != nil {
		t.Skipf("postgres is not reachable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// openPostgresStoreForIntegrationTest возвращает store с актуальной схемой и пустой таблицей orders.
func openPostgresStoreForIntegrationTest(t *testing.T) *Store {
	t.Helper()
	store := openRawPostgresStoreForIntegrationTest(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, store.EnsureSchema(ctx))
	_, err := store.DB().ExecContext(ctx, `TRUNCATE TABLE orders RESTART IDENTITY`)
	require.NoError(t, err)
	return store
}
