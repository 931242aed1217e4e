package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/orderpipe/internal/domain"
)

func sampleOrder(orderID string, createdAt time.Time) domain.Order {
	return domain.Order{
		OrderID:       orderID,
		CustomerID:    "customer-1",
		CustomerPhone: "+15550001",
		CustomerEmail: "c1@example.com",
		Status:        domain.OrderStatusProcessing,
		Items:         []string{"x", "y"},
		CreatedAt:     createdAt,
	}
}

func TestOrderRepository_PostgresCreateFindAndUpdate(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)
	ctx := context.Background()

	now := time.Now().UTC().Round(time.Microsecond)
	created, err := repo.Create(ctx, sampleOrder("order-1", now))
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected storage-assigned id")
	}

	got, err := repo.FindByOrderID(ctx, "order-1")
	if err != nil {
		t.Fatalf("find order: %v", err)
	}
	if got.ID != created.ID || got.Status != domain.OrderStatusProcessing || !got.CreatedAt.Equal(now) {
		t.Fatalf("unexpected order payload: %+v", got)
	}
	if len(got.Items) != 2 || got.Items[0] != "x" || got.Items[1] != "y" {
		t.Fatalf("unexpected items: %v", got.Items)
	}

	got.Status = domain.OrderStatusCompleted
	updated, err := repo.UpdateStatus(ctx, got)
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if updated.Status != domain.OrderStatusCompleted || !updated.CreatedAt.Equal(now) {
		t.Fatalf("unexpected order after update: %+v", updated)
	}

	updated.Status = domain.OrderStatusFailed
	if _, err := repo.UpdateStatus(ctx, updated); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestOrderRepository_PostgresFindMostRecentDuplicate(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)
	ctx := context.Background()

	now := time.Now().UTC()
	if _, err := repo.Create(ctx, sampleOrder("dup", now)); err != nil {
		t.Fatalf("create first: %v", err)
	}
	second, err := repo.Create(ctx, sampleOrder("dup", now))
	if err != nil {
		t.Fatalf("create second: %v", err)
	}

	got, err := repo.FindByOrderID(ctx, "dup")
	if err != nil {
		t.Fatalf("find dup: %v", err)
	}
	if got.ID != second.ID {
		t.Fatalf("expected most recent duplicate %s, got %s", second.ID, got.ID)
	}
}

func TestOrderRepository_PostgresCountInRange(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, offset := range []time.Duration{-time.Second, 0, time.Hour, 2 * time.Hour, 2*time.Hour + time.Second} {
		if _, err := repo.Create(ctx, sampleOrder("o", base.Add(offset))); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	count, err := repo.CountInRange(ctx, base, base.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 orders in range, got %d", count)
	}
}

func TestOrderRepository_PostgresErrors(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)
	ctx := context.Background()

	if _, err := repo.FindByOrderID(ctx, "missing-order"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}

	missing := sampleOrder("missing", time.Now())
	missing.ID = "6f1c2a52-0000-4000-8000-000000000000"
	missing.Status = domain.OrderStatusCompleted
	if _, err := repo.UpdateStatus(ctx, missing); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound on update, got %v", err)
	}

	empty := sampleOrder("empty", time.Now())
	empty.Items = nil
	if _, err := repo.Create(ctx, empty); !errors.Is(err, domain.ErrItemsRequired) {
		t.Fatalf("expected ErrItemsRequired, got %v", err)
	}

	// Обход проверки в коде: ограничение таблицы всё равно не пропустит пустой список.
	_, err := store.DB().ExecContext(ctx, `
		INSERT INTO orders (id, order_id, customer_id, customer_phone, status, items, ts)
		VALUES ($1, 'raw', 'c', 'p', 'PROCESSING', '[]', NOW())
	`, "6f1c2a52-0000-4000-8000-000000000001")
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || !isCheckViolation(err) {
		t.Fatalf("expected check violation, got %v", err)
	}
}
