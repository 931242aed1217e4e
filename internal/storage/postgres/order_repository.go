package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/orderpipe/internal/domain"
)

const (
	opTimeout = 5 * time.Second

	pgCodeCheckViolation = "23514"
)

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

func (r *orderRepository) Create(ctx context.Context, order domain.Order) (domain.Order, error) {
	if len(order.Items) == 0 {
		return domain.Order{}, domain.ErrItemsRequired
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	items, err := json.Marshal(order.Items)
	if err != nil {
		return domain.Order{}, fmt.Errorf("encode order items: %w", err)
	}

	stored := order.Clone()
	stored.ID = uuid.NewString()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO orders (
			id, order_id, customer_id, customer_phone, customer_email, status, items, ts
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		stored.ID, stored.OrderID, stored.CustomerID, stored.CustomerPhone,
		stored.CustomerEmail, string(stored.Status), string(items), stored.CreatedAt,
	)
	if err != nil {
		if isCheckViolation(err) {
			return domain.Order{}, fmt.Errorf("insert order: %w", domain.ErrItemsRequired)
		}
		return domain.Order{}, fmt.Errorf("insert order: %w", err)
	}

	return stored, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, order domain.Order) (domain.Order, error) {
	if !order.Status.IsTerminal() {
		return domain.Order{}, domain.ErrInvalidTransition
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	// Переход разрешён только из PROCESSING: условие в WHERE не даёт
	// переписать терминальный статус.
	row := r.db.QueryRowContext(ctx, `
		UPDATE orders
		SET status = $2
		WHERE id = $1 AND status = 'PROCESSING'
		RETURNING `+orderColumns,
		order.ID, string(order.Status),
	)
	updated, err := scanOrder(row)
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, fmt.Errorf("update order status: %w", err)
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, order.ID).Scan(&exists); err != nil {
		return domain.Order{}, fmt.Errorf("check order existence: %w", err)
	}
	if !exists {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return domain.Order{}, domain.ErrInvalidTransition
}

func (r *orderRepository) FindByOrderID(ctx context.Context, orderID string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE order_id = $1
		ORDER BY seq DESC
		LIMIT 1
	`, orderID)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}
	return order, nil
}

func (r *orderRepository) CountInRange(ctx context.Context, start, end time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var count int64
	if err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM orders WHERE ts >= $1 AND ts <= $2
	`, start, end).Scan(&count); err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return count, nil
}

const orderColumns = `id, order_id, customer_id, customer_phone, customer_email, status, items, ts`

func scanOrder(row *sql.Row) (domain.Order, error) {
	var (
		order  domain.Order
		status string
		items  []byte
	)
	if err := row.Scan(
		&order.ID, &order.OrderID, &order.CustomerID, &order.CustomerPhone,
		&order.CustomerEmail, &status, &items, &order.CreatedAt,
	); err != nil {
		return domain.Order{}, err
	}
	if err := json.Unmarshal(items, &order.Items); err != nil {
		return domain.Order{}, fmt.Errorf("decode order items: %w", err)
	}
	order.Status = domain.OrderStatus(status)
	order.CreatedAt = order.CreatedAt.UTC()
	return order, nil
}

func isCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgCodeCheckViolation
	}
	return false
}

var _ domain.OrderRepository = (*orderRepository)(nil)
