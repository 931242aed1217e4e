package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/orderpipe/internal/domain"
)

// tsLayout — фиксированная ширина с девятью знаками долей секунды.
// В отличие от RFC3339Nano нули не отбрасываются, поэтому строки сравнимы.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

var (
	minTS = time.Date(0, time.January, 1, 0, 0, 0, 0, time.UTC)
	maxTS = time.Date(9999, time.December, 31, 23, 59, 59, 999999999, time.UTC)
)

// formatTS приводит момент к UTC и зажимает в годы 0000..9999,
// где ширина строки постоянна.
func formatTS(t time.Time) string {
	t = t.UTC()
	if t.Before(minTS) {
		t = minTS
	}
	if t.After(maxTS) {
		t = maxTS
	}
	return t.Format(tsLayout)
}

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт SQLite-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

func (r *orderRepository) Create(ctx context.Context, order domain.Order) (domain.Order, error) {
	if len(order.Items) == 0 {
		return domain.Order{}, domain.ErrItemsRequired
	}

	items, err := json.Marshal(order.Items)
	if err != nil {
		return domain.Order{}, fmt.Errorf("sqlite: encode items: %w", err)
	}

	stored := order.Clone()
	stored.ID = uuid.NewString()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}

	const q = `
		INSERT INTO orders
			(id, order_id, customer_id, customer_phone, customer_email, status, items, ts)
		VALUES
			(?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, q,
		stored.ID, stored.OrderID, stored.CustomerID, stored.CustomerPhone,
		stored.CustomerEmail, string(stored.Status), string(items), formatTS(stored.CreatedAt),
	); err != nil {
		return domain.Order{}, fmt.Errorf("sqlite: insert order %q: %w", stored.OrderID, err)
	}

	return stored, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, order domain.Order) (domain.Order, error) {
	if !order.Status.IsTerminal() {
		return domain.Order{}, domain.ErrInvalidTransition
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status = ? WHERE id = ? AND status = 'PROCESSING'`,
		string(order.Status), order.ID,
	)
	if err != nil {
		return domain.Order{}, fmt.Errorf("sqlite: update order %q: %w", order.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Order{}, fmt.Errorf("sqlite: rows affected: %w", err)
	}

	current, err := r.findOne(ctx, `WHERE id = ?`, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	if affected == 0 {
		return domain.Order{}, domain.ErrInvalidTransition
	}
	return current, nil
}

func (r *orderRepository) FindByOrderID(ctx context.Context, orderID string) (domain.Order, error) {
	return r.findOne(ctx, `WHERE order_id = ? ORDER BY seq DESC LIMIT 1`, orderID)
}

func (r *orderRepository) CountInRange(ctx context.Context, start, end time.Time) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE ts >= ? AND ts <= ?`,
		formatTS(start), formatTS(end),
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("sqlite: count orders: %w", err)
	}
	return count, nil
}

func (r *orderRepository) findOne(ctx context.Context, where string, arg any) (domain.Order, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, order_id, customer_id, customer_phone, customer_email, status, items, ts
		FROM orders `+where, arg)

	var (
		order  domain.Order
		status string
		items  string
		ts     string
	)
	err := row.Scan(&order.ID, &order.OrderID, &order.CustomerID, &order.CustomerPhone,
		&order.CustomerEmail, &status, &items, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("sqlite: select order: %w", err)
	}
	if err := json.Unmarshal([]byte(items), &order.Items); err != nil {
		return domain.Order{}, fmt.Errorf("sqlite: decode items: %w", err)
	}
	createdAt, err := time.Parse(tsLayout, ts)
	if err != nil {
		return domain.Order{}, fmt.Errorf("sqlite: decode ts %q: %w", ts, err)
	}
	order.Status = domain.OrderStatus(status)
	order.CreatedAt = createdAt
	return order, nil
}

var _ domain.OrderRepository = (*orderRepository)(nil)
