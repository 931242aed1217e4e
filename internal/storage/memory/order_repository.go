package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/orderpipe/internal/domain"
)

// orderRepositoryInMemory — простая in-memory реализация OrderRepository.
type orderRepositoryInMemory struct {
	mu sync.RWMutex
	// items хранит заказы по внутреннему ID, order хранит порядок вставки.
	items map[string]domain.Order
	order []string
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOrderRepository() domain.OrderRepository {
	return &orderRepositoryInMemory{
		items: make(map[string]domain.Order),
	}
}

// Create сохраняет новый заказ и назначает ему внутренний ID.
func (r *orderRepositoryInMemory) Create(ctx context.Context, order domain.Order) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}
	if len(order.Items) == 0 {
		return domain.Order{}, domain.ErrItemsRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored := order.Clone()
	stored.ID = uuid.NewString()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	// Сохраняем копию, чтобы избежать непредсказуемых мутаций извне.
	r.items[stored.ID] = stored
	r.order = append(r.order, stored.ID)
	return stored.Clone(), nil
}

// UpdateStatus меняет статус заказа, который ещё находится в PROCESSING.
func (r *orderRepositoryInMemory) UpdateStatus(ctx context.Context, order domain.Order) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[order.ID]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err := current.TransitionTo(order.Status); err != nil {
		return domain.Order{}, err
	}
	r.items[order.ID] = current
	return current.Clone(), nil
}

// FindByOrderID возвращает последний записанный заказ с данным бизнес-ID.
func (r *orderRepositoryInMemory) FindByOrderID(ctx context.Context, orderID string) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := len(r.order) - 1; i >= 0; i-- {
		order := r.items[r.order[i]]
		if order.OrderID == orderID {
			return order.Clone(), nil
		}
	}
	return domain.Order{}, domain.ErrOrderNotFound
}

// CountInRange считает заказы с CreatedAt в [start, end].
func (r *orderRepositoryInMemory) CountInRange(ctx context.Context, start, end time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int64
	for _, order := range r.items {
		if order.CreatedAt.Before(start) || order.CreatedAt.After(end) {
			continue
		}
		count++
	}
	return count, nil
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
