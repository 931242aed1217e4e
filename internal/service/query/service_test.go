package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orderpipe/internal/domain"
	"github.com/vladislavdragonenkov/orderpipe/internal/storage/memory"
)

type countingRepo struct {
	domain.OrderRepository
	finds  int
	counts int
	err    error
}

func (r *countingRepo) FindByOrderID(ctx context.Context, orderID string) (domain.Order, error) {
	r.finds++
	return r.OrderRepository.FindByOrderID(ctx, orderID)
}

func (r *countingRepo) CountInRange(ctx context.Context, start, end time.Time) (int64, error) {
	r.counts++
	if r.err != nil {
		return 0, r.err
	}
	return r.OrderRepository.CountInRange(ctx, start, end)
}

type mapCache struct {
	items  map[string]domain.Order
	getErr error
}

func (c *mapCache) Get(_ context.Context, orderID string) (domain.Order, bool, error) {
	if c.getErr != nil {
		return domain.Order{}, false, c.getErr
	}
	order, ok := c.items[orderID]
	return order, ok, nil
}

func (c *mapCache) Set(_ context.Context, order domain.Order) error {
	if order.Status.IsTerminal() {
		c.items[order.OrderID] = order
	}
	return nil
}

func seed(t *testing.T, repo domain.OrderRepository, orderID string, status domain.OrderStatus, createdAt time.Time) {
	t.Helper()
	order, err := repo.Create(context.Background(), domain.Order{
		OrderID:       orderID,
		CustomerID:    "C1",
		CustomerPhone: "+1",
		Status:        domain.OrderStatusProcessing,
		Items:         []string{"x", "y"},
		CreatedAt:     createdAt,
	})
	require.NoError(t, err)
	if status != domain.OrderStatusProcessing {
		order.Status = status
		_, err = repo.UpdateStatus(context.Background(), order)
		require.NoError(t, err)
	}
}

func TestGetStatus(t *testing.T) {
	repo := &countingRepo{OrderRepository: memory.NewOrderRepository()}
	created := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	seed(t, repo, "A1", domain.OrderStatusCompleted, created)
	svc := NewService(repo, nil, nil, nil)

	view, err := svc.GetStatus(context.Background(), "A1")
	require.NoError(t, err)
	require.Equal(t, StatusView{
		OrderID:    "A1",
		CustomerID: "C1",
		Status:     domain.OrderStatusCompleted,
		Items:      []string{"x", "y"},
		ItemCount:  2,
		Timestamp:  created,
	}, view)

	_, err = svc.GetStatus(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestGetStatus_UsesCacheForTerminalOrders(t *testing.T) {
	repo := &countingRepo{OrderRepository: memory.NewOrderRepository()}
	seed(t, repo, "done", domain.OrderStatusCompleted, time.Now())
	seed(t, repo, "busy", domain.OrderStatusProcessing, time.Now())
	cache := &mapCache{items: map[string]domain.Order{}}
	svc := NewService(repo, cache, nil, nil)

	for i := 0; i < 3; i++ {
		_, err := svc.GetStatus(context.Background(), "done")
		require.NoError(t, err)
		_, err = svc.GetStatus(context.Background(), "busy")
		require.NoError(t, err)
	}

	// "done" читается из хранилища один раз, "busy" каждый раз.
	require.Equal(t, 4, repo.finds)
}

func TestGetStatus_CacheErrorFallsBackToStore(t *testing.T) {
	repo := &countingRepo{OrderRepository: memory.NewOrderRepository()}
	seed(t, repo, "A1", domain.OrderStatusFailed, time.Now())
	svc := NewService(repo, &mapCache{items: map[string]domain.Order{}, getErr: errors.New("redis down")}, nil, nil)

	view, err := svc.GetStatus(context.Background(), "A1")
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusFailed, view.Status)
}

func TestCountInRange(t *testing.T) {
	repo := &countingRepo{OrderRepository: memory.NewOrderRepository()}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	seed(t, repo, "a", domain.OrderStatusCompleted, base)
	seed(t, repo, "b", domain.OrderStatusCompleted, base.Add(time.Hour))
	seed(t, repo, "c", domain.OrderStatusCompleted, base.Add(3*time.Hour))

	svc := NewService(repo, nil, nil, nil)
	fixedNow := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixedNow }

	view, err := svc.CountInRange(context.Background(), base, base.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, CountView{
		TotalOrders:    2,
		StartDate:      base,
		EndDate:        base.Add(time.Hour),
		QueryTimestamp: fixedNow,
	}, view)
}

func TestCountInRange_InvalidRangeSkipsStore(t *testing.T) {
	repo := &countingRepo{OrderRepository: memory.NewOrderRepository()}
	svc := NewService(repo, nil, nil, nil)
	start := time.Now()

	_, err := svc.CountInRange(context.Background(), start, start.Add(-time.Second))
	require.ErrorIs(t, err, domain.ErrInvalidDateRange)
	require.Zero(t, repo.counts)

	// start == end допустим.
	_, err = svc.CountInRange(context.Background(), start, start)
	require.NoError(t, err)
	require.Equal(t, 1, repo.counts)
}

func TestCountInRange_StoreError(t *testing.T) {
	boom := errors.New("db down")
	repo := &countingRepo{OrderRepository: memory.NewOrderRepository(), err: boom}
	svc := NewService(repo, nil, nil, nil)

	_, err := svc.CountInRange(context.Background(), time.Now(), time.Now().Add(time.Hour))
	require.ErrorIs(t, err, boom)
}

func TestHealth(t *testing.T) {
	svc := NewService(memory.NewOrderRepository(), nil, nil, nil)
	view := svc.Health()

	require.Equal(t, "UP", view.Status)
	require.Equal(t, "OrderService", view.Service)
	require.Equal(t, "1.0.0", view.Version)
	require.False(t, view.Timestamp.IsZero())
}
