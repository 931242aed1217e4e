package async_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orderpipe/internal/domain"
	"github.com/vladislavdragonenkov/orderpipe/internal/storage/async"
	"github.com/vladislavdragonenkov/orderpipe/internal/storage/memory"
)

type result struct {
	order domain.Order
	err   error
}

func collect() (async.Callback, <-chan result) {
	ch := make(chan result, 1)
	return func(order domain.Order, err error) { ch <- result{order: order, err: err} }, ch
}

func waitResult(t *testing.T, ch <-chan result) result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("callback was not invoked")
		return result{}
	}
}

func sample() domain.Order {
	return domain.NewOrder(domain.CreateOrderRequest{
		OrderID:       "A1",
		CustomerID:    "C1",
		CustomerPhone: "+1",
		Items:         []string{"x"},
	}, time.Now())
}

func TestExecutor_CreateThenUpdate(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()
	exec := async.NewExecutor(repo, 2, nil)

	cb, ch := collect()
	require.NoError(t, exec.Create(ctx, sample(), cb))
	created := waitResult(t, ch)
	require.NoError(t, created.err)
	require.NotEmpty(t, created.order.ID)

	order := created.order
	require.NoError(t, order.TransitionTo(domain.OrderStatusCompleted))
	cb, ch = collect()
	require.NoError(t, exec.UpdateStatus(ctx, order, cb))
	updated := waitResult(t, ch)
	require.NoError(t, updated.err)
	require.Equal(t, domain.OrderStatusCompleted, updated.order.Status)

	require.NoError(t, exec.Close(ctx))
}

type stubRepo struct {
	domain.OrderRepository

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	release     chan struct{}
	err         error
	panicMsg    string
}

func (s *stubRepo) Create(_ context.Context, order domain.Order) (domain.Order, error) {
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	cur := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		prev := s.maxInFlight.Load()
		if cur <= prev || s.maxInFlight.CompareAndSwap(prev, cur) {
			break
		}
	}
	if s.release != nil {
		<-s.release
	}
	return order, s.err
}

func TestExecutor_BoundsConcurrency(t *testing.T) {
	ctx := context.Background()
	repo := &stubRepo{release: make(chan struct{})}
	exec := async.NewExecutor(repo, 3, nil)

	var wg sync.WaitGroup
	wg.Add(10)
	go func() {
		// Четвёртый Create блокируется до освобождения слота.
		for i := 0; i < 10; i++ {
			if err := exec.Create(ctx, sample(), func(domain.Order, error) { wg.Done() }); err != nil {
				wg.Done()
			}
		}
	}()

	require.Eventually(t, func() bool { return repo.inFlight.Load() == 3 }, time.Second, 5*time.Millisecond)
	close(repo.release)
	wg.Wait()

	require.EqualValues(t, 3, repo.maxInFlight.Load())
	require.NoError(t, exec.Close(ctx))
}

type orderingRepo struct {
	domain.OrderRepository

	mu    sync.Mutex
	calls []string
}

func (r *orderingRepo) Create(_ context.Context, order domain.Order) (domain.Order, error) {
	r.mu.Lock()
	r.calls = append(r.calls, order.OrderID)
	r.mu.Unlock()
	return order, nil
}

func (r *orderingRepo) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func TestExecutor_StartsCallsInDispatchOrder(t *testing.T) {
	ctx := context.Background()
	repo := &orderingRepo{}
	exec := async.NewExecutor(repo, 1, nil)

	const total = 200
	want := make([]string, 0, total)
	var wg sync.WaitGroup
	wg.Add(total)
	for i := 0; i < total; i++ {
		order := sample()
		order.OrderID = fmt.Sprintf("o%03d", i)
		want = append(want, order.OrderID)
		require.NoError(t, exec.Create(ctx, order, func(domain.Order, error) { wg.Done() }))
	}
	wg.Wait()

	require.Equal(t, want, repo.seen())
	require.NoError(t, exec.Close(ctx))
}

func TestExecutor_SaturatedDispatchHonoursContext(t *testing.T) {
	repo := &stubRepo{release: make(chan struct{})}
	exec := async.NewExecutor(repo, 1, nil)
	require.NoError(t, exec.Create(context.Background(), sample(), func(domain.Order, error) {}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := exec.Create(ctx, sample(), func(domain.Order, error) {
		t.Error("callback must not run")
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(repo.release)
	require.NoError(t, exec.Close(context.Background()))
}

func TestExecutor_PropagatesErrorsAndPanics(t *testing.T) {
	ctx := context.Background()

	boom := errors.New("db down")
	exec := async.NewExecutor(&stubRepo{err: boom}, 1, nil)
	cb, ch := collect()
	require.NoError(t, exec.Create(ctx, sample(), cb))
	require.ErrorIs(t, waitResult(t, ch).err, boom)

	exec = async.NewExecutor(&stubRepo{panicMsg: "driver bug"}, 1, nil)
	cb, ch = collect()
	require.NoError(t, exec.Create(ctx, sample(), cb))
	res := waitResult(t, ch)
	require.Error(t, res.err)
	require.Contains(t, res.err.Error(), "driver bug")
}

func TestExecutor_RejectsAfterClose(t *testing.T) {
	ctx := context.Background()
	exec := async.NewExecutor(memory.NewOrderRepository(), 1, nil)
	require.NoError(t, exec.Close(ctx))

	err := exec.Create(ctx, sample(), func(domain.Order, error) {
		t.Fatal("callback must not run")
	})
	require.ErrorIs(t, err, async.ErrClosed)
}

func TestExecutor_CloseWaitsForInFlight(t *testing.T) {
	repo := &stubRepo{release: make(chan struct{})}
	exec := async.NewExecutor(repo, 1, nil)

	var done atomic.Bool
	require.NoError(t, exec.Create(context.Background(), sample(), func(domain.Order, error) { done.Store(true) }))

	shortCtx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, exec.Close(shortCtx), context.DeadlineExceeded)

	close(repo.release)
	require.NoError(t, exec.Close(context.Background()))
	require.True(t, done.Load())
}
