// Package async выполняет вызовы хранилища вне последовательного обработчика
// и передаёт результат в продолжение (callback).
package async

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/vladislavdragonenkov/orderpipe/internal/domain"
)

const defaultConcurrency = 16

// ErrClosed возвращается при попытке поставить вызов после Close.
var ErrClosed = errors.New("store executor closed")

// Callback получает результат вызова хранилища. Вызывается ровно один раз
// на горутине исполнителя, после освобождения слота.
type Callback func(order domain.Order, err error)

// Executor ограничивает число одновременных вызовов хранилища.
// Вызовы начинаются в том порядке, в котором были поставлены.
type Executor struct {
	repo   domain.OrderRepository
	sem    *semaphore.Weighted
	logger *log.Entry

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup

	// next выдаётся при постановке, serving разрешает старт вызова.
	gateMu  sync.Mutex
	gate    *sync.Cond
	next    uint64
	serving uint64
}

// NewExecutor создаёт исполнитель. concurrency<=0 означает значение по умолчанию.
func NewExecutor(repo domain.OrderRepository, concurrency int, logger *log.Entry) *Executor {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	if logger == nil {
		logger = log.New().WithField("component", "store-executor")
	}
	e := &Executor{
		repo:   repo,
		sem:    semaphore.NewWeighted(int64(concurrency)),
		logger: logger,
	}
	e.gate = sync.NewCond(&e.gateMu)
	return e
}

// Create асинхронно сохраняет новый заказ. Если все слоты заняты,
// блокирует вызывающего до освобождения слота.
func (e *Executor) Create(ctx context.Context, order domain.Order, cb Callback) error {
	return e.dispatch(ctx, "create", order, cb, e.repo.Create)
}

// UpdateStatus асинхронно записывает статус заказа.
func (e *Executor) UpdateStatus(ctx context.Context, order domain.Order, cb Callback) error {
	return e.dispatch(ctx, "update", order, cb, e.repo.UpdateStatus)
}

// Close запрещает новые вызовы и ждёт завершения уже поставленных.
func (e *Executor) Close(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	waitDone := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(waitDone)
	}()

	select {
	case <-waitDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// dispatch занимает слот на вызывающей горутине и выдаёт билет.
// Слот берётся до билета: каждый держатель билета уже владеет слотом,
// поэтому старший билет всегда может начать вызов.
func (e *Executor) dispatch(
	ctx context.Context,
	op string,
	order domain.Order,
	cb Callback,
	call func(context.Context, domain.Order) (domain.Order, error),
) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.wg.Add(1)
	e.mu.Unlock()

	if err := e.sem.Acquire(ctx, 1); err != nil {
		e.wg.Done()
		return fmt.Errorf("acquire store slot: %w", err)
	}
	ticket := e.takeTicket()

	go func() {
		defer e.wg.Done()

		result, err := e.run(ctx, op, order, ticket, call)
		cb(result, err)
	}()
	return nil
}

func (e *Executor) takeTicket() uint64 {
	e.gateMu.Lock()
	defer e.gateMu.Unlock()
	ticket := e.next
	e.next++
	return ticket
}

// waitTurn ждёт, пока стартуют все вызовы с меньшими билетами.
func (e *Executor) waitTurn(ticket uint64) {
	e.gateMu.Lock()
	for e.serving != ticket {
		e.gate.Wait()
	}
	e.serving++
	e.gate.Broadcast()
	e.gateMu.Unlock()
}

// run держит слот семафора только на время вызова хранилища.
func (e *Executor) run(
	ctx context.Context,
	op string,
	order domain.Order,
	ticket uint64,
	call func(context.Context, domain.Order) (domain.Order, error),
) (result domain.Order, err error) {
	defer e.sem.Release(1)
	e.waitTurn(ticket)

	defer func() {
		if r := recover(); r != nil {
			e.logger.WithFields(log.Fields{
				"op":       op,
				"order_id": order.OrderID,
				"panic":    r,
			}).Error("store call panicked")
			result, err = domain.Order{}, fmt.Errorf("store %s panicked: %v", op, r)
		}
	}()

	return call(ctx, order)
}
