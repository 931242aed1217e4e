package processor

import (
	"context"
	"sync/atomic"

	"github.com/vladislavdragonenkov/orderpipe/internal/domain"
)

// Result — ответ на команду создания заказа.
type Result struct {
	OrderID string
	Outcome domain.Outcome
}

// Reply — одноразовое обещание ответа. Завершить его можно ровно один раз.
type Reply struct {
	completed atomic.Bool
	result    Result
	ch        chan Result
}

// NewReply создаёт незавершённый ответ.
func NewReply() *Reply {
	return &Reply{ch: make(chan Result, 1)}
}

// Complete завершает ответ. Повторный вызов возвращает ErrAlreadyCompleted
// и не меняет уже отданный результат.
func (r *Reply) Complete(res Result) error {
	if !r.completed.CompareAndSwap(false, true) {
		return domain.ErrAlreadyCompleted
	}
	r.result = res
	r.ch <- res
	close(r.ch)
	return nil
}

// Completed сообщает, был ли ответ уже завершён.
func (r *Reply) Completed() bool {
	return r.completed.Load()
}

// Done возвращает канал, в который придёт единственный результат.
func (r *Reply) Done() <-chan Result {
	return r.ch
}

// Wait ждёт результат или отмену ctx. Отмена ctx не отменяет обработку заказа.
func (r *Reply) Wait(ctx context.Context) (Result, error) {
	select {
	case res, ok := <-r.ch:
		if !ok {
			return r.result, nil
		}
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}
