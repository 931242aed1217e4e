// Package events доставляет события жизненного цикла заказов во внешнюю шину
// в фоне, не задерживая ответ клиенту.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderpipe/internal/domain"
	"github.com/vladislavdragonenkov/orderpipe/internal/metrics"
)

const (
	defaultQueueSize      = 1024
	defaultMaxAttempts    = 3
	defaultRetryBaseDelay = 50 * time.Millisecond
)

// Результаты публикации для метрики orders_events_published_total.
const (
	ResultSent       = "sent"
	ResultRetryError = "retry_error"
	ResultFailed     = "failed"
	ResultDLQ        = "dlq"
	ResultDLQFailed  = "dlq_failed"
	ResultDropped    = "dropped"
)

// ErrRelayClosed возвращается после Close.
var ErrRelayClosed = errors.New("event relay closed")

// ErrQueueFull — очередь событий переполнена, событие отброшено.
var ErrQueueFull = errors.New("event relay queue is full")

// DeadLetterPublisher принимает события, которые не удалось доставить.
type DeadLetterPublisher interface {
	PublishDeadLetter(ctx context.Context, order domain.Order, outcome domain.Outcome, attempts int, cause error) error
}

// RelayOptions задаёт параметры Relay.
type RelayOptions struct {
	Logger         *log.Entry
	Metrics        *metrics.OrderMetrics
	DLQPublisher   DeadLetterPublisher
	QueueSize      int
	MaxAttempts    int
	RetryBaseDelay time.Duration
}

// Option настраивает Relay.
type Option func(*RelayOptions)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(opts *RelayOptions) {
		opts.Logger = logger
	}
}

// WithMetrics задаёт метрики.
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(opts *RelayOptions) {
		opts.Metrics = m
	}
}

// WithDLQPublisher задаёт publisher для отправки в DLQ после исчерпания retry.
func WithDLQPublisher(publisher DeadLetterPublisher) Option {
	return func(opts *RelayOptions) {
		opts.DLQPublisher = publisher
	}
}

// WithQueueSize задаёт ёмкость очереди.
func WithQueueSize(size int) Option {
	return func(opts *RelayOptions) {
		opts.QueueSize = size
	}
}

// WithMaxAttempts задаёт число попыток публикации перед DLQ.
func WithMaxAttempts(maxAttempts int) Option {
	return func(opts *RelayOptions) {
		opts.MaxAttempts = maxAttempts
	}
}

// WithRetryBaseDelay задаёт базовый delay для exponential backoff.
func WithRetryBaseDelay(delay time.Duration) Option {
	return func(opts *RelayOptions) {
		opts.RetryBaseDelay = delay
	}
}

type envelope struct {
	ctx     context.Context
	order   domain.Order
	outcome domain.Outcome
}

// Relay ставит события в очередь и публикует их из одной фоновой горутины.
// Сам реализует domain.EventPublisher, поэтому подключается к обработчику напрямую.
type Relay struct {
	publisher      domain.EventPublisher
	dlqPublisher   DeadLetterPublisher
	metrics        *metrics.OrderMetrics
	logger         *log.Entry
	maxAttempts    int
	retryBaseDelay time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan envelope
	done   chan struct{}
}

// NewRelay создаёт relay поверх publisher.
func NewRelay(publisher domain.EventPublisher, options ...Option) *Relay {
	opts := RelayOptions{
		QueueSize:      defaultQueueSize,
		MaxAttempts:    defaultMaxAttempts,
		RetryBaseDelay: defaultRetryBaseDelay,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "event-relay")
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.RetryBaseDelay < 0 {
		opts.RetryBaseDelay = 0
	}

	return &Relay{
		publisher:      publisher,
		dlqPublisher:   opts.DLQPublisher,
		metrics:        opts.Metrics,
		logger:         logger,
		maxAttempts:    opts.MaxAttempts,
		retryBaseDelay: opts.RetryBaseDelay,
		queue:          make(chan envelope, opts.QueueSize),
		done:           make(chan struct{}),
	}
}

// PublishOrderEvent ставит событие в очередь и не ждёт доставки.
func (r *Relay) PublishOrderEvent(ctx context.Context, order domain.Order, outcome domain.Outcome) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrRelayClosed
	}

	select {
	case r.queue <- envelope{ctx: context.WithoutCancel(ctx), order: order.Clone(), outcome: outcome}:
		return nil
	default:
		r.metrics.RecordEventPublish(ResultDropped)
		return ErrQueueFull
	}
}

// Run публикует события до Close (с дочиткой очереди) или отмены ctx.
func (r *Relay) Run(ctx context.Context) {
	defer close(r.done)
	if r.publisher == nil {
		r.logger.Warn("event relay is disabled: publisher is nil")
		for range r.queue {
		}
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-r.queue:
			if !ok {
				return
			}
			r.deliver(ctx, env)
		}
	}
}

// Close закрывает приём событий и ждёт, пока Run дочитает очередь.
// Run должен быть запущен, иначе Close вернёт ошибку ctx.
func (r *Relay) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Relay) deliver(ctx context.Context, env envelope) {
	entry := r.logger.WithFields(log.Fields{
		"order_id": env.order.OrderID,
		"outcome":  env.outcome,
	})

	attempts, err := r.publishWithRetry(ctx, env)
	if err == nil {
		return
	}

	entry.WithError(err).Error("order event publish failed after retries")
	r.metrics.RecordEventPublish(ResultFailed)

	if r.dlqPublisher == nil {
		return
	}
	if dlqErr := r.dlqPublisher.PublishDeadLetter(env.ctx, env.order, env.outcome, attempts, err); dlqErr != nil {
		entry.WithError(dlqErr).Warn("failed to publish to DLQ")
		r.metrics.RecordEventPublish(ResultDLQFailed)
		return
	}
	r.metrics.RecordEventPublish(ResultDLQ)
}

func (r *Relay) publishWithRetry(ctx context.Context, env envelope) (int, error) {
	var lastErr error

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		err := r.publishOnce(env)
		if err == nil {
			r.metrics.RecordEventPublish(ResultSent)
			return attempt, nil
		}
		lastErr = err
		r.metrics.RecordEventPublish(ResultRetryError)

		if attempt >= r.maxAttempts {
			break
		}

		delay := r.retryBackoff(attempt)
		if delay <= 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return attempt, ctx.Err()
		case <-time.After(delay):
		}
	}

	return r.maxAttempts, fmt.Errorf("publish failed after %d attempts: %w", r.maxAttempts, lastErr)
}

func (r *Relay) publishOnce(env envelope) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("event publisher panicked: %v", rec)
		}
	}()
	return r.publisher.PublishOrderEvent(env.ctx, env.order, env.outcome)
}

func (r *Relay) retryBackoff(attempt int) time.Duration {
	if r.retryBaseDelay <= 0 {
		return 0
	}
	if attempt <= 1 {
		return r.retryBaseDelay
	}

	const maxDuration = time.Duration(1<<63 - 1)
	delay := r.retryBaseDelay
	for i := 1; i < attempt; i++ {
		if delay > maxDuration/2 {
			return maxDuration
		}
		delay *= 2
	}
	return delay
}

var _ domain.EventPublisher = (*Relay)(nil)
