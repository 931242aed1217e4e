// Package processor последовательно принимает команды создания заказов
// и проводит каждый заказ через запись, обновление статуса и уведомления.
package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/orderpipe/internal/domain"
	"github.com/vladislavdragonenkov/orderpipe/internal/metrics"
	"github.com/vladislavdragonenkov/orderpipe/internal/service/notify"
	"github.com/vladislavdragonenkov/orderpipe/internal/storage/async"
)

const (
	defaultMailboxSize = 1024
	tracerName         = "github.com/vladislavdragonenkov/orderpipe/processor"
)

// Store — асинхронное хранилище: результат приходит в callback.
type Store interface {
	Create(ctx context.Context, order domain.Order, cb async.Callback) error
	UpdateStatus(ctx context.Context, order domain.Order, cb async.Callback) error
}

// Notifier рассылает уведомления по завершённому заказу.
type Notifier interface {
	Dispatch(ctx context.Context, order domain.Order) notify.Report
}

// Options задаёт параметры Processor.
type Options struct {
	Logger      *log.Entry
	Metrics     *metrics.OrderMetrics
	Tracer      trace.Tracer
	Events      domain.EventPublisher
	MailboxSize int
	Clock       func() time.Time
}

// Option настраивает Processor.
type Option func(*Options)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) { opts.Logger = logger }
}

// WithMetrics подключает метрики.
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(opts *Options) { opts.Metrics = m }
}

// WithTracer задаёт tracer вместо глобального.
func WithTracer(tracer trace.Tracer) Option {
	return func(opts *Options) { opts.Tracer = tracer }
}

// WithEventPublisher подключает публикацию событий после ответа.
func WithEventPublisher(events domain.EventPublisher) Option {
	return func(opts *Options) { opts.Events = events }
}

// WithMailboxSize задаёт ёмкость очереди команд.
func WithMailboxSize(size int) Option {
	return func(opts *Options) { opts.MailboxSize = size }
}

// WithClock подменяет источник времени.
func WithClock(clock func() time.Time) Option {
	return func(opts *Options) { opts.Clock = clock }
}

type command struct {
	ctx        context.Context
	req        domain.CreateOrderRequest
	reply      *Reply
	admittedAt time.Time
}

// Processor — единственный последовательный обработчик команд.
// Валидация и постановка записи в хранилище идут строго в порядке поступления;
// продолжения (обновление, уведомления, ответ) выполняются на горутинах хранилища.
type Processor struct {
	store    Store
	notifier Notifier
	events   domain.EventPublisher
	metrics  *metrics.OrderMetrics
	tracer   trace.Tracer
	logger   *log.Entry
	now      func() time.Time

	mailbox chan command

	mu       sync.RWMutex
	started  bool
	closed   bool
	inFlight sync.WaitGroup
	done     chan struct{}
}

// New создаёт процессор. Обработка начинается после Start.
func New(store Store, notifier Notifier, options ...Option) *Processor {
	opts := Options{MailboxSize: defaultMailboxSize, Clock: time.Now}
	for _, option := range options {
		option(&opts)
	}
	if opts.MailboxSize <= 0 {
		opts.MailboxSize = defaultMailboxSize
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(tracerName)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New().WithField("component", "order-processor")
	}

	return &Processor{
		store:    store,
		notifier: notifier,
		events:   opts.Events,
		metrics:  opts.Metrics,
		tracer:   opts.Tracer,
		logger:   logger,
		now:      opts.Clock,
		mailbox:  make(chan command, opts.MailboxSize),
		done:     make(chan struct{}),
	}
}

// Start запускает горутину-обработчик очереди.
func (p *Processor) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	go func() {
		defer close(p.done)
		for cmd := range p.mailbox {
			p.metrics.SetMailboxDepth(len(p.mailbox))
			p.handle(cmd)
		}
	}()
	p.logger.Info("order processor started")
}

// Submit ставит команду в очередь. Ответ придёт в возвращённый Reply.
// Отмена ctx прерывает только ожидание места в очереди: принятая команда
// обрабатывается до конца.
func (p *Processor) Submit(ctx context.Context, req domain.CreateOrderRequest) (*Reply, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, domain.ErrProcessorStopped
	}

	cmd := command{
		ctx:        context.WithoutCancel(ctx),
		req:        req,
		reply:      NewReply(),
		admittedAt: p.now(),
	}

	p.inFlight.Add(1)
	select {
	case p.mailbox <- cmd:
		p.metrics.RecordInFlightStarted()
		p.metrics.SetMailboxDepth(len(p.mailbox))
		return cmd.reply, nil
	case <-ctx.Done():
		p.inFlight.Done()
		return nil, ctx.Err()
	}
}

// Stop закрывает приём команд, дорабатывает очередь и ждёт ответов
// на все принятые команды.
func (p *Processor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.mailbox)
	started := p.started
	p.mu.Unlock()

	if !started {
		// Обработчик не запускался: принятые команды завершаем как FAILED.
		for cmd := range p.mailbox {
			_, span := p.tracer.Start(cmd.ctx, "order.process")
			p.newPending(cmd, span).finish(domain.OutcomeFailed, domain.ErrProcessorStopped)
		}
		close(p.done)
	}

	waitDone := make(chan struct{})
	go func() {
		<-p.done
		p.inFlight.Wait()
		close(waitDone)
	}()

	select {
	case <-waitDone:
		p.logger.Info("order processor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// handle выполняет шаги, принадлежащие последовательному обработчику:
// валидацию и постановку записи в хранилище.
func (p *Processor) handle(cmd command) {
	ctx, span := p.tracer.Start(cmd.ctx, "order.process",
		trace.WithAttributes(attribute.String("order.id", cmd.req.OrderID)))
	pending := p.newPending(cmd, span)

	defer func() {
		if r := recover(); r != nil {
			pending.finish(domain.OutcomeFailed, fmt.Errorf("panic while handling order: %v", r))
		}
	}()

	if err := cmd.req.Validate(); err != nil {
		pending.logger.WithError(err).Warn("order request rejected")
		pending.finish(domain.OutcomeInvalidRequest, err)
		return
	}

	pending.order = domain.NewOrder(cmd.req, p.now())
	pending.stepStarted = p.now()
	createCtx, createSpan := p.tracer.Start(ctx, "order.store.create")
	if err := p.store.Create(createCtx, pending.order, func(created domain.Order, err error) {
		createSpan.End()
		pending.onCreated(ctx, created, err)
	}); err != nil {
		createSpan.End()
		pending.logger.WithError(err).Error("failed to dispatch order create")
		pending.finish(domain.OutcomeFailed, err)
	}
}

// pendingOrder — заказ в обработке. Только finish завершает Reply.
type pendingOrder struct {
	p           *Processor
	cmd         command
	span        trace.Span
	logger      *log.Entry
	order       domain.Order
	stepStarted time.Time
}

func (p *Processor) newPending(cmd command, span trace.Span) *pendingOrder {
	return &pendingOrder{
		p:      p,
		cmd:    cmd,
		span:   span,
		logger: p.logger.WithField("order_id", cmd.req.OrderID),
	}
}

func (po *pendingOrder) onCreated(ctx context.Context, created domain.Order, err error) {
	defer po.recoverStep("create")
	po.p.metrics.RecordStepDuration("create", po.p.now().Sub(po.stepStarted))

	if err != nil {
		po.logger.WithError(err).Error("failed to persist order")
		po.finish(domain.OutcomeFailed, err)
		return
	}
	po.order = created
	po.logger.WithField("internal_id", created.ID).Debug("order persisted with PROCESSING status")

	if err := po.order.TransitionTo(domain.OrderStatusCompleted); err != nil {
		po.finish(domain.OutcomeFailed, err)
		return
	}

	po.stepStarted = po.p.now()
	updateCtx, updateSpan := po.p.tracer.Start(ctx, "order.store.update")
	if err := po.p.store.UpdateStatus(updateCtx, po.order, func(updated domain.Order, err error) {
		updateSpan.End()
		po.onUpdated(ctx, updated, err)
	}); err != nil {
		updateSpan.End()
		po.logger.WithError(err).Error("failed to dispatch order status update")
		po.finish(domain.OutcomeFailed, err)
	}
}

func (po *pendingOrder) onUpdated(ctx context.Context, updated domain.Order, err error) {
	defer po.recoverStep("update")
	po.p.metrics.RecordStepDuration("update", po.p.now().Sub(po.stepStarted))

	if err != nil {
		// Сохранённая копия остаётся в PROCESSING.
		po.logger.WithError(err).Error("failed to update order status, stored order remains PROCESSING")
		po.order.Status = domain.OrderStatusProcessing
		po.finish(domain.OutcomeFailed, err)
		return
	}
	po.order = updated

	notifyStarted := po.p.now()
	notifyCtx, notifySpan := po.p.tracer.Start(ctx, "order.notify")
	report := po.notify(notifyCtx, updated)
	notifySpan.SetAttributes(
		attribute.String("notify.sms", string(report.SMS)),
		attribute.String("notify.email", string(report.Email)),
	)
	notifySpan.End()
	po.p.metrics.RecordStepDuration("notify", po.p.now().Sub(notifyStarted))

	po.p.metrics.RecordProcessed()
	po.finish(domain.OutcomeCompleted, nil)
}

// notify вызывает рассылку. Запись уже COMPLETED, поэтому паника
// рассылки засчитывается как сбой обоих каналов, а не заказа.
func (po *pendingOrder) notify(ctx context.Context, order domain.Order) (report notify.Report) {
	defer func() {
		if r := recover(); r != nil {
			po.logger.WithField("panic", r).Error("notification dispatch panicked")
			report = notify.Report{SMS: notify.Failed, Email: notify.Failed}
		}
	}()
	return po.p.notifier.Dispatch(ctx, order)
}

func (po *pendingOrder) recoverStep(step string) {
	if r := recover(); r != nil {
		po.finish(domain.OutcomeFailed, fmt.Errorf("panic in %s step: %v", step, r))
	}
}

// finish завершает Reply. Повторное завершение считается дефектом и только логируется.
func (po *pendingOrder) finish(outcome domain.Outcome, cause error) {
	res := Result{OrderID: po.cmd.req.OrderID, Outcome: outcome}
	if err := po.cmd.reply.Complete(res); err != nil {
		po.logger.WithError(err).WithField("outcome", outcome).Error("attempt to complete reply twice")
		return
	}

	entry := po.logger.WithField("outcome", outcome)
	switch outcome {
	case domain.OutcomeCompleted:
		entry.Info("order processed")
	case domain.OutcomeInvalidRequest:
		po.p.metrics.RecordInvalid()
	default:
		po.p.metrics.RecordFailed()
		if cause != nil {
			entry = entry.WithError(cause)
			po.span.RecordError(cause)
		}
		entry.Warn("order processing failed")
	}
	if outcome == domain.OutcomeCompleted {
		po.span.SetStatus(codes.Ok, "")
	} else {
		po.span.SetStatus(codes.Error, string(outcome))
	}
	po.span.End()

	po.p.metrics.RecordDuration(po.p.now().Sub(po.cmd.admittedAt))
	po.publish(outcome)

	po.p.metrics.RecordInFlightFinished()
	po.p.inFlight.Done()
}

// publish отправляет событие жизненного цикла после ответа. Ошибки не влияют на итог.
func (po *pendingOrder) publish(outcome domain.Outcome) {
	if po.p.events == nil || outcome == domain.OutcomeInvalidRequest {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			po.logger.WithField("panic", r).Error("event publisher panicked")
		}
	}()
	if err := po.p.events.PublishOrderEvent(po.cmd.ctx, po.order, outcome); err != nil {
		po.logger.WithError(err).Warn("failed to publish order event")
	}
}
