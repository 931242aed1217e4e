package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Значения label "result" для уведомлений.
const (
	NotificationDelivered = "delivered"
	NotificationFailed    = "failed"
	NotificationSkipped   = "skipped"
)

// OrderMetrics содержит метрики конвейера обработки заказов.
// Все методы безопасны для nil-получателя: метрики можно не подключать.
type OrderMetrics struct {
	// Итоги обработки
	processed prometheus.Counter
	failed    prometheus.Counter
	invalid   prometheus.Counter

	// Уведомления
	smsSent       prometheus.Counter
	notifications *prometheus.CounterVec

	// Время обработки и загрузка
	duration     prometheus.Histogram
	stepDuration *prometheus.HistogramVec
	mailboxDepth prometheus.Gauge
	inFlight     prometheus.Gauge

	// Входящие запросы и побочные каналы
	grpcRequests *prometheus.CounterVec
	apiRequests  *prometheus.CounterVec
	events       *prometheus.CounterVec
	cache        *prometheus.CounterVec
}

// NewOrderMetrics создаёт метрики в DefaultRegisterer.
func NewOrderMetrics() *OrderMetrics {
	return NewOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewOrderMetricsWithRegisterer создаёт метрики в указанном registerer (удобно для тестов).
func NewOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		processed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orders_processed_total",
			Help: "Total number of orders processed successfully",
		}),
		failed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orders_failed_total",
			Help: "Total number of orders that finished with FAILED",
		}),
		invalid: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orders_invalid_total",
			Help: "Total number of rejected order requests",
		}),
		smsSent: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orders_sms_sent_total",
			Help: "Total number of SMS accepted by the SMSC",
		}),
		notifications: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orders_notifications_total",
			Help: "Notification attempts grouped by channel and result",
		}, []string{"channel", "result"}),
		duration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "orders_processing_duration_seconds",
			Help:    "Time from admission to reply in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		stepDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "orders_step_duration_seconds",
			Help:    "Duration of individual pipeline steps in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}, []string{"step"}),
		mailboxDepth: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "orders_mailbox_depth",
			Help: "Number of commands waiting in the processor mailbox",
		}),
		inFlight: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "orders_in_flight",
			Help: "Number of admitted orders without a reply yet",
		}),
		grpcRequests: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orders_grpc_requests_total",
			Help: "CreateOrder calls grouped by returned status",
		}, []string{"status"}),
		apiRequests: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orders_api_requests_total",
			Help: "Query API requests grouped by route",
		}, []string{"route"}),
		events: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orders_events_published_total",
			Help: "Order lifecycle event publish attempts grouped by result",
		}, []string{"result"}),
		cache: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orders_status_cache_total",
			Help: "Status cache lookups grouped by result",
		}, []string{"result"}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordProcessed увеличивает счётчик успешно обработанных заказов.
func (m *OrderMetrics) RecordProcessed() {
	if m == nil {
		return
	}
	m.processed.Inc()
}

// RecordFailed увеличивает счётчик заказов с итогом FAILED.
func (m *OrderMetrics) RecordFailed() {
	if m == nil {
		return
	}
	m.failed.Inc()
}

// RecordInvalid увеличивает счётчик отклонённых запросов.
func (m *OrderMetrics) RecordInvalid() {
	if m == nil {
		return
	}
	m.invalid.Inc()
}

// RecordSMSSent увеличивает счётчик отправленных SMS.
func (m *OrderMetrics) RecordSMSSent() {
	if m == nil {
		return
	}
	m.smsSent.Inc()
}

// RecordNotification фиксирует попытку уведомления по каналу.
func (m *OrderMetrics) RecordNotification(channel, result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(channel, result).Inc()
}

// RecordDuration записывает время от приёма запроса до ответа.
func (m *OrderMetrics) RecordDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.duration.Observe(duration.Seconds())
}

// RecordStepDuration записывает время выполнения шага конвейера.
func (m *OrderMetrics) RecordStepDuration(step string, duration time.Duration) {
	if m == nil {
		return
	}
	m.stepDuration.WithLabelValues(step).Observe(duration.Seconds())
}

// SetMailboxDepth выставляет текущую глубину очереди процессора.
func (m *OrderMetrics) SetMailboxDepth(depth int) {
	if m == nil {
		return
	}
	m.mailboxDepth.Set(float64(depth))
}

// RecordInFlightStarted увеличивает число заказов в обработке.
func (m *OrderMetrics) RecordInFlightStarted() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

// RecordInFlightFinished уменьшает число заказов в обработке.
func (m *OrderMetrics) RecordInFlightFinished() {
	if m == nil {
		return
	}
	m.inFlight.Dec()
}

// RecordGRPCRequest фиксирует ответ CreateOrder.
func (m *OrderMetrics) RecordGRPCRequest(status string) {
	if m == nil {
		return
	}
	m.grpcRequests.WithLabelValues(status).Inc()
}

// RecordAPIRequest фиксирует запрос к query API.
func (m *OrderMetrics) RecordAPIRequest(route string) {
	if m == nil {
		return
	}
	m.apiRequests.WithLabelValues(route).Inc()
}

// RecordEventPublish фиксирует попытку публикации события.
func (m *OrderMetrics) RecordEventPublish(result string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(result).Inc()
}

// RecordCacheLookup фиксирует обращение к кэшу статусов.
func (m *OrderMetrics) RecordCacheLookup(result string) {
	if m == nil {
		return
	}
	m.cache.WithLabelValues(result).Inc()
}
