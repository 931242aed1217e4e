// Package query отвечает на запросы чтения: статус заказа, число заказов
// за период и состояние сервиса.
package query

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderpipe/internal/domain"
	"github.com/vladislavdragonenkov/orderpipe/internal/metrics"
	"github.com/vladislavdragonenkov/orderpipe/internal/version"
)

// ServiceName возвращается в ответе о состоянии.
const ServiceName = "OrderService"

// StatusCache — необязательный кэш проекций заказов.
type StatusCache interface {
	Get(ctx context.Context, orderID string) (domain.Order, bool, error)
	Set(ctx context.Context, order domain.Order) error
}

// StatusView — проекция заказа для клиента.
type StatusView struct {
	OrderID    string             `json:"orderId"`
	CustomerID string             `json:"customerId"`
	Status     domain.OrderStatus `json:"status"`
	Items      []string           `json:"items"`
	ItemCount  int                `json:"itemCount"`
	Timestamp  time.Time          `json:"timestamp"`
}

// CountView — результат подсчёта заказов за период.
type CountView struct {
	TotalOrders    int64     `json:"totalOrders"`
	StartDate      time.Time `json:"startDate"`
	EndDate        time.Time `json:"endDate"`
	QueryTimestamp time.Time `json:"queryTimestamp"`
}

// HealthView — ответ о состоянии сервиса.
type HealthView struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// Service — read-only доступ к заказам.
type Service struct {
	repo    domain.OrderRepository
	cache   StatusCache
	metrics *metrics.OrderMetrics
	logger  *log.Entry
	now     func() time.Time
}

// NewService создаёт сервис запросов. cache может быть nil.
func NewService(repo domain.OrderRepository, cache StatusCache, m *metrics.OrderMetrics, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "order-query")
	}
	return &Service{
		repo:    repo,
		cache:   cache,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// GetStatus возвращает проекцию самого свежего заказа с данным бизнес-ID
// или domain.ErrOrderNotFound.
func (s *Service) GetStatus(ctx context.Context, orderID string) (StatusView, error) {
	if s.cache != nil {
		order, found, err := s.cache.Get(ctx, orderID)
		switch {
		case err != nil:
			s.metrics.RecordCacheLookup("error")
			s.logger.WithError(err).WithField("order_id", orderID).Warn("status cache lookup failed")
		case found:
			s.metrics.RecordCacheLookup("hit")
			return toStatusView(order), nil
		default:
			s.metrics.RecordCacheLookup("miss")
		}
	}

	order, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		return StatusView{}, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, order); err != nil {
			s.logger.WithError(err).WithField("order_id", orderID).Warn("failed to cache order status")
		}
	}
	return toStatusView(order), nil
}

// CountInRange считает заказы с временем создания в [start, end].
// При start > end хранилище не опрашивается.
func (s *Service) CountInRange(ctx context.Context, start, end time.Time) (CountView, error) {
	if start.After(end) {
		return CountView{}, domain.ErrInvalidDateRange
	}

	total, err := s.repo.CountInRange(ctx, start, end)
	if err != nil {
		return CountView{}, err
	}
	return CountView{
		TotalOrders:    total,
		StartDate:      start,
		EndDate:        end,
		QueryTimestamp: s.now().UTC(),
	}, nil
}

// Health возвращает фиксированный ответ о состоянии сервиса.
func (s *Service) Health() HealthView {
	return HealthView{
		Status:    "UP",
		Service:   ServiceName,
		Timestamp: s.now().UTC(),
		Version:   version.GetVersion(),
	}
}

func toStatusView(order domain.Order) StatusView {
	items := order.Items
	if items == nil {
		items = []string{}
	}
	return StatusView{
		OrderID:    order.OrderID,
		CustomerID: order.CustomerID,
		Status:     order.Status,
		Items:      items,
		ItemCount:  len(order.Items),
		Timestamp:  order.CreatedAt,
	}
}
