package grpcsvc

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/orderpipe/internal/domain"
	"github.com/vladislavdragonenkov/orderpipe/internal/metrics"
	"github.com/vladislavdragonenkov/orderpipe/internal/service/processor"
	ordersv1 "github.com/vladislavdragonenkov/orderpipe/proto/orders/v1"
)

// Submitter принимает команды создания заказа.
type Submitter interface {
	Submit(ctx context.Context, req domain.CreateOrderRequest) (*processor.Reply, error)
}

// OrderService реализует gRPC API поверх обработчика заказов.
// Бизнес-исходы возвращаются в поле status, а не gRPC-ошибкой.
type OrderService struct {
	ordersv1.UnimplementedOrderServiceServer

	processor Submitter
	metrics   *metrics.OrderMetrics
	logger    *log.Entry
}

// NewOrderService конструирует сервис с зависимостями.
func NewOrderService(p Submitter, m *metrics.OrderMetrics, logger *log.Entry) *OrderService {
	if logger == nil {
		logger = log.New().WithField("component", "order-service")
	}
	return &OrderService{
		processor: p,
		metrics:   m,
		logger:    logger,
	}
}

// CreateOrder передаёт заказ в обработчик и ждёт единственный ответ.
func (s *OrderService) CreateOrder(ctx context.Context, req *ordersv1.CreateOrderRequest) (*ordersv1.CreateOrderResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	reply, err := s.processor.Submit(ctx, toDomainRequest(req))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrProcessorStopped):
			return nil, status.Error(codes.Unavailable, "order processor is shutting down")
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, status.FromContextError(err).Err()
		default:
			s.logger.WithError(err).WithField("order_id", req.GetOrderId()).Error("failed to submit order")
			return nil, status.Error(codes.Internal, "failed to submit order")
		}
	}

	res, err := reply.Wait(ctx)
	if err != nil {
		// Клиент ушёл, но заказ всё равно будет обработан до конца.
		s.logger.WithField("order_id", req.GetOrderId()).Warn("client gone before order outcome")
		return nil, status.FromContextError(err).Err()
	}

	s.metrics.RecordGRPCRequest(string(res.Outcome))
	return &ordersv1.CreateOrderResponse{
		OrderId: res.OrderID,
		Status:  string(res.Outcome),
	}, nil
}

func toDomainRequest(req *ordersv1.CreateOrderRequest) domain.CreateOrderRequest {
	items := make([]string, len(req.GetItems()))
	copy(items, req.GetItems())
	return domain.CreateOrderRequest{
		OrderID:       req.GetOrderId(),
		CustomerID:    req.GetCustomerId(),
		CustomerPhone: req.GetCustomerPhoneNumber(),
		CustomerEmail: req.GetCustomerEmail(),
		Items:         items,
	}
}
