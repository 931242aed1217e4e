package domain

import (
	"context"
	"time"
)

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ и возвращает его с назначенным ID.
	Create(ctx context.Context, order Order) (Order, error)
	// UpdateStatus записывает новый статус существующего заказа.
	// Заказ, уже находящийся в терминальном статусе, не меняется: ErrInvalidTransition.
	UpdateStatus(ctx context.Context, order Order) (Order, error)
	// FindByOrderID возвращает самый свежий заказ с данным бизнес-идентификатором
	// или ErrOrderNotFound.
	FindByOrderID(ctx context.Context, orderID string) (Order, error)
	// CountInRange считает заказы с CreatedAt в [start, end] включительно.
	CountInRange(ctx context.Context, start, end time.Time) (int64, error)
}
