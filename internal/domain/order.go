package domain

import (
	"strings"
	"time"
)

// OrderStatus описывает сохраняемый статус заказа.
type OrderStatus string

const (
	// OrderStatusProcessing — заказ принят и записан, обработка не завершена.
	OrderStatusProcessing OrderStatus = "PROCESSING"
	// OrderStatusCompleted — заказ успешно обработан.
	OrderStatusCompleted OrderStatus = "COMPLETED"
	// OrderStatusFailed — обработка заказа завершилась ошибкой.
	OrderStatusFailed OrderStatus = "FAILED"
)

// IsTerminal сообщает, что из статуса больше нет переходов.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusFailed
}

// Outcome — итог обработки запроса, который получает вызывающая сторона.
// INVALID_REQUEST существует только как итог и никогда не сохраняется.
type Outcome string

const (
	OutcomeCompleted      Outcome = "COMPLETED"
	OutcomeFailed         Outcome = "FAILED"
	OutcomeInvalidRequest Outcome = "INVALID_REQUEST"
)

// Order агрегирует состояние заказа.
type Order struct {
	// ID назначается хранилищем при первой записи.
	ID            string
	OrderID       string
	CustomerID    string
	CustomerPhone string
	// CustomerEmail необязателен; пустое значение отключает email-уведомление.
	CustomerEmail string
	Status        OrderStatus
	Items         []string
	// CreatedAt фиксируется при первой записи и больше не меняется.
	CreatedAt time.Time
}

// NewOrder строит заказ в статусе PROCESSING из проверенного запроса.
func NewOrder(req CreateOrderRequest, now time.Time) Order {
	items := make([]string, len(req.Items))
	copy(items, req.Items)
	return Order{
		OrderID:       req.OrderID,
		CustomerID:    req.CustomerID,
		CustomerPhone: req.CustomerPhone,
		CustomerEmail: req.CustomerEmail,
		Status:        OrderStatusProcessing,
		Items:         items,
		CreatedAt:     now.UTC(),
	}
}

// TransitionTo переводит заказ в новый статус.
// Разрешены только PROCESSING -> COMPLETED и PROCESSING -> FAILED.
func (o *Order) TransitionTo(next OrderStatus) error {
	if o.Status != OrderStatusProcessing || !next.IsTerminal() {
		return ErrInvalidTransition
	}
	o.Status = next
	return nil
}

// Clone возвращает копию заказа, не разделяющую срез позиций.
func (o Order) Clone() Order {
	items := make([]string, len(o.Items))
	copy(items, o.Items)
	o.Items = items
	return o
}

// CreateOrderRequest — входящая команда на создание заказа.
type CreateOrderRequest struct {
	OrderID       string
	CustomerID    string
	CustomerPhone string
	CustomerEmail string
	Items         []string
}

// Validate выполняет проверки по порядку и возвращает первую найденную ошибку.
func (r CreateOrderRequest) Validate() error {
	switch {
	case isBlank(r.OrderID):
		return ErrOrderIDRequired
	case isBlank(r.CustomerID):
		return ErrCustomerRequired
	case isBlank(r.CustomerPhone):
		return ErrPhoneRequired
	case len(r.Items) == 0:
		return ErrItemsRequired
	}
	return nil
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
