package kafka

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/orderpipe/internal/domain"
)

// EventType определяет тип события
type EventType string

const (
	EventTypeOrderCompleted EventType = "order.completed"
	EventTypeOrderFailed    EventType = "order.failed"
)

// Topics для Kafka
const (
	TopicOrderEvents     = "orders.events"
	TopicDeadLetterQueue = "orders.events.dlq" // Dead Letter Queue для failed messages
)

// Kafka headers
const (
	HeaderEventType     = "x-event-type"
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// OrderEvent представляет событие завершения обработки заказа
type OrderEvent struct {
	EventType   EventType `json:"event_type"`
	OrderID     string    `json:"order_id"`
	InternalID  string    `json:"internal_id,omitempty"`
	CustomerID  string    `json:"customer_id"`
	Status      string    `json:"status"`
	Outcome     string    `json:"outcome"`
	Items       []string  `json:"items"`
	CreatedAt   time.Time `json:"created_at"`
	PublishedAt time.Time `json:"published_at"`
}

// DeadLetter — конверт сообщения, которое не удалось доставить или обработать.
type DeadLetter struct {
	OriginalTopic string    `json:"original_topic"`
	OriginalKey   string    `json:"original_key"`
	OriginalValue string    `json:"original_value"`
	ErrorMessage  string    `json:"error_message"`
	FailedAt      time.Time `json:"failed_at"`
	RetryCount    int       `json:"retry_count"`
}

// EventTypeFor возвращает тип события для итога обработки.
// Для INVALID_REQUEST событий нет.
func EventTypeFor(outcome domain.Outcome) (EventType, bool) {
	switch outcome {
	case domain.OutcomeCompleted:
		return EventTypeOrderCompleted, true
	case domain.OutcomeFailed:
		return EventTypeOrderFailed, true
	default:
		return "", false
	}
}

// NewOrderEvent создает событие заказа. Статус берётся из записи, которая
// при сбое обновления может остаться PROCESSING.
func NewOrderEvent(eventType EventType, order domain.Order, outcome domain.Outcome, now time.Time) *OrderEvent {
	items := make([]string, len(order.Items))
	copy(items, order.Items)
	return &OrderEvent{
		EventType:   eventType,
		OrderID:     order.OrderID,
		InternalID:  order.ID,
		CustomerID:  order.CustomerID,
		Status:      string(order.Status),
		Outcome:     string(outcome),
		Items:       items,
		CreatedAt:   order.CreatedAt,
		PublishedAt: now.UTC(),
	}
}

// DecodeOrderEvent разбирает JSON события и требует order_id.
func DecodeOrderEvent(raw []byte) (*OrderEvent, error) {
	var event OrderEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order event: %w", err)
	}
	if event.OrderID == "" {
		return nil, errors.New("order event without order_id")
	}
	return &event, nil
}

// DecodeDeadLetter разбирает конверт из DLQ.
func DecodeDeadLetter(raw []byte) (*DeadLetter, error) {
	var letter DeadLetter
	if err := json.Unmarshal(raw, &letter); err != nil {
		return nil, fmt.Errorf("failed to unmarshal dead letter: %w", err)
	}
	if letter.OriginalValue == "" {
		return nil, errors.New("dead letter without original value")
	}
	return &letter, nil
}
