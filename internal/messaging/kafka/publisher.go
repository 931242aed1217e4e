package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/vladislavdragonenkov/orderpipe/internal/domain"
)

// OrderEventPublisher публикует события заказов в topic, ключ — бизнес-ID заказа.
type OrderEventPublisher struct {
	producer *Producer
	topic    string
	now      func() time.Time
}

// NewOrderEventPublisher создаёт publisher. Пустой topic заменяется на TopicOrderEvents.
func NewOrderEventPublisher(producer *Producer, topic string) *OrderEventPublisher {
	if topic == "" {
		topic = TopicOrderEvents
	}
	return &OrderEventPublisher{
		producer: producer,
		topic:    topic,
		now:      time.Now,
	}
}

// Topic возвращает целевой topic.
func (p *OrderEventPublisher) Topic() string {
	return p.topic
}

// PublishOrderEvent отправляет событие. INVALID_REQUEST не публикуется.
func (p *OrderEventPublisher) PublishOrderEvent(ctx context.Context, order domain.Order, outcome domain.Outcome) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka order publisher is not initialized")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	eventType, ok := EventTypeFor(outcome)
	if !ok {
		return nil
	}

	event := NewOrderEvent(eventType, order, outcome, p.now())
	return p.producer.PublishJSON(p.topic, order.OrderID, event, map[string]string{
		HeaderEventType: string(eventType),
	})
}

// PublishDeadLetter отправляет событие, которое не удалось доставить, в DLQ.
func (p *OrderEventPublisher) PublishDeadLetter(ctx context.Context, order domain.Order, outcome domain.Outcome, attempts int, cause error) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka order publisher is not initialized")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	eventType, ok := EventTypeFor(outcome)
	if !ok {
		return nil
	}

	original, err := json.Marshal(NewOrderEvent(eventType, order, outcome, p.now()))
	if err != nil {
		return fmt.Errorf("marshal original event: %w", err)
	}
	failedAt := p.now().UTC()
	letter := DeadLetter{
		OriginalTopic: p.topic,
		OriginalKey:   order.OrderID,
		OriginalValue: string(original),
		ErrorMessage:  cause.Error(),
		FailedAt:      failedAt,
		RetryCount:    attempts,
	}
	return p.producer.PublishJSON(TopicDeadLetterQueue, order.OrderID, letter, map[string]string{
		HeaderOriginalTopic: p.topic,
		HeaderErrorMessage:  cause.Error(),
		HeaderFailedAt:      failedAt.Format(time.RFC3339),
		HeaderRetryCount:    strconv.Itoa(attempts),
		HeaderEventType:     string(eventType),
	})
}

var _ domain.EventPublisher = (*OrderEventPublisher)(nil)
