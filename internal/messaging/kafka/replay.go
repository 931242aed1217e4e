package kafka

import (
	"context"
	"strconv"
	"sync/atomic"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

// ReplayStats — счётчики одного прогона Replayer.
type ReplayStats struct {
	Replayed int64
	Skipped  int64
}

// Replayer возвращает события из DLQ в исходный topic.
// Без producer работает в режиме dry-run и только пишет в лог.
type Replayer struct {
	producer      *Producer
	fallbackTopic string
	logger        *log.Entry

	replayed atomic.Int64
	skipped  atomic.Int64
}

// NewReplayer создаёт Replayer. fallbackTopic используется, если в конверте нет исходного topic.
func NewReplayer(producer *Producer, fallbackTopic string, logger *log.Entry) *Replayer {
	if fallbackTopic == "" {
		fallbackTopic = TopicOrderEvents
	}
	if logger == nil {
		logger = log.WithField("component", "dlq-replayer")
	}
	return &Replayer{producer: producer, fallbackTopic: fallbackTopic, logger: logger}
}

// Handle подходит как Handler для Consumer на DLQ topic.
// Нечитаемые конверты пропускаются и подтверждаются, ошибка отправки возвращается для повтора.
func (r *Replayer) Handle(_ context.Context, message *sarama.ConsumerMessage) error {
	entry := r.logger.WithField("offset", message.Offset)

	letter, err := DecodeDeadLetter(message.Value)
	if err != nil {
		r.skipped.Add(1)
		entry.WithError(err).Warn("skip unreadable dead letter")
		return nil
	}
	event, err := DecodeOrderEvent([]byte(letter.OriginalValue))
	if err != nil {
		r.skipped.Add(1)
		entry.WithError(err).Warn("skip dead letter without order event")
		return nil
	}

	topic := letter.OriginalTopic
	if topic == "" {
		topic = r.fallbackTopic
	}
	key := letter.OriginalKey
	if key == "" {
		key = event.OrderID
	}
	entry = entry.WithFields(log.Fields{"order_id": event.OrderID, "target_topic": topic})

	if r.producer == nil {
		r.replayed.Add(1)
		entry.Info("dry-run: event would be replayed")
		return nil
	}

	err = r.producer.PublishRaw(topic, key, []byte(letter.OriginalValue), map[string]string{
		HeaderEventType:  string(event.EventType),
		HeaderRetryCount: strconv.Itoa(letter.RetryCount),
	})
	if err != nil {
		return err
	}
	r.replayed.Add(1)
	entry.Info("event replayed")
	return nil
}

// Stats возвращает текущие счётчики.
func (r *Replayer) Stats() ReplayStats {
	return ReplayStats{Replayed: r.replayed.Load(), Skipped: r.skipped.Load()}
}
