package kafka

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

// Handler обрабатывает одно сообщение. Ошибка запускает повтор.
type Handler func(ctx context.Context, message *sarama.ConsumerMessage) error

const (
	defaultMaxAttempts = 3
	defaultRetryDelay  = 100 * time.Millisecond
)

// ConsumerOptions настраивает повторы и пересылку в DLQ.
type ConsumerOptions struct {
	// MaxAttempts учитывает попытки из заголовка x-retry-count.
	MaxAttempts int
	RetryDelay  time.Duration
	// DeadLetters получает сообщения, исчерпавшие попытки. nil оставляет их неподтверждёнными.
	DeadLetters *Producer
	FromOldest  bool
	Logger      *log.Entry
}

// Consumer читает topics в составе consumer group.
type Consumer struct {
	group  sarama.ConsumerGroup
	topics []string
	handle Handler
	opts   ConsumerOptions
	logger *log.Entry
}

// NewConsumerConfig возвращает настройки consumer group.
func NewConsumerConfig(fromOldest bool) *sarama.Config {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	if fromOldest {
		config.Consumer.Offsets.Initial = sarama.OffsetOldest
	}
	config.Consumer.Return.Errors = true
	return config
}

// NewConsumer подключается к brokers как участник groupID.
func NewConsumer(brokers []string, groupID string, topics []string, handler Handler, opts ConsumerOptions) (*Consumer, error) {
	group, err := sarama.NewConsumerGroup(brokers, groupID, NewConsumerConfig(opts.FromOldest))
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}
	return NewConsumerWithGroup(group, topics, handler, opts), nil
}

// NewConsumerWithGroup оборачивает готовую consumer group.
func NewConsumerWithGroup(group sarama.ConsumerGroup, topics []string, handler Handler, opts ConsumerOptions) *Consumer {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = defaultRetryDelay
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "kafka-consumer")
	}
	return &Consumer{group: group, topics: topics, handle: handler, opts: opts, logger: logger}
}

// Run читает сообщения до отмены ctx. Consume перезапускается после каждого rebalance.
func (c *Consumer) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for err := range c.group.Errors() {
			c.logger.WithError(err).Warn("consumer group error")
		}
	}()
	defer wg.Wait()
	defer func() {
		if err := c.group.Close(); err != nil {
			c.logger.WithError(err).Warn("failed to close consumer group")
		}
	}()

	c.logger.WithField("topics", c.topics).Info("kafka consumer started")
	for {
		err := c.group.Consume(ctx, c.topics, c)
		if ctx.Err() != nil {
			c.logger.Info("kafka consumer stopped")
			return nil
		}
		if errors.Is(err, sarama.ErrClosedConsumerGroup) {
			return err
		}
		if err != nil {
			c.logger.WithError(err).Error("consume session failed")
		}
	}
}

func (c *Consumer) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim подтверждает сообщение, только если оно обработано или ушло в DLQ.
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-session.Context().Done():
			return nil
		case message, ok := <-claim.Messages():
			if !ok || message == nil {
				return nil
			}
			entry := c.logger.WithFields(log.Fields{
				"topic":     message.Topic,
				"partition": message.Partition,
				"offset":    message.Offset,
			})
			if err := c.process(session.Context(), message); err != nil {
				entry.WithError(err).Error("message left unacknowledged")
				continue
			}
			session.MarkMessage(message, "")
		}
	}
}

func (c *Consumer) process(ctx context.Context, message *sarama.ConsumerMessage) error {
	done := retryCount(message)
	attempts := max(c.opts.MaxAttempts-done, 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 && c.opts.RetryDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.opts.RetryDelay):
			}
		}
		if lastErr = c.handle(ctx, message); lastErr == nil {
			return nil
		}
		c.logger.WithError(lastErr).WithFields(log.Fields{
			"topic":   message.Topic,
			"attempt": done + attempt,
		}).Warn("message handler failed")
	}

	if c.opts.DeadLetters == nil {
		return lastErr
	}
	if err := c.forwardToDLQ(message, done+attempts, lastErr); err != nil {
		return fmt.Errorf("failed to send to DLQ: %w", err)
	}
	return nil
}

func (c *Consumer) forwardToDLQ(message *sarama.ConsumerMessage, attempts int, cause error) error {
	failedAt := time.Now().UTC()
	letter := DeadLetter{
		OriginalTopic: message.Topic,
		OriginalKey:   string(message.Key),
		OriginalValue: string(message.Value),
		ErrorMessage:  cause.Error(),
		FailedAt:      failedAt,
		RetryCount:    attempts,
	}
	return c.opts.DeadLetters.PublishJSON(TopicDeadLetterQueue, string(message.Key), letter, map[string]string{
		HeaderOriginalTopic: message.Topic,
		HeaderErrorMessage:  cause.Error(),
		HeaderFailedAt:      failedAt.Format(time.RFC3339),
		HeaderRetryCount:    strconv.Itoa(attempts),
	})
}

// retryCount читает x-retry-count; мусор считается нулём.
func retryCount(message *sarama.ConsumerMessage) int {
	raw, ok := headerValue(message, HeaderRetryCount)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
