package app

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderpipe/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/orderpipe/internal/metrics"
	"github.com/vladislavdragonenkov/orderpipe/internal/service/events"
)

// newKafkaProducer подменяется в тестах sarama-моком.
var newKafkaProducer = kafka.NewProducer

// startEventRelay подключается к Kafka и запускает фоновую доставку событий.
// Без брокеров или при ошибке подключения возвращает nil: заказы обрабатываются без событий.
func startEventRelay(cfg Config, orderMetrics *metrics.OrderMetrics, logger *log.Entry) (*kafka.Producer, *events.Relay) {
	brokers := splitBrokers(cfg.KafkaBrokers)
	if len(brokers) == 0 {
		logger.Info("kafka brokers are not configured, order events disabled")
		return nil, nil
	}

	producer, err := newKafkaProducer(brokers, logger.WithField("component", "kafka-producer"))
	if err != nil {
		logger.WithError(err).WithField("brokers", brokers).Warn("kafka is unavailable, order events disabled")
		return nil, nil
	}

	publisher := kafka.NewOrderEventPublisher(producer, cfg.KafkaTopic)
	relay := events.NewRelay(publisher,
		events.WithLogger(logger.WithField("component", "event-relay")),
		events.WithMetrics(orderMetrics),
		events.WithDLQPublisher(publisher),
		events.WithQueueSize(cfg.EventQueueSize),
		events.WithMaxAttempts(cfg.EventMaxAttempts),
		events.WithRetryBaseDelay(cfg.EventRetryDelay),
	)
	// Останавливается только через Close: очередь должна быть дочитана.
	go relay.Run(context.Background())

	logger.WithFields(log.Fields{"brokers": brokers, "topic": cfg.KafkaTopic}).Info("order events enabled")
	return producer, relay
}

func closeKafkaProducer(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	}
}

func splitBrokers(raw string) []string {
	var brokers []string
	for _, chunk := range strings.Split(raw, ",") {
		if broker := strings.TrimSpace(chunk); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}
