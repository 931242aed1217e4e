package kafka

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

// Producer — синхронный sarama producer с JSON-сериализацией.
type Producer struct {
	sync   sarama.SyncProducer
	logger *log.Entry
	now    func() time.Time
}

// NewProducerConfig: acks от всех реплик, идемпотентность, snappy.
func NewProducerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Idempotent = true
	// Идемпотентный producer требует одного запроса в полёте.
	config.Net.MaxOpenRequests = 1
	return config
}

// NewProducer подключается к brokers.
func NewProducer(brokers []string, logger *log.Entry) (*Producer, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return NewProducerWithSync(producer, logger), nil
}

// NewProducerWithSync оборачивает готовый sarama.SyncProducer.
func NewProducerWithSync(producer sarama.SyncProducer, logger *log.Entry) *Producer {
	if logger == nil {
		logger = log.WithField("component", "kafka-producer")
	}
	return &Producer{sync: producer, logger: logger, now: time.Now}
}

// PublishJSON сериализует payload в JSON и отправляет его в topic.
func (p *Producer) PublishJSON(topic, key string, payload any, headers map[string]string) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return p.PublishRaw(topic, key, value, headers)
}

// PublishRaw отправляет готовое значение. Заголовки сортируются по ключу.
func (p *Producer) PublishRaw(topic, key string, value []byte, headers map[string]string) error {
	msg := &sarama.ProducerMessage{
		Topic:     topic,
		Key:       sarama.StringEncoder(key),
		Value:     sarama.ByteEncoder(value),
		Headers:   recordHeaders(headers),
		Timestamp: p.now(),
	}

	fields := log.Fields{"topic": topic, "key": key}
	partition, offset, err := p.sync.SendMessage(msg)
	if err != nil {
		p.logger.WithError(err).WithFields(fields).Error("failed to send message to kafka")
		return fmt.Errorf("failed to send message: %w", err)
	}
	fields["partition"], fields["offset"] = partition, offset
	p.logger.WithFields(fields).Debug("message sent to kafka")
	return nil
}

// Close закрывает producer.
func (p *Producer) Close() error {
	if err := p.sync.Close(); err != nil {
		return fmt.Errorf("failed to close kafka producer: %w", err)
	}
	return nil
}

func recordHeaders(headers map[string]string) []sarama.RecordHeader {
	if len(headers) == 0 {
		return nil
	}
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]sarama.RecordHeader, 0, len(keys))
	for _, k := range keys {
		out = append(out, sarama.RecordHeader{Key: []byte(k), Value: []byte(headers[k])})
	}
	return out
}

// headerValue ищет заголовок сообщения по ключу.
func headerValue(message *sarama.ConsumerMessage, key string) (string, bool) {
	for _, h := range message.Headers {
		if h != nil && string(h.Key) == key {
			return string(h.Value), true
		}
	}
	return "", false
}
