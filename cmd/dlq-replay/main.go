// Команда dlq-replay перечитывает DLQ событий заказов и возвращает события
// в исходный topic. По умолчанию работает в режиме dry-run.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderpipe/internal/messaging/kafka"
)

const (
	envKafkaBrokers    = "ORDERS_KAFKA_BROKERS"
	defaultGroupID     = "orders-dlq-replay"
	defaultIdleTimeout = 5 * time.Second
)

type options struct {
	brokers     []string
	groupID     string
	dlqTopic    string
	fallback    string
	execute     bool
	maxAttempts int
	idleTimeout time.Duration
}

// consumerRunner — то, что нужно от kafka.Consumer.
type consumerRunner interface {
	Run(ctx context.Context) error
}

func parseOptions(args []string, lookup func(string) (string, bool)) (options, error) {
	var (
		opts    options
		brokers string
	)
	fs := flag.NewFlagSet("dlq-replay", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&brokers, "brokers", "", "comma-separated Kafka brokers (fallback: "+envKafkaBrokers+")")
	fs.StringVar(&opts.groupID, "group", defaultGroupID, "consumer group id; committed offsets are not replayed twice")
	fs.StringVar(&opts.dlqTopic, "dlq-topic", kafka.TopicDeadLetterQueue, "dead letter topic to read")
	fs.StringVar(&opts.fallback, "target-topic", kafka.TopicOrderEvents, "topic for letters without original_topic")
	fs.BoolVar(&opts.execute, "execute", false, "publish events; default is dry-run")
	fs.IntVar(&opts.maxAttempts, "attempts", 3, "publish attempts per letter")
	fs.DurationVar(&opts.idleTimeout, "idle-timeout", defaultIdleTimeout, "stop after this long without new letters")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	if strings.TrimSpace(brokers) == "" {
		brokers, _ = lookup(envKafkaBrokers)
	}
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			opts.brokers = append(opts.brokers, b)
		}
	}

	switch {
	case len(opts.brokers) == 0:
		return opts, fmt.Errorf("kafka brokers are required (-brokers or %s)", envKafkaBrokers)
	case strings.TrimSpace(opts.dlqTopic) == "":
		return opts, errors.New("dlq-topic must not be empty")
	case opts.idleTimeout <= 0:
		return opts, errors.New("idle-timeout must be > 0")
	case opts.maxAttempts <= 0:
		return opts, errors.New("attempts must be > 0")
	}
	return opts, nil
}

// idleWatch отменяет чтение, когда новых писем не было дольше timeout.
type idleWatch struct {
	timeout time.Duration
	last    atomic.Int64
}

func newIdleWatch(timeout time.Duration) *idleWatch {
	w := &idleWatch{timeout: timeout}
	w.touch()
	return w
}

func (w *idleWatch) touch() { w.last.Store(time.Now().UnixNano()) }

func (w *idleWatch) wrap(next kafka.Handler) kafka.Handler {
	return func(ctx context.Context, msg *sarama.ConsumerMessage) error {
		w.touch()
		return next(ctx, msg)
	}
}

func (w *idleWatch) cancelWhenIdle(ctx context.Context, cancel context.CancelFunc) {
	ticker := time.NewTicker(max(w.timeout/4, time.Millisecond))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if time.Since(time.Unix(0, w.last.Load())) >= w.timeout {
				cancel()
				return
			}
		}
	}
}

// run читает DLQ до простоя или отмены ctx и печатает итог.
func run(ctx context.Context, consumer consumerRunner, watch *idleWatch, replayer *kafka.Replayer, execute bool, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go watch.cancelWhenIdle(ctx, cancel)

	if err := consumer.Run(ctx); err != nil {
		return fmt.Errorf("consume dlq: %w", err)
	}

	mode := "dry-run"
	if execute {
		mode = "execute"
	}
	stats := replayer.Stats()
	_, err := fmt.Fprintf(out, "dlq replay %s: replayed=%d skipped=%d\n", mode, stats.Replayed, stats.Skipped)
	return err
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	opts, err := parseOptions(os.Args[1:], os.LookupEnv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := log.WithFields(log.Fields{"component": "dlq-replay", "topic": opts.dlqTopic})

	var producer *kafka.Producer
	if opts.execute {
		if producer, err = kafka.NewProducer(opts.brokers, logger); err != nil {
			logger.WithError(err).Fatal("kafka producer is unavailable")
		}
		defer func() { _ = producer.Close() }()
	}

	replayer := kafka.NewReplayer(producer, opts.fallback, logger)
	watch := newIdleWatch(opts.idleTimeout)
	consumer, err := kafka.NewConsumer(opts.brokers, opts.groupID, []string{opts.dlqTopic}, watch.wrap(replayer.Handle),
		kafka.ConsumerOptions{MaxAttempts: opts.maxAttempts, FromOldest: true, Logger: logger})
	if err != nil {
		logger.WithError(err).Fatal("kafka consumer is unavailable")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, consumer, watch, replayer, opts.execute, os.Stdout); err != nil {
		logger.WithError(err).Error("dlq replay failed")
		stop()
		os.Exit(1)
	}
}
