package app

import (
	"time"

	"github.com/vladislavdragonenkov/orderpipe/internal/notification/email"
	"github.com/vladislavdragonenkov/orderpipe/internal/notification/smpp"
)

// Поддерживаемые хранилища заказов.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
	StorageDriverSQLite   = "sqlite"
)

// Config описывает настройки запуска приложения.
type Config struct {
	GRPCAddr    string
	HTTPAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool
	SQLitePath          string

	MailboxSize      int
	StoreConcurrency int

	SMPP  smpp.Config
	Email email.Config

	// KafkaBrokers — список брокеров через запятую. Пустой отключает события.
	KafkaBrokers     string
	KafkaTopic       string
	EventQueueSize   int
	EventMaxAttempts int
	EventRetryDelay  time.Duration

	// RedisAddr включает кэш статусов. Пустой отключает кэш.
	RedisAddr      string
	StatusCacheTTL time.Duration

	OTLPEndpoint     string
	TraceSampleRatio float64

	ShutdownTimeout time.Duration
}

// DefaultConfig возвращает конфигурацию для локального запуска:
// in-memory хранилище, каналы уведомлений и внешние интеграции выключены.
func DefaultConfig() Config {
	return Config{
		GRPCAddr:    ":9090",
		HTTPAddr:    ":8080",
		MetricsAddr: ":9100",

		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,
		SQLitePath:          "orders.db",

		MailboxSize:      1024,
		StoreConcurrency: 16,

		SMPP: smpp.Config{
			SourceAddr:    "OrderService",
			SourceTON:     5,
			SourceNPI:     0,
			DestTON:       1,
			DestNPI:       1,
			SubmitTimeout: 10 * time.Second,
			UnbindTimeout: 5 * time.Second,
		},
		Email: email.Config{
			From: "orders@example.com",
			Port: 587,
		},

		KafkaTopic:       "orders.events",
		EventQueueSize:   1024,
		EventMaxAttempts: 3,
		EventRetryDelay:  50 * time.Millisecond,

		StatusCacheTTL: 30 * time.Second,

		TraceSampleRatio: 1,
		ShutdownTimeout:  10 * time.Second,
	}
}
