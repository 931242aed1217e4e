package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderpipe/internal/app"
	"github.com/vladislavdragonenkov/orderpipe/internal/version"
)

const (
	envGRPCAddr            = "ORDERS_GRPC_ADDR"
	envHTTPAddr            = "ORDERS_HTTP_ADDR"
	envMetricsAddr         = "ORDERS_METRICS_ADDR"
	envStorageDriver       = "ORDERS_STORAGE_DRIVER"
	envPostgresDSN         = "ORDERS_POSTGRES_DSN"
	envPostgresAutoMigrate = "ORDERS_POSTGRES_AUTO_MIGRATE"
	envSQLitePath          = "ORDERS_SQLITE_PATH"
	envMailboxSize         = "ORDERS_MAILBOX_SIZE"
	envStoreConcurrency    = "ORDERS_STORE_CONCURRENCY"

	envSMPPEnabled    = "ORDERS_SMPP_ENABLED"
	envSMPPAddr       = "ORDERS_SMPP_ADDR"
	envSMPPSystemID   = "ORDERS_SMPP_SYSTEM_ID"
	envSMPPPassword   = "ORDERS_SMPP_PASSWORD"
	envSMPPSystemType = "ORDERS_SMPP_SYSTEM_TYPE"
	envSMPPSourceAddr = "ORDERS_SMPP_SOURCE_ADDR"
	envSMPPSourceTON  = "ORDERS_SMPP_SOURCE_TON"
	envSMPPSourceNPI  = "ORDERS_SMPP_SOURCE_NPI"
	envSMPPDestTON    = "ORDERS_SMPP_DEST_TON"
	envSMPPDestNPI    = "ORDERS_SMPP_DEST_NPI"

	envEmailEnabled  = "ORDERS_EMAIL_ENABLED"
	envEmailFrom     = "ORDERS_EMAIL_FROM"
	envEmailHost     = "ORDERS_EMAIL_SMTP_HOST"
	envEmailPort     = "ORDERS_EMAIL_SMTP_PORT"
	envEmailUsername = "ORDERS_EMAIL_SMTP_USER"
	envEmailPassword = "ORDERS_EMAIL_SMTP_PASSWORD"

	envKafkaBrokers   = "ORDERS_KAFKA_BROKERS"
	envKafkaTopic     = "ORDERS_KAFKA_TOPIC"
	envRedisAddr      = "ORDERS_REDIS_ADDR"
	envStatusCacheTTL = "ORDERS_STATUS_CACHE_TTL"
	envOTLPEndpoint   = "OTEL_EXPORTER_OTLP_ENDPOINT"
	envLogLevel       = "ORDERS_LOG_LEVEL"
)

type envLookup func(key string) (string, bool)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger(lookup envLookup) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)
	if raw, ok := lookup(envLogLevel); ok && strings.TrimSpace(raw) != "" {
		level, err := log.ParseLevel(strings.TrimSpace(raw))
		if err != nil {
			log.WithError(err).Warnf("invalid %s, using info", envLogLevel)
			return
		}
		log.SetLevel(level)
	}
}

// readConfigFromEnv накладывает переменные окружения на DefaultConfig.
// Некорректные значения не прерывают запуск: остаётся значение по умолчанию
// и возвращается предупреждение.
func readConfigFromEnv(lookup envLookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string
	warn := func(key, raw string, err error) {
		warnings = append(warnings, fmt.Sprintf("%s=%q ignored: %v", key, raw, err))
	}

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	secret := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			parsed, err := parseBool(v)
			if err != nil {
				warn(key, v, err)
				return
			}
			*dst = parsed
		}
	}
	positive := func(key string, dst *int) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			parsed, err := parseInt(v, func(n int) bool { return n > 0 }, "must be > 0")
			if err != nil {
				warn(key, v, err)
				return
			}
			*dst = parsed
		}
	}
	octet := func(key string, dst *uint8) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			parsed, err := parseInt(v, func(n int) bool { return n >= 0 && n <= 255 }, "must be in [0, 255]")
			if err != nil {
				warn(key, v, err)
				return
			}
			*dst = uint8(parsed)
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			parsed, err := parseDuration(v, func(d time.Duration) bool { return d > 0 }, "must be > 0")
			if err != nil {
				warn(key, v, err)
				return
			}
			*dst = parsed
		}
	}

	str(envGRPCAddr, &cfg.GRPCAddr)
	str(envHTTPAddr, &cfg.HTTPAddr)
	str(envMetricsAddr, &cfg.MetricsAddr)
	str(envStorageDriver, &cfg.StorageDriver)
	cfg.StorageDriver = strings.ToLower(cfg.StorageDriver)
	str(envPostgresDSN, &cfg.PostgresDSN)
	boolean(envPostgresAutoMigrate, &cfg.PostgresAutoMigrate)
	str(envSQLitePath, &cfg.SQLitePath)
	positive(envMailboxSize, &cfg.MailboxSize)
	positive(envStoreConcurrency, &cfg.StoreConcurrency)

	boolean(envSMPPEnabled, &cfg.SMPP.Enabled)
	str(envSMPPAddr, &cfg.SMPP.Addr)
	str(envSMPPSystemID, &cfg.SMPP.SystemID)
	secret(envSMPPPassword, &cfg.SMPP.Password)
	str(envSMPPSystemType, &cfg.SMPP.SystemType)
	str(envSMPPSourceAddr, &cfg.SMPP.SourceAddr)
	octet(envSMPPSourceTON, &cfg.SMPP.SourceTON)
	octet(envSMPPSourceNPI, &cfg.SMPP.SourceNPI)
	octet(envSMPPDestTON, &cfg.SMPP.DestTON)
	octet(envSMPPDestNPI, &cfg.SMPP.DestNPI)

	boolean(envEmailEnabled, &cfg.Email.Enabled)
	str(envEmailFrom, &cfg.Email.From)
	str(envEmailHost, &cfg.Email.Host)
	positive(envEmailPort, &cfg.Email.Port)
	str(envEmailUsername, &cfg.Email.Username)
	secret(envEmailPassword, &cfg.Email.Password)

	str(envKafkaBrokers, &cfg.KafkaBrokers)
	str(envKafkaTopic, &cfg.KafkaTopic)
	str(envRedisAddr, &cfg.RedisAddr)
	duration(envStatusCacheTTL, &cfg.StatusCacheTTL)
	str(envOTLPEndpoint, &cfg.OTLPEndpoint)

	return cfg, warnings
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool value %q", raw)
	}
}

func parseInt(raw string, valid func(int) bool, constraint string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid int value %q: %w", raw, err)
	}
	if valid != nil && !valid(value) {
		return 0, fmt.Errorf("value %d %s", value, constraint)
	}
	return value, nil
}

func parseDuration(raw string, valid func(time.Duration) bool, constraint string) (time.Duration, error) {
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid duration value %q: %w", raw, err)
	}
	if valid != nil && !valid(value) {
		return 0, fmt.Errorf("value %s %s", value, constraint)
	}
	return value, nil
}

func main() {
	setupLogger(os.LookupEnv)
	cfg, warnings := readConfigFromEnv(os.LookupEnv)
	for _, w := range warnings {
		log.Warn(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"grpc_addr":      cfg.GRPCAddr,
		"http_addr":      cfg.HTTPAddr,
		"metrics_addr":   cfg.MetricsAddr,
		"storage_driver": cfg.StorageDriver,
		"sms_enabled":    cfg.SMPP.Enabled,
		"email_enabled":  cfg.Email.Enabled,
		"build":          version.Current().String(),
	}).Info("запускаем OrderService")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("OrderService остановлен")
}
