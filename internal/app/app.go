package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/vladislavdragonenkov/orderpipe/internal/cache"
	"github.com/vladislavdragonenkov/orderpipe/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/orderpipe/internal/health"
	"github.com/vladislavdragonenkov/orderpipe/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/orderpipe/internal/metrics"
	"github.com/vladislavdragonenkov/orderpipe/internal/notification/email"
	"github.com/vladislavdragonenkov/orderpipe/internal/notification/smpp"
	"github.com/vladislavdragonenkov/orderpipe/internal/service/events"
	grpcsvc "github.com/vladislavdragonenkov/orderpipe/internal/service/grpc"
	"github.com/vladislavdragonenkov/orderpipe/internal/service/notify"
	"github.com/vladislavdragonenkov/orderpipe/internal/service/processor"
	"github.com/vladislavdragonenkov/orderpipe/internal/service/query"
	"github.com/vladislavdragonenkov/orderpipe/internal/storage/async"
	"github.com/vladislavdragonenkov/orderpipe/internal/telemetry"
	"github.com/vladislavdragonenkov/orderpipe/internal/transport/httpapi"
	"github.com/vladislavdragonenkov/orderpipe/internal/version"
	ordersv1 "github.com/vladislavdragonenkov/orderpipe/proto/orders/v1"
)

const serviceName = "order-service"

// pipeline — запущенные компоненты, которые нужно остановить в обратном порядке.
type pipeline struct {
	proc     *processor.Processor
	executor *async.Executor
	relay    *events.Relay
	producer *kafka.Producer
	sms      *smpp.Client
	cache    *cache.StatusCache
}

// Run поднимает gRPC, HTTP API и сервер метрик и блокируется до отмены ctx
// или ошибки одного из серверов.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.close(logger)

	shutdownTracer, err := telemetry.SetupTracer(ctx, telemetry.Config{
		ServiceName: serviceName,
		Endpoint:    cfg.OTLPEndpoint,
		SampleRatio: cfg.TraceSampleRatio,
	})
	if err != nil {
		return err
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(tctx); err != nil {
			logger.WithError(err).Warn("failed to shutdown tracer")
		}
	}()

	orderMetrics := metrics.NewOrderMetrics()
	healthHandler := healthcheck.NewHandler(version.GetVersion())
	healthHandler.RegisterChecker("storage", deps.storageChecker)

	p := startPipeline(ctx, cfg, deps.repo, orderMetrics, healthHandler, logger)

	queries := query.NewService(deps.repo, statusCacheOrNil(p.cache), orderMetrics, logger.WithField("layer", "query"))
	orderService := grpcsvc.NewOrderService(p.proc, orderMetrics, logger.WithField("layer", "grpc"))
	grpcServer, healthServer := newGRPCServer(orderService, logger)

	grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		p.shutdown(cfg.ShutdownTimeout, logger)
		return fmt.Errorf("listen grpc %s: %w", cfg.GRPCAddr, err)
	}
	httpLis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		_ = grpcLis.Close()
		p.shutdown(cfg.ShutdownTimeout, logger)
		return fmt.Errorf("listen http %s: %w", cfg.HTTPAddr, err)
	}
	apiSrv := &http.Server{
		Handler:           httpapi.NewRouter(queries, orderMetrics, logger.WithField("layer", "http")),
		ReadHeaderTimeout: 5 * time.Second,
	}

	metricsCtx, stopMetrics := context.WithCancel(context.Background())
	defer stopMetrics()
	startMetricsServer(metricsCtx, cfg.MetricsAddr, logger, healthHandler)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("gRPC сервер слушает %s", grpcLis.Addr())
		if err := grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Infof("HTTP API слушает %s", httpLis.Addr())
		if err := apiSrv.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http api server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("получен сигнал остановки, останавливаем серверы")
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		stopGRPCServer(grpcServer, cfg.ShutdownTimeout, logger)
		shutdownHTTP(apiSrv, logger)
		return nil
	})

	runErr := g.Wait()
	p.shutdown(cfg.ShutdownTimeout, logger)

	if runErr != nil {
		return runErr
	}
	return ctx.Err()
}

// startPipeline собирает обработчик заказов вместе с каналами уведомлений,
// публикацией событий и кэшем статусов.
func startPipeline(
	ctx context.Context,
	cfg Config,
	repo domain.OrderRepository,
	orderMetrics *metrics.OrderMetrics,
	healthHandler *healthcheck.Handler,
	logger *log.Entry,
) *pipeline {
	p := &pipeline{}

	p.sms = smpp.NewClient(cfg.SMPP, orderMetrics, logger.WithField("component", "smpp"))
	p.sms.Start(ctx)
	healthHandler.RegisterChecker("smpp", healthcheck.Optional("smpp", p.sms.Check))
	mailer := email.NewClient(cfg.Email, logger.WithField("component", "email"))
	dispatcher := notify.NewDispatcher(p.sms, mailer, orderMetrics, logger.WithField("component", "notify"))

	opts := []processor.Option{
		processor.WithLogger(logger.WithField("component", "processor")),
		processor.WithMetrics(orderMetrics),
		processor.WithTracer(otel.Tracer("github.com/vladislavdragonenkov/orderpipe/processor")),
		processor.WithMailboxSize(cfg.MailboxSize),
	}

	p.producer, p.relay = startEventRelay(cfg, orderMetrics, logger)
	if p.relay != nil {
		opts = append(opts, processor.WithEventPublisher(p.relay))
	}

	if cfg.RedisAddr != "" {
		p.cache = cache.NewStatusCache(cfg.RedisAddr, cfg.StatusCacheTTL)
		healthHandler.RegisterChecker("redis", healthcheck.Optional("redis", p.cache.Ping))
		logger.WithField("addr", cfg.RedisAddr).Info("status cache enabled")
	}

	p.executor = async.NewExecutor(repo, cfg.StoreConcurrency, logger.WithField("component", "store-executor"))
	p.proc = processor.New(p.executor, dispatcher, opts...)
	p.proc.Start()
	return p
}

// shutdown останавливает приём заказов, дожидается ответов по принятым,
// затем закрывает внешние соединения.
func (p *pipeline) shutdown(timeout time.Duration, logger *log.Entry) {
	if p == nil {
		return
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := p.proc.Stop(ctx); err != nil {
		logger.WithError(err).Warn("order processor did not drain in time")
	}
	if err := p.executor.Close(ctx); err != nil {
		logger.WithError(err).Warn("store executor did not drain in time")
	}
	if p.relay != nil {
		if err := p.relay.Close(ctx); err != nil {
			logger.WithError(err).Warn("event relay did not drain in time")
		}
	}
	closeKafkaProducer(p.producer, logger)
	if err := p.sms.Close(); err != nil {
		logger.WithError(err).Warn("failed to close SMPP session")
	}
	if p.cache != nil {
		if err := p.cache.Close(); err != nil {
			logger.WithError(err).Warn("failed to close status cache")
		}
	}
}

// statusCacheOrNil не даёт typed nil попасть в интерфейс.
func statusCacheOrNil(c *cache.StatusCache) query.StatusCache {
	if c == nil {
		return nil
	}
	return c
}

func newGRPCServer(orderService ordersv1.OrderServiceServer, logger *log.Entry) (*grpc.Server, *health.Server) {
	grpcMetrics := promgrpc.NewServerMetrics()
	if err := prometheus.Register(grpcMetrics); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok2 := are.ExistingCollector.(*promgrpc.ServerMetrics); ok2 {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()),
	)
	ordersv1.RegisterOrderServiceServer(grpcServer, orderService)
	grpcMetrics.InitializeMetrics(grpcServer)

	// Reflection нужен grpcurl: дескрипторы ordersv1 зарегистрированы в protoregistry.
	reflection.Register(grpcServer)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	return grpcServer, healthServer
}

// stopGRPCServer ждёт завершения активных RPC не дольше timeout.
func stopGRPCServer(srv *grpc.Server, timeout time.Duration, logger *log.Entry) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	stopped := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(timeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		srv.Stop()
	}
}

// opsHandler обслуживает служебные маршруты: метрики Prometheus и health-пробы.
func opsHandler(healthHandler *healthcheck.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	return mux
}

// startMetricsServer поднимает opsHandler на addr и гасит его при отмене ctx.
// Ошибка прослушивания не фатальна для сервиса.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	srv := &http.Server{Addr: addr, Handler: opsHandler(healthHandler), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.WithField("addr", addr).Info("ops server exposes /metrics, /healthz, /readyz, /livez")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()
	context.AfterFunc(ctx, func() { shutdownHTTP(srv, logger) })
	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
