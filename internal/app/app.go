package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	catalogv1 "github.com/vladislavdragonenkov/catalog/api/catalogv1"
	healthcheck "github.com/vladislavdragonenkov/catalog/internal/health"
	"github.com/vladislavdragonenkov/catalog/internal/httpapi"
	"github.com/vladislavdragonenkov/catalog/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/catalog/internal/metrics"
	"github.com/vladislavdragonenkov/catalog/internal/ratelimit"
	"github.com/vladislavdragonenkov/catalog/internal/service/catalog"
	grpcsvc "github.com/vladislavdragonenkov/catalog/internal/service/grpc"
	"github.com/vladislavdragonenkov/catalog/internal/service/idempotency"
	"github.com/vladislavdragonenkov/catalog/internal/service/outbox"
	"github.com/vladislavdragonenkov/catalog/internal/service/settlement"
	"github.com/vladislavdragonenkov/catalog/internal/version"
)

const (
	gracefulStopTimeout = 5 * time.Second
	outboxMaxAge        = 5 * time.Minute
)

// runtime — собранное приложение до открытия сокетов.
type runtime struct {
	cfg          Config
	logger       *log.Entry
	deps         *Dependencies
	producer     *kafka.Producer
	engine       *settlement.Engine
	grpcServer   *grpc.Server
	healthServer *health.Server
	httpHandler  http.Handler
	workers      []func(ctx context.Context)
}

// newRuntime собирает хранилище, движок, gRPC и HTTP обработчики.
func newRuntime(ctx context.Context, cfg Config, logger *log.Entry) (*runtime, error) {
	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	// Kafka опциональна: без брокеров аудит только логируется.
	producer, err := initKafkaProducer(cfg.KafkaBrokers, logger)
	if err != nil {
		producer = nil
	}
	publishers := outboxPublishers(producer, cfg)

	settlementMetrics := metrics.NewSettlementMetrics()
	sink := newAuditSink(deps, publishers.Default != nil, logger)
	engine, err := newSettlementEngine(cfg, deps, sink, settlementMetrics, logger)
	if err != nil {
		closeKafka(producer, logger)
		_ = deps.Close()
		return nil, err
	}

	catalogSvc := catalog.NewService(deps.Catalog, deps.Registry, deps.Timeline, settlementMetrics, logger.WithField("component", "catalog"))

	opts := []grpcsvc.Option{grpcsvc.WithIdempotency(deps.Idempotency)}
	if cfg.AllowMockIntegrations {
		opts = append(opts, grpcsvc.WithFunder(deps.Ledger))
		logger.Warn("mock integrations enabled: Deposit RPC доступен")
	}
	service := grpcsvc.NewCatalogService(catalogSvc, engine, logger.WithField("layer", "grpc"), opts...)

	grpcServer, healthServer := grpcsvc.NewServer(service, grpcsvc.ServerOptions{
		GRPCMetrics: registerGRPCMetrics(logger),
		Limiter:     ratelimit.New(cfg.RateLimitRPS, cfg.RateLimitBurst, 0),
		Metrics:     settlementMetrics,
	})

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	healthHandler.RegisterChecker("storage", healthcheck.NewSimpleChecker("storage", deps.Ping))
	if publishers.Default != nil && cfg.OutboxMaxPending > 0 {
		healthHandler.RegisterChecker("outbox", healthcheck.NewBacklogChecker(deps.Outbox, cfg.OutboxMaxPending, outboxMaxAge))
	}

	rt := &runtime{
		cfg:          cfg,
		logger:       logger,
		deps:         deps,
		producer:     producer,
		engine:       engine,
		grpcServer:   grpcServer,
		healthServer: healthServer,
		httpHandler:  httpapi.NewRouter(catalogSvc, healthHandler, promhttp.Handler(), logger.WithField("layer", "http")),
	}

	if publishers.Default != nil {
		worker := outbox.NewWorker(deps.Outbox, publishers, outbox.WorkerConfig{
			PollInterval: cfg.OutboxPollInterval,
			BatchSize:    cfg.OutboxBatchSize,
			MaxAttempts:  cfg.OutboxMaxAttempts,
			RetryDelay:   cfg.OutboxRetryDelay,
		}, metrics.NewOutboxMetricsWithRegisterer(nil), logger.WithField("component", "outbox"))
		rt.workers = append(rt.workers, worker.Run)
	}
	cleanup := idempotency.NewCleanupWorker(deps.Idempotency, idempotency.CleanupConfig{
		Interval:  cfg.IdempotencyCleanupInterval,
		BatchSize: cfg.IdempotencyCleanupBatchSize,
	}, metrics.NewIdempotencyMetricsWithRegisterer(nil), logger.WithField("component", "idempotency"))
	rt.workers = append(rt.workers, cleanup.Run)

	return rt, nil
}

// registerGRPCMetrics регистрирует метрики gRPC; повторная регистрация возвращает существующий коллектор.
func registerGRPCMetrics(logger *log.Entry) *promgrpc.ServerMetrics {
	grpcMetrics := promgrpc.NewServerMetrics()
	if err := prometheus.Register(grpcMetrics); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*promgrpc.ServerMetrics); ok {
				return existing
			}
		}
		logger.WithError(err).Warn("failed to register grpc metrics")
	}
	return grpcMetrics
}

// shutdown останавливает движок и закрывает внешние ресурсы.
func (rt *runtime) shutdown() {
	rt.healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	rt.healthServer.SetServingStatus(catalogv1.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	timeout := rt.cfg.SettlementAsyncTimeout
	if timeout <= 0 {
		timeout = settlement.DefaultConfig().AsyncTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := rt.engine.Shutdown(ctx); err != nil {
		rt.logger.WithError(err).Warn("фоновые переводы не завершились до таймаута")
	}

	closeKafka(rt.producer, rt.logger)
	if err := rt.deps.Close(); err != nil {
		rt.logger.WithError(err).Warn("failed to close storage")
	}
}

// Run запускает gRPC и HTTP серверы и блокируется до отмены ctx.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")
	logger.Info(version.String())

	rt, err := newRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		rt.shutdown()
		return err
	}

	workerCtx, stopWorkers := context.WithCancel(ctx)
	var workers sync.WaitGroup
	for _, run := range rt.workers {
		workers.Add(1)
		go func(run func(context.Context)) {
			defer workers.Done()
			run(workerCtx)
		}(run)
	}

	httpSrv := startMetricsServer(ctx, cfg.MetricsAddr, rt.httpHandler, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("gRPC сервер слушает %s", cfg.GRPCAddr)
		errCh <- rt.grpcServer.Serve(lis)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем gRPC сервер")
		stopGRPC(rt.grpcServer, logger)
		serveErr = ctx.Err()
	case err := <-errCh:
		if !errors.Is(err, grpc.ErrServerStopped) {
			serveErr = err
		}
	}

	shutdownHTTP(httpSrv, logger)
	stopWorkers()
	workers.Wait()
	rt.shutdown()
	return serveErr
}

func stopGRPC(server *grpc.Server, logger *log.Entry) {
	stoppedCh := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(stoppedCh)
	}()
	select {
	case <-stoppedCh:
	case <-time.After(gracefulStopTimeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		server.Stop()
	}
}

// startMetricsServer запускает HTTP: /metrics, health и read API.
func startMetricsServer(ctx context.Context, addr string, handler http.Handler, logger *log.Entry) *http.Server {
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), gracefulStopTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("metrics shutdown with error")
	}
}
