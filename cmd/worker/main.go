package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/job-queue/pkg/broker"
	"github.com/abdul-hamid-achik/job-queue/pkg/middleware"
	"github.com/abdul-hamid-achik/job-queue/pkg/worker"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/abdul-hamid-achik/mediaflow/internal/config"
	"github.com/abdul-hamid-achik/mediaflow/internal/db"
	"github.com/abdul-hamid-achik/mediaflow/internal/events"
	"github.com/abdul-hamid-achik/mediaflow/internal/health"
	"github.com/abdul-hamid-achik/mediaflow/internal/lock"
	"github.com/abdul-hamid-achik/mediaflow/internal/logger"
	"github.com/abdul-hamid-achik/mediaflow/internal/metrics"
	"github.com/abdul-hamid-achik/mediaflow/internal/notification"
	"github.com/abdul-hamid-achik/mediaflow/internal/processor"
	"github.com/abdul-hamid-achik/mediaflow/internal/queue"
	"github.com/abdul-hamid-achik/mediaflow/internal/storage"
	"github.com/abdul-hamid-achik/mediaflow/internal/tracing"
	"github.com/abdul-hamid-achik/mediaflow/internal/version"
	mfworker "github.com/abdul-hamid-achik/mediaflow/internal/worker"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger.Init(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "mediaflow-worker"})
	log := logger.Default()
	log.Info("configuration loaded", "environment", cfg.Environment, "storage_driver", cfg.StorageDriver, "event_bus", cfg.EventBus)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithLogger(ctx, log)

	shutdownTracing, err := tracing.Init(ctx, &tracing.Config{
		ServiceName:    cfg.OTelServiceName,
		ServiceVersion: version.Short(),
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTelEndpoint,
		Enabled:        cfg.OTelEnabled,
		SampleRate:     cfg.OTelSampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	zerologger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "mediaflow-worker").Logger()

	if cfg.MigrateOnStart {
		log.Info("running migrations")
		if err := db.Migrate(ctx, cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
	}

	log.Info("connecting to database")
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	log.Info("database connected")

	log.Info("connecting to object storage", "driver", cfg.StorageDriver)
	rawStore, err := storage.Open(ctx, cfg.StorageDriver, &storage.Config{
		Endpoint:      cfg.StorageEndpoint,
		AccessKey:     cfg.StorageAccessKey,
		SecretKey:     cfg.StorageSecretKey,
		UseSSL:        cfg.StorageUseSSL,
		Region:        cfg.AWSRegion,
		PublicBaseURL: cfg.PublicBaseURL,
		Buckets:       []string{cfg.RawBucket, cfg.ProcessedBucket},
	})
	if err != nil {
		return fmt.Errorf("failed to create storage: %w", err)
	}
	store := metrics.NewInstrumentedStorage(rawStore)
	log.Info("object storage connected")

	log.Info("connecting to redis")
	redisOpt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to parse redis url: %w", err)
	}
	redisClient := redis.NewClient(redisOpt)
	defer func() { _ = redisClient.Close() }()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	workerID := fmt.Sprintf("worker-%d", os.Getpid())
	b := broker.NewRedisStreamsBroker(redisClient, broker.WithWorkerID(workerID))
	log.Info("broker initialized")

	checker := health.NewChecker().
		WithDatabase(pool).
		WithRedis(redisClient).
		WithStorage(rawStore)

	publisher, err := events.Open(cfg.EventBus, cfg.AMQPURL, cfg.EventsExchange, b)
	if err != nil {
		return fmt.Errorf("failed to open event publisher: %w", err)
	}
	defer func() { _ = publisher.Close() }()
	if hc, ok := publisher.(health.HealthChecker); ok {
		checker.With("events", hc.HealthCheck)
	}

	lifecycle := processor.NewLifecycle(db.New(pool), publisher)

	log.Info("registering processors")
	registry, err := buildRegistry(cfg, store, lifecycle)
	if err != nil {
		return err
	}
	log.Info("processor registry ready", "count", len(registry.List()))

	var locker lock.Locker = lock.Noop{}
	if cfg.LockEnabled {
		locker = lock.NewRedisLocker(redisClient, cfg.LockTTL, workerID)
		log.Info("key lock enabled", "ttl", cfg.LockTTL.String())
	}

	parser := notification.NewParser(store)
	dispatcher := mfworker.NewDispatcher(registry, locker)

	log.Info("connecting to queue")
	q, err := queue.NewSQSQueue(ctx, queue.SQSConfig{
		QueueURL: cfg.SQSQueueURL,
		Region:   cfg.AWSRegion,
		Endpoint: cfg.SQSEndpoint,
	})
	if err != nil {
		return fmt.Errorf("failed to create queue client: %w", err)
	}

	loop := mfworker.NewLoop(q, parser, dispatcher, mfworker.LoopConfig{
		BatchSize:   cfg.PollBatchSize,
		WaitTime:    cfg.PollWait,
		PollDelay:   cfg.PollDelay,
		Concurrency: cfg.WorkerConcurrency,
	})

	jobs := worker.NewRegistry()
	_ = jobs.Register(mfworker.RedriveJobType, mfworker.RedriveHandler(parser, dispatcher))
	jobs.Use(
		middleware.RecoveryMiddleware(zerologger),
		middleware.LoggingMiddleware(zerologger),
		middleware.TimeoutMiddleware(cfg.TranscodeTimeout+10*time.Minute),
		middleware.MetricsMiddleware(metrics.NewPrometheusCollector()),
	)

	redrivePool := worker.NewPool(b, jobs,
		worker.WithConcurrency(cfg.RedriveConcurrency),
		worker.WithPoolQueues([]string{"default"}),
		worker.WithPoolPollInterval(time.Second),
		worker.WithShutdownTimeout(30*time.Second),
		worker.WithPoolLogger(zerologger),
	)

	metrics.SetAppInfo(version.Short(), cfg.Environment, "worker")
	metrics.SetWorkerPoolSize(cfg.WorkerConcurrency)

	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler:           tracing.HTTPMiddleware(cfg.OTelServiceName)(health.Mux(checker, promhttp.Handler())),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("metrics server starting", "port", cfg.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		log.Info("starting redrive pool", "concurrency", cfg.RedriveConcurrency)
		if err := redrivePool.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("redrive pool: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return loop.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := redrivePool.Stop(shutdownCtx); err != nil {
			log.Error("error stopping redrive pool", "error", err)
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error("error stopping metrics server", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("worker stopped gracefully")
	return nil
}
