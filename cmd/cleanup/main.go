package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/abdul-hamid-achik/job-queue/pkg/broker"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/abdul-hamid-achik/mediaflow/internal/config"
	"github.com/abdul-hamid-achik/mediaflow/internal/db"
	"github.com/abdul-hamid-achik/mediaflow/internal/events"
	"github.com/abdul-hamid-achik/mediaflow/internal/logger"
	"github.com/abdul-hamid-achik/mediaflow/internal/worker"
)

func main() {
	if err := run(); err != nil {
		slog.Error("cleanup failed", "error", err)
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

	logger.Init(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "mediaflow-cleanup"})
	log := logger.Default()

	log.Info("starting cleanup job")
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

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

	var enq events.Enqueuer
	if cfg.EventBus == "redis" {
		redisOpt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to parse redis url: %w", err)
		}
		redisClient := redis.NewClient(redisOpt)
		defer func() { _ = redisClient.Close() }()
		enq = broker.NewRedisStreamsBroker(redisClient, broker.WithWorkerID(fmt.Sprintf("cleanup-%d", os.Getpid())))
	}

	publisher, err := events.Open(cfg.EventBus, cfg.AMQPURL, cfg.EventsExchange, enq)
	if err != nil {
		return fmt.Errorf("failed to open event publisher: %w", err)
	}
	defer func() { _ = publisher.Close() }()

	deps := &worker.CleanupDependencies{
		Store:      db.New(pool),
		Publisher:  publisher,
		TempDir:    cfg.TempDir,
		StaleAfter: cfg.StaleProcessingAfter,
		TempMaxAge: cfg.TempDirMaxAge,
	}

	stats, err := worker.RunCleanup(logger.WithLogger(ctx, log), deps)
	if err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}

	log.Info("cleanup completed",
		"duration_ms", time.Since(start).Milliseconds(),
		"stale_failed", stats.StaleFailed,
		"temp_removed", stats.TempRemoved,
		"temp_errors", stats.TempErrors,
		"publish_errors", stats.PublishErrors,
	)

	return nil
}
