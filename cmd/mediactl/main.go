package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/abdul-hamid-achik/job-queue/pkg/broker"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/abdul-hamid-achik/mediaflow/internal/config"
	"github.com/abdul-hamid-achik/mediaflow/internal/ctl"
	"github.com/abdul-hamid-achik/mediaflow/internal/db"
	"github.com/abdul-hamid-achik/mediaflow/internal/logger"
	"github.com/abdul-hamid-achik/mediaflow/internal/queue"
	"github.com/abdul-hamid-achik/mediaflow/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := ctl.NewRootCmd(open, version.Full()).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func open(ctx context.Context) (*ctl.Backend, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger.Init(logger.Options{Level: cfg.LogLevel, Format: "text", Output: os.Stderr})

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	redisOpt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	redisClient := redis.NewClient(redisOpt)

	q, err := queue.NewSQSQueue(ctx, queue.SQSConfig{
		QueueURL: cfg.SQSQueueURL,
		Region:   cfg.AWSRegion,
		Endpoint: cfg.SQSEndpoint,
	})
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("failed to create queue client: %w", err)
	}

	return &ctl.Backend{
		Store:     db.New(pool),
		Enqueuer:  broker.NewRedisStreamsBroker(redisClient, broker.WithWorkerID(fmt.Sprintf("mediactl-%d", os.Getpid()))),
		Queue:     q,
		RawBucket: cfg.RawBucket,
		Migrate: func(ctx context.Context) error {
			return db.Migrate(ctx, cfg.DatabaseURL)
		},
		MigrationVersion: func(ctx context.Context) (int64, error) {
			return db.MigrationVersion(ctx, cfg.DatabaseURL)
		},
		Close: func() {
			pool.Close()
			_ = redisClient.Close()
		},
	}, nil
}
