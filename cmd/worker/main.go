package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-b2b/internal/app"
	"github.com/odyssey-erp/odyssey-b2b/internal/communications"
	jobmetrics "github.com/odyssey-erp/odyssey-b2b/internal/jobs"
	"github.com/odyssey-erp/odyssey-b2b/internal/payments"
	"github.com/odyssey-erp/odyssey-b2b/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-b2b/internal/platform/db"
	"github.com/odyssey-erp/odyssey-b2b/internal/retailers"
	"github.com/odyssey-erp/odyssey-b2b/internal/shared"
	"github.com/odyssey-erp/odyssey-b2b/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.Redis("b2b-worker"))
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := jobmetrics.NewMetrics(nil)

	senders := communications.NewSenders(communications.SenderConfig{
		SMTPHost:   cfg.SMTPHost,
		SMTPPort:   cfg.SMTPPort,
		SMTPFrom:   cfg.SMTPFrom,
		GatewayURL: cfg.GatewayURL,
	}, logger)
	deliverer := communications.NewDeliverer(communications.NewRepository(pool, pool), senders, logger)
	deliveryJob := jobs.NewDeliveryJob(deliverer, logger, metrics)

	cleanupJob := &jobs.IdempotencyCleanupJob{
		Store:   shared.NewIdempotencyStore(pool),
		Logger:  logger,
		Metrics: metrics,
	}

	paymentService := payments.NewService(payments.Deps{
		Repo:       payments.NewRepository(pool, pool),
		Portfolios: retailers.NewService(retailers.NewRepository(pool)),
		Cache:      cache.NewVersioned(redisClient, "b2b", cfg.SummaryCacheTTL),
		Logger:     logger,
	})
	warmupJob := jobs.NewSummaryWarmupJob(paymentService, pool, logger, metrics)

	cleanupTask, err := jobs.NewIdempotencyCleanupTask(jobs.DefaultKeyRetentionHours)
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   cfg.Redis("b2b-worker").Queue(),
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskDeliverNotification, Handler: deliveryJob.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle},
			{Type: jobs.TaskSummaryWarmup, Handler: warmupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "30 2 * * *", Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "5 * * * *", Task: jobs.NewSummaryWarmupTask(), Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.Int("concurrency", cfg.WorkerConcurrency))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
