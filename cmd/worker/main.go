package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ausbildung/nachweis/internal/app"
	jobmetrics "github.com/ausbildung/nachweis/internal/jobs"
	"github.com/ausbildung/nachweis/internal/notifications"
	"github.com/ausbildung/nachweis/internal/platform/db"
	"github.com/ausbildung/nachweis/internal/shared"
	"github.com/ausbildung/nachweis/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	metrics := jobmetrics.NewMetrics(prometheus.DefaultRegisterer)

	mailClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := mailClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	store := notifications.NewService(notifications.NewRepository(pool), logger)

	statusJob := &jobs.StatusNotificationJob{Store: store, Mail: mailClient, Logger: logger, Metrics: metrics}
	mailJob := &jobs.SendEmailJob{Mailer: jobs.LogMailer{Logger: logger}, From: cfg.SMTPFrom, Logger: logger, Metrics: metrics}
	cleanupJob := &jobs.NotificationCleanupJob{Store: store, Retention: cfg.NotificationRetention, Logger: logger, Metrics: metrics}
	keyJob := &jobs.IdempotencyCleanupJob{Store: shared.NewIdempotencyStore(pool), Retention: cfg.IdempotencyRetention, Logger: logger, Metrics: metrics}

	cleanupTask, err := jobs.NewNotificationCleanupTask(jobs.NotificationCleanupPayload{})
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}
	keyTask, err := jobs.NewIdempotencyCleanupTask(jobs.IdempotencyCleanupPayload{})
	if err != nil {
		logger.Error("build idempotency cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   redisOpts,
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeStatusNotification, Handler: statusJob.Handle},
			{Type: jobs.TaskTypeSendEmail, Handler: mailJob.Handle},
			{Type: jobs.TaskTypeNotificationCleanup, Handler: cleanupJob.Handle},
			{Type: jobs.TaskTypeIdempotencyCleanup, Handler: keyJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.CleanupSchedule, Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(1)}},
			{Spec: cfg.IdempotencySchedule, Task: keyTask, Options: []asynq.Option{asynq.MaxRetry(1)}},
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
