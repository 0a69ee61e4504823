package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/utilitydesk/billing-console/internal/app"
	"github.com/utilitydesk/billing-console/internal/billingapi"
	"github.com/utilitydesk/billing-console/internal/dashboard"
	jobmetrics "github.com/utilitydesk/billing-console/internal/jobs"
	"github.com/utilitydesk/billing-console/internal/observability"
	"github.com/utilitydesk/billing-console/internal/platform/cache"
	"github.com/utilitydesk/billing-console/jobs"
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
	if app.SkipSideEffects(cfg) {
		return
	}

	logger := app.NewLogger(cfg)

	redisOpts := cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	redisClient, err := cache.New(ctx, redisOpts)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	billingClient, err := billingapi.NewClient(cfg.BillingAPIURL, &http.Client{Timeout: cfg.BillingAPITimeout})
	if err != nil {
		logger.Error("init billing api client", slog.Any("error", err))
		os.Exit(1)
	}
	if cfg.BillingAPIServiceToken == "" {
		logger.Warn("BILLING_API_SERVICE_TOKEN is empty, reference warmups will call the billing API anonymously")
	}
	reference := dashboard.NewCachedReference(
		billingClient.WithToken(cfg.BillingAPIServiceToken),
		dashboard.NewCache(redisClient, cfg.ReferenceCacheTTL),
	)

	metrics := observability.NewMetrics()
	warmupJob := jobs.NewReferenceWarmupJob(reference, logger, jobmetrics.NewMetrics(metrics.Registerer()))

	warmupTask, err := jobs.NewReferenceWarmupTask(jobs.ReferenceWarmupPayload{Reason: "scheduled"})
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   redisOpts.AsynqOpts(),
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskReferenceWarmup, Handler: warmupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.ReferenceWarmupCron, Task: warmupTask, Options: []asynq.Option{asynq.Queue(jobs.QueueDefault)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	var metricsServer *http.Server
	if cfg.WorkerMetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsServer = &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info("starting worker metrics server", slog.String("addr", cfg.WorkerMetricsAddr))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("worker metrics server", slog.Any("error", err))
			}
		}()
	}

	runErr := worker.Run(ctx)

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("worker metrics shutdown", slog.Any("error", err))
		}
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Error("worker run", slog.Any("error", runErr))
		os.Exit(1)
	}
}
