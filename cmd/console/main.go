package main

import (
	"context"
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
	dashboardhttp "github.com/utilitydesk/billing-console/internal/dashboard/http"
	"github.com/utilitydesk/billing-console/internal/observability"
	"github.com/utilitydesk/billing-console/internal/platform/cache"
	"github.com/utilitydesk/billing-console/internal/session"
	"github.com/utilitydesk/billing-console/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping console startup")
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

	metrics := observability.NewMetrics()
	dashboardMetrics := dashboard.NewMetrics(metrics.Registerer())

	billingClient, err := billingapi.NewClient(cfg.BillingAPIURL, &http.Client{Timeout: cfg.BillingAPITimeout})
	if err != nil {
		logger.Error("init billing api client", slog.Any("error", err))
		os.Exit(1)
	}

	// Reference data is identical for every principal, so the service token fills it.
	referenceCache := dashboard.NewCache(redisClient, cfg.ReferenceCacheTTL)
	reference := dashboard.NewCachedReference(billingClient.WithToken(cfg.BillingAPIServiceToken), referenceCache)

	factory := func(token string) dashboard.Aggregating {
		collaborators := dashboard.CollaboratorsFrom(billingClient.WithToken(token))
		collaborators.Reference = reference
		return dashboard.NewAggregator(collaborators, logger, dashboardMetrics)
	}

	hub := dashboard.NewHub(factory, dashboard.HubConfig{
		RefreshInterval: cfg.DashboardRefreshInterval,
		IdleTimeout:     cfg.DashboardIdleTimeout,
	}, logger, dashboardMetrics)
	defer hub.Shutdown()
	go hub.Run(ctx)

	if err := referenceCache.Listen(ctx, func(version int64) {
		logger.Info("reference data bumped", slog.Int64("version", version), slog.Int("views", hub.Len()))
		hub.RefreshAll(ctx)
	}); err != nil {
		logger.Warn("subscribe reference bumps", slog.Any("error", err))
	}

	verifier, err := session.NewVerifier(cfg.BillingJWTKey, cfg.BillingJWTIssuer, cfg.BillingJWTAudience)
	if err != nil {
		logger.Error("init token verifier", slog.Any("error", err))
		os.Exit(1)
	}
	sessionManager := session.NewManager(redisClient, cfg.SessionCookie, cfg.SessionTTL, cfg.IsProduction())
	sessionHandler := session.NewHandler(sessionManager, verifier, logger, func(_ context.Context, sessionID string) {
		hub.Close(sessionID)
	})

	jobClient := jobs.NewClient(redisOpts.AsynqOpts())
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts.AsynqOpts())
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("jobs inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		SessionHandler:   sessionHandler,
		DashboardHandler: dashboardhttp.NewHandler(logger, hub),
		JobHandler:       jobs.NewHandler(inspector, jobClient, logger),
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
