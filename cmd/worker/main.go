package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/careops-api/internal/app"
	"github.com/jwalitptl/careops-api/internal/config"
	"github.com/jwalitptl/careops-api/internal/handler/health"
	"github.com/jwalitptl/careops-api/internal/worker"
	"github.com/jwalitptl/careops-api/pkg/metrics"
	pkgworker "github.com/jwalitptl/careops-api/pkg/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	logger := app.NewLogger(cfg.Log)
	zl, err := app.NewZap(cfg.Log)
	if err != nil {
		logger.Fatal(err, "Failed to build zap logger")
	}
	defer zl.Sync()

	registry := prometheus.NewRegistry()
	m := metrics.NewWithRegisterer(registry, "careops", "worker")

	rt, err := app.Connect(cfg, logger, zl, m)
	if err != nil {
		logger.Fatal(err, "Failed to initialize dependencies")
	}
	defer rt.Close()

	services := app.NewServices(cfg, rt.Deps)
	repos := rt.Deps.Repos

	processor, err := pkgworker.NewOutboxProcessor(repos.Outbox, rt.Broker, pkgworker.OutboxProcessorConfig{
		BatchSize:     cfg.Outbox.BatchSize,
		PollInterval:  cfg.Outbox.PollInterval,
		RetryAttempts: cfg.Outbox.RetryAttempts,
		RetryDelay:    cfg.Outbox.RetryDelay,
	}, zl, m)
	if err != nil {
		logger.Fatal(err, "Invalid outbox configuration")
	}

	scheduler, err := worker.NewScheduler(worker.Schedule{
		Forecast:          cfg.Schedule.Forecast,
		Escalation:        cfg.Schedule.Escalation,
		NotificationRetry: cfg.Schedule.NotificationRetry,
		Cleanup:           cfg.Schedule.Cleanup,
	}, worker.Jobs{
		Tenants:    repos.Tenants,
		Forecaster: services.Optimizer,
		Escalator:  services.Transfers,
		Retrier:    services.Notifications,
		Cleaner:    pkgworker.NewRetentionCleaner(repos.Audit, repos.Outbox, cfg.Schedule.AuditRetentionDays, cfg.Outbox.Retention, zl),
	}, logger)
	if err != nil {
		logger.Fatal(err, "Invalid schedule")
	}

	healthSrv := healthServer(cfg.Server.WorkerPort, health.NewHandler(map[string]health.Checker{
		"database": health.DatabaseCheck(rt.DB),
		"redis":    health.RedisCheck(rt.Broker.Client()),
	}, gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))))
	go func() {
		if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(err, "Health check server failed")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutting down...")
		cancel()
	}()

	scheduler.Start()
	logger.Info("Worker started", "outbox_batch", cfg.Outbox.BatchSize)
	processor.Start(ctx)

	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer stop()
	scheduler.Stop(shutdownCtx)
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error(err, "Health server forced to shutdown")
	}
}

func healthServer(port int, h *health.Handler) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	h.RegisterRoutes(engine.Group(""))
	return &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: engine}
}
