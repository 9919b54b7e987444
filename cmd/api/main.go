package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/careops-api/internal/app"
	"github.com/jwalitptl/careops-api/internal/config"
	"github.com/jwalitptl/careops-api/internal/handler/health"
	promhandler "github.com/jwalitptl/careops-api/internal/handler/prometheus"
	"github.com/jwalitptl/careops-api/internal/middleware"
	"github.com/jwalitptl/careops-api/internal/router"
	"github.com/jwalitptl/careops-api/pkg/auth"
	"github.com/jwalitptl/careops-api/pkg/metrics"
	"github.com/jwalitptl/careops-api/pkg/validator"
)

func main() {
	// .env is optional outside local development
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := app.NewLogger(cfg.Log)
	zl, err := app.NewZap(cfg.Log)
	if err != nil {
		logger.Fatal(err, "failed to build zap logger")
	}
	defer zl.Sync()

	registry := prometheus.NewRegistry()
	m := metrics.NewWithRegisterer(registry, "careops", "api")
	httpMetrics := promhandler.New("careops", registry)

	rt, err := app.Connect(cfg, logger, zl, m)
	if err != nil {
		logger.Fatal(err, "failed to initialize dependencies")
	}
	defer rt.Close()

	validator.RegisterGin()
	services := app.NewServices(cfg, rt.Deps)

	tokens := auth.NewJWTService(cfg.Secrets.JWTSecret, cfg.JWT.Issuer, cfg.JWT.Audience, cfg.JWT.TTL)
	healthH := health.NewHandler(map[string]health.Checker{
		"database": health.DatabaseCheck(rt.DB),
		"redis":    health.RedisCheck(rt.Broker.Client()),
	}, httpMetrics.Handler())

	r := router.NewRouter(
		router.RouterConfig{
			Mode: cfg.Server.Mode,
			RateLimiter: middleware.RateLimiterConfig{
				Rate:  rate.Limit(cfg.RateLimit.RequestsPerSecond),
				Burst: cfg.RateLimit.Burst,
			},
			CORSConfig: middleware.DefaultCORSConfig(cfg.CORS.AllowedOrigins...),
			SizeLimit: middleware.SizeLimitConfig{
				MaxBodySize:   cfg.Server.MaxBodyBytes,
				MaxHeaderSize: middleware.DefaultSizeLimitConfig().MaxHeaderSize,
			},
			Timeout: middleware.TimeoutConfig{Duration: cfg.Server.RequestTimeout},
		},
		logger,
		middleware.NewAuthMiddleware(tokens),
		httpMetrics,
		healthH,
		services.AuditHandler(),
		services.Handlers()...,
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("Starting server", "port", cfg.Server.Port, "skills_mode", cfg.Skills.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(err, "failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error(err, "server forced to shutdown")
	}
}
