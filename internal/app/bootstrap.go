package app

import (
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/jwalitptl/careops-api/internal/config"
	"github.com/jwalitptl/careops-api/internal/email"
	"github.com/jwalitptl/careops-api/internal/repository/postgres"
	"github.com/jwalitptl/careops-api/pkg/edgefn"
	"github.com/jwalitptl/careops-api/pkg/llm"
	"github.com/jwalitptl/careops-api/pkg/logger"
	redisbroker "github.com/jwalitptl/careops-api/pkg/messaging/redis"
	"github.com/jwalitptl/careops-api/pkg/metrics"
)

// Runtime holds the process wide resources shared by the api and worker
type Runtime struct {
	DB     *sqlx.DB
	Broker *redisbroker.RedisBroker
	Deps   Deps
}

func NewLogger(cfg config.LogConfig) *logger.Logger {
	return logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		Console:    cfg.Console,
	})
}

func NewZap(cfg config.LogConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Console {
		zc = zap.NewDevelopmentConfig()
	}
	if lvl, err := zap.ParseAtomicLevel(cfg.Level); err == nil {
		zc.Level = lvl
	}
	return zc.Build()
}

// Connect opens postgres and redis, runs migrations when enabled and builds
// the outbound clients. Close releases what it opened.
func Connect(cfg *config.Config, log *logger.Logger, z *zap.Logger, m *metrics.Metrics) (*Runtime, error) {
	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		return nil, err
	}
	if cfg.Database.AutoMigrate {
		if err := postgres.Migrate(db); err != nil {
			db.Close()
			return nil, err
		}
		log.Info("Database migrations applied")
	}

	broker, err := redisbroker.NewRedisBroker(redisbroker.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, log.With("redis").Zerolog())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create redis broker: %w", err)
	}

	deps := Deps{
		Repos:   postgres.NewRepositories(db),
		Broker:  broker,
		Metrics: m,
		Log:     log,
		Zap:     z,
	}
	if cfg.LLM.BaseURL != "" {
		deps.Completer = llm.NewRouter(llm.NewClient(llm.Config{
			BaseURL:    cfg.LLM.BaseURL,
			APIKey:     cfg.Secrets.LLMAPIKey,
			Timeout:    cfg.LLM.Timeout,
			MaxRetries: cfg.LLM.MaxRetries,
		}, z), Models(cfg.LLM.Models), z)
	}
	// left nil when unset so the services see a nil interface
	if cfg.EdgeFunctions.BaseURL != "" {
		edge := edgefn.NewClient(edgefn.Config{
			BaseURL:    cfg.EdgeFunctions.BaseURL,
			APIKey:     cfg.Secrets.EdgeFunctionKey,
			Timeout:    cfg.EdgeFunctions.Timeout,
			MaxRetries: cfg.EdgeFunctions.MaxRetries,
		}, z)
		deps.Remote = edge
		deps.Edge = edge
	}
	if cfg.Notifications.SMTP.Host != "" {
		deps.Email = email.NewSMTPService(email.Config{
			Host:     cfg.Notifications.SMTP.Host,
			Port:     cfg.Notifications.SMTP.Port,
			User:     cfg.Notifications.SMTP.User,
			Password: cfg.Secrets.SMTPPassword,
			From:     cfg.Notifications.SMTP.From,
		})
	}

	return &Runtime{DB: db, Broker: broker, Deps: deps}, nil
}

// Models converts configured tiers. The router drops unknown ones.
func Models(in []config.LLMModelConfig) []llm.Model {
	out := make([]llm.Model, 0, len(in))
	for _, m := range in {
		out = append(out, llm.Model{Tier: llm.Tier(m.Tier), Name: m.Name, CostPer1K: m.CostPer1K})
	}
	return out
}

func (r *Runtime) Close() {
	if r.Broker != nil {
		r.Broker.Close()
	}
	if r.DB != nil {
		r.DB.Close()
	}
}
