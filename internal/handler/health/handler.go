package health

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

const checkTimeout = 2 * time.Second

// Checker reports whether a dependency is reachable
type Checker func(ctx context.Context) error

type Handler struct {
	checks  map[string]Checker
	metrics gin.HandlerFunc
}

func NewHandler(checks map[string]Checker, metrics gin.HandlerFunc) *Handler {
	if checks == nil {
		checks = map[string]Checker{}
	}
	return &Handler{checks: checks, metrics: metrics}
}

func DatabaseCheck(db *sqlx.DB) Checker {
	return func(ctx context.Context) error { return db.PingContext(ctx) }
}

func RedisCheck(client redis.UniversalClient) Checker {
	return func(ctx context.Context) error { return client.Ping(ctx).Err() }
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	health := r.Group("/health")
	{
		health.GET("/live", h.LivenessCheck)
		health.GET("/ready", h.ReadinessCheck)
		if h.metrics != nil {
			health.GET("/metrics", h.metrics)
		}
	}
}

func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "UP"})
}

func (h *Handler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := gin.H{}
	down := false
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			results[name] = "DOWN"
			down = true
			continue
		}
		results[name] = "UP"
	}

	if down {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "DOWN", "checks": results})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "UP", "checks": results})
}
