package middleware

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	apperrors "github.com/jwalitptl/careops-api/pkg/errors"
	"github.com/jwalitptl/careops-api/pkg/httputil"
)

type RateLimiterConfig struct {
	Rate  rate.Limit
	Burst int
	// IdleTTL evicts buckets of clients that went quiet
	IdleTTL time.Duration
}

// RateLimiter keeps one token bucket per tenant, or per client IP before
// authentication
type RateLimiter struct {
	config  RateLimiterConfig
	buckets *cache.Cache
}

func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.IdleTTL <= 0 {
		config.IdleTTL = 10 * time.Minute
	}
	if config.Burst <= 0 {
		config.Burst = 1
	}
	return &RateLimiter{
		config:  config,
		buckets: cache.New(config.IdleTTL, config.IdleTTL),
	}
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	if v, ok := rl.buckets.Get(key); ok {
		rl.buckets.SetDefault(key, v)
		return v.(*rate.Limiter)
	}
	l := rate.NewLimiter(rl.config.Rate, rl.config.Burst)
	// Add fails when another request created the bucket first
	if err := rl.buckets.Add(key, l, cache.DefaultExpiration); err != nil {
		if v, ok := rl.buckets.Get(key); ok {
			return v.(*rate.Limiter)
		}
	}
	return l
}

func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if tenant, ok := c.Get(ContextTenantID); ok {
			key = "tenant:" + toString(tenant)
		}
		if !rl.limiter(key).Allow() {
			httputil.AbortWithError(c, &apperrors.AppError{
				Code:    apperrors.ErrRateLimited,
				Message: "rate limit exceeded",
				Err:     errors.New(key),
			})
			return
		}
		c.Next()
	}
}

func toString(v interface{}) string {
	if s, ok := v.(interface{ String() string }); ok {
		return s.String()
	}
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
