package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/careops-api/internal/handler/health"
	promhandler "github.com/jwalitptl/careops-api/internal/handler/prometheus"
	"github.com/jwalitptl/careops-api/internal/middleware"
	apperrors "github.com/jwalitptl/careops-api/pkg/errors"
	"github.com/jwalitptl/careops-api/pkg/httputil"
	"github.com/jwalitptl/careops-api/pkg/logger"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type RouterConfig struct {
	Mode        string
	RateLimiter middleware.RateLimiterConfig
	CORSConfig  middleware.CORSConfig
	Security    middleware.SecurityConfig
	SizeLimit   middleware.SizeLimitConfig
	Timeout     middleware.TimeoutConfig
	// AuditRoles may read the audit trail
	AuditRoles []string
}

type Router struct {
	engine  *gin.Engine
	config  RouterConfig
	log     *logger.Logger
	auth    *middleware.AuthMiddleware
	metrics *promhandler.Handler
	health  *health.Handler
	audit   Handler
	api     []Handler
}

func NewRouter(
	config RouterConfig,
	log *logger.Logger,
	auth *middleware.AuthMiddleware,
	metrics *promhandler.Handler,
	healthH *health.Handler,
	auditH Handler,
	handlers ...Handler,
) *Router {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}
	if config.Security == (middleware.SecurityConfig{}) {
		config.Security = middleware.DefaultSecurityConfig()
	}
	if config.SizeLimit.MaxBodySize <= 0 {
		config.SizeLimit = middleware.DefaultSizeLimitConfig()
	}
	if len(config.CORSConfig.AllowOrigins) == 0 {
		config.CORSConfig = middleware.DefaultCORSConfig()
	}
	if len(config.AuditRoles) == 0 {
		config.AuditRoles = []string{"admin", "compliance"}
	}
	if log == nil {
		log = logger.Nop()
	}

	r := &Router{
		engine:  gin.New(),
		config:  config,
		log:     log,
		auth:    auth,
		metrics: metrics,
		health:  healthH,
		audit:   auditH,
		api:     handlers,
	}
	r.setupMiddleware()
	r.setupRoutes()
	return r
}

func (r *Router) setupMiddleware() {
	r.engine.Use(
		middleware.RequestID(),
		middleware.Recovery(r.log),
		middleware.Logger(r.log),
		middleware.ErrorHandler(r.log),
	)
	if r.metrics != nil {
		r.engine.Use(r.metrics.Middleware())
	}
	r.engine.Use(
		middleware.SecurityHeaders(r.config.Security),
		middleware.CORS(r.config.CORSConfig),
		middleware.SizeLimit(r.config.SizeLimit),
		middleware.Timeout(r.config.Timeout),
	)

	r.engine.NoRoute(func(c *gin.Context) {
		httputil.RespondWithError(c, apperrors.NotFound("route", nil))
	})
	r.engine.HandleMethodNotAllowed = true
	r.engine.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, httputil.Response{
			Error: &httputil.Error{Code: string(apperrors.ErrInvalidInput), Message: "method not allowed"},
		})
	})
}

func (r *Router) setupRoutes() {
	api := r.engine.Group("/api/v1")

	if r.health != nil {
		r.health.RegisterRoutes(api)
	}

	protected := api.Group("")
	protected.Use(
		r.auth.Authenticate(),
		middleware.NewRateLimiter(r.config.RateLimiter).RateLimit(),
	)
	for _, h := range r.api {
		h.RegisterRoutes(protected)
	}

	if r.audit != nil {
		restricted := protected.Group("")
		restricted.Use(r.auth.RequireRole(r.config.AuditRoles...))
		r.audit.RegisterRoutes(restricted)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
