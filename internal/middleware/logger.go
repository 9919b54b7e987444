package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/careops-api/pkg/logger"
)

// Logger logs one line per request. Bodies are never logged since they
// carry patient data.
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		status := c.Writer.Status()
		fields := []interface{}{
			"request_id", c.GetString(ContextRequestID),
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"duration", time.Since(start).String(),
			"client_ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
		}
		if tenant, ok := c.Get(ContextTenantID); ok {
			fields = append(fields, "tenant_id", toString(tenant))
		}

		switch {
		case status >= 500:
			log.Error(nil, "Server error", fields...)
		case status >= 400:
			log.Warn("Client error", fields...)
		default:
			log.Info("Request processed", fields...)
		}
	}
}
