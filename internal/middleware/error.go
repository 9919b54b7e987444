package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/careops-api/pkg/httputil"
	"github.com/jwalitptl/careops-api/pkg/logger"
)

// ErrorHandler logs errors attached with c.Error and answers with the
// standard envelope when the handler wrote nothing
func ErrorHandler(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		for _, e := range c.Errors {
			log.Error(e.Err, "Request error",
				"request_id", c.GetString(ContextRequestID),
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
				"client_ip", c.ClientIP())
		}

		if c.Writer.Written() {
			return
		}
		status, resp := httputil.Failure(c.Errors.Last().Err)
		c.JSON(status, resp)
	}
}
