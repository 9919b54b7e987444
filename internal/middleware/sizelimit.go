package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/jwalitptl/careops-api/pkg/errors"
	"github.com/jwalitptl/careops-api/pkg/httputil"
)

type SizeLimitConfig struct {
	MaxBodySize   int64
	MaxHeaderSize int
}

func DefaultSizeLimitConfig() SizeLimitConfig {
	return SizeLimitConfig{
		MaxBodySize:   1 << 20, // 1MB, large enough for HL7 batches
		MaxHeaderSize: 1 << 14,
	}
}

// SizeLimit rejects oversized requests and caps body reads
func SizeLimit(config SizeLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > config.MaxBodySize {
			httputil.AbortWithError(c, apperrors.BadRequest(
				fmt.Sprintf("request body exceeds %d bytes", config.MaxBodySize), nil))
			return
		}

		headerSize := 0
		for name, values := range c.Request.Header {
			headerSize += len(name)
			for _, value := range values {
				headerSize += len(value)
			}
		}
		if headerSize > config.MaxHeaderSize {
			httputil.AbortWithError(c, apperrors.BadRequest(
				fmt.Sprintf("request headers exceed %d bytes", config.MaxHeaderSize), nil))
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, config.MaxBodySize)
		c.Next()
	}
}
