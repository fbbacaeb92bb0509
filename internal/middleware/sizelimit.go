package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/evura/portal-api/internal/handler"
)

type SizeLimitConfig struct {
	MaxBodySize   int64
	MaxHeaderSize int
	// SkipPaths are route patterns that install their own limit.
	SkipPaths []string
}

func DefaultSizeLimitConfig() SizeLimitConfig {
	return SizeLimitConfig{
		MaxBodySize:   1 << 20,
		MaxHeaderSize: 1 << 14,
	}
}

// multipartOverhead covers form fields and part headers around an upload.
const multipartOverhead = 1 << 20

// UploadLimit sizes the body limit for a multipart upload of at most
// maxFile bytes.
func UploadLimit(maxFile int64) SizeLimitConfig {
	cfg := DefaultSizeLimitConfig()
	cfg.MaxBodySize = maxFile + multipartOverhead
	return cfg
}

// SizeLimit rejects oversized requests up front and caps what the handler
// can read from the body.
func SizeLimit(config SizeLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, path := range config.SkipPaths {
			if c.FullPath() == path {
				c.Next()
				return
			}
		}

		if c.Request.ContentLength > config.MaxBodySize {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge,
				handler.NewErrorResponse(fmt.Sprintf("request body exceeds %d bytes", config.MaxBodySize)))
			return
		}

		headerSize := 0
		for name, values := range c.Request.Header {
			headerSize += len(name)
			for _, value := range values {
				headerSize += len(value)
			}
		}
		if config.MaxHeaderSize > 0 && headerSize > config.MaxHeaderSize {
			c.AbortWithStatusJSON(http.StatusRequestHeaderFieldsTooLarge,
				handler.NewErrorResponse("request headers too large"))
			return
		}

		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, config.MaxBodySize)
		}
		c.Next()
	}
}
