package callback

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/go-training/oauth-loopback/pkg/core"
)

// requestContext tags each request with a request ID.
func requestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := core.WithRequestID(c.Request.Context())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// requestLogger logs one line per request after it has been served.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		core.LoggerFromCtx(c.Request.Context()).Debug("Callback request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}
