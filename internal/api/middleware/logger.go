package middleware

import (
	"time"

	"lazychat/internal/logger"

	"github.com/gin-gonic/gin"
)

// Logger writes one line per request through the service logger.
func Logger(logger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		latency := time.Since(start)
		if status >= 500 {
			logger.Warn("%s %s %d %s %s", c.Request.Method, path, status, latency, c.ClientIP())
			return
		}
		logger.Info("%s %s %d %s %s", c.Request.Method, path, status, latency, c.ClientIP())
	}
}
