package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// SlogRequestLogger logs one line per completed request. When the caller is
// a secondary node polling the cluster ticker export, its X-Node-ID header
// is attached so primary-side logs can be correlated with a specific
// cluster member.
func SlogRequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if logger != nil {
			fields := []any{
				"method", method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			}
			if nodeID := c.GetHeader("X-Node-ID"); nodeID != "" {
				fields = append(fields, "cluster_node_id", nodeID)
			}
			logger.Info("api request", fields...)
		}
	}
}
