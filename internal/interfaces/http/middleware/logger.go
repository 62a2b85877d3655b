// internal/interfaces/http/middleware/logger.go
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/inventory-ledger/internal/pkg/metrics"
)

// Logger logs every request with its id, and feeds the request metrics when m is set
func Logger(log logrus.FieldLogger, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		m.RecordHTTPRequest(c.Request.Method, route, status, latency)

		entry := log.WithFields(logrus.Fields{
			"request_id":    c.GetString("request_id"),
			"method":        c.Request.Method,
			"path":          c.Request.URL.Path,
			"route":         route,
			"status_code":   status,
			"latency":       latency,
			"client_ip":     c.ClientIP(),
			"user_agent":    c.Request.UserAgent(),
			"response_size": c.Writer.Size(),
		})

		if len(c.Errors) > 0 {
			entry = entry.WithField("error", c.Errors.String())
		}

		if status >= 500 {
			entry.Error("HTTP request completed with server error")
		} else if status >= 400 {
			entry.Warn("HTTP request completed with client error")
		} else {
			entry.Info("HTTP request completed successfully")
		}
	}
}
