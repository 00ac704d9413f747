// Package ingress exposes the engine over HTTP: event submission, read-only
// queries over the stain store and correlation engine, forest health
// reporting, and the admin-only override endpoints.
package ingress

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/iff-guardian/nanoguard/pkg/logger"
	"github.com/iff-guardian/nanoguard/pkg/metrics"
)

// LoggingMiddleware logs every request's method, path, status, and latency.
func LoggingMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}

		log.Info("http request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		)
	}
}

// MetricsMiddleware records HTTP request metrics through the shared
// prometheus collector.
func MetricsMiddleware(collector *metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		collector.RecordHTTPRequest(
			"gateway",
			c.Request.Method,
			c.FullPath(),
			c.Writer.Status(),
			time.Since(start),
			0,
			int64(c.Writer.Size()),
		)
	}
}
