package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestObserver records per-route request metrics.
type RequestObserver interface {
	ObserveRequest(method, route string, code int, d time.Duration)
}

func Logger(logger *zap.Logger, observer RequestObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		if raw != "" {
			path = path + "?" + raw
		}

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		if observer != nil {
			observer.ObserveRequest(c.Request.Method, route, statusCode, latency)
		}

		logger.Info("HTTP Request",
			zap.String("client_ip", c.ClientIP()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", statusCode),
			zap.Duration("latency", latency),
			zap.String("owner_id", c.GetString(OwnerKey)),
		)
	}
}
