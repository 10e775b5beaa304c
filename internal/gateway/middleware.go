package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"bookgateway/internal/components/metrics"

	"github.com/gin-gonic/gin"
)

// RequestLogger logs every handled request through slog.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// handlers can rewrite the path
		path := c.Request.URL.Path
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"duration", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		}
		switch {
		case len(c.Errors) > 0:
			slog.Error("request failed", append(attrs, "err", c.Errors.String())...)
		case status >= 500:
			slog.Error("handled request", attrs...)
		case status >= 400:
			slog.Warn("handled request", attrs...)
		default:
			slog.Info("handled request", attrs...)
		}
	}
}

// CORS allows any origin, browser front-ends call the gateway directly.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// Metrics counts requests and observes their latency. The route template is
// used as the path label so keywords don't blow up the label cardinality.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HttpRequestsTotal.WithLabelValues(
			c.Request.Method,
			path,
			strconv.Itoa(c.Writer.Status()),
		).Inc()
		metrics.HttpRequestDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
	}
}

// Timeout bounds the request context, anything below it that honours the
// context (upstream requests, retry delays) gives up once d has passed.
// A non positive d disables the bound.
func Timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
