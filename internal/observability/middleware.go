package observability

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// routePath is the matched route, or the raw path when nothing matched.
func routePath(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return c.Request.URL.Path
}

// RequestLogger logs one line per admin request of hubName. Query filters
// such as ?contract= are logged with the request.
func RequestLogger(logger zerolog.Logger, hubName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		var event *zerolog.Event
		switch {
		case status >= 500:
			event = logger.Error()
		case status >= 400:
			event = logger.Warn()
		default:
			event = logger.Debug()
		}
		if q := c.Request.URL.RawQuery; q != "" {
			event = event.Str("query", q)
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}
		event.
			Str("hub", hubName).
			Str("method", c.Request.Method).
			Str("path", routePath(c)).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("admin request")
	}
}

// RequestMetricsMiddleware records admin request counts and latency under
// the hub label.
func RequestMetricsMiddleware(hubName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		RecordHTTPRequest(hubName, c.Request.Method, routePath(c), c.Writer.Status(), time.Since(start))
	}
}
