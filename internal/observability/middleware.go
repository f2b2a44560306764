package observability

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// routeOf prefers the registered route pattern so path params do not
// explode label cardinality.
func routeOf(c *gin.Context) string {
	if path := c.FullPath(); path != "" {
		return path
	}
	return c.Request.URL.Path
}

// moduleOf extracts <module> from /api/<module>/<op>.
func moduleOf(route string) string {
	rest, ok := strings.CutPrefix(route, "/api/")
	if !ok {
		return ""
	}
	module, _, _ := strings.Cut(rest, "/")
	return module
}

// RequestLogger logs one line per request. Probe routes carry the module
// name; scrapes and health checks drop to debug.
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		route := routeOf(c)

		var event *zerolog.Event
		switch {
		case status >= 500:
			event = logger.Error()
		case status >= 400:
			event = logger.Warn()
		case route == "/metrics" || route == "/health" || route == "/ready":
			event = logger.Debug()
		default:
			event = logger.Info()
		}
		if module := moduleOf(route); module != "" {
			event = event.Str("module", module)
		}
		event.
			Str("method", c.Request.Method).
			Str("path", route).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("http_request")
	}
}

func RequestMetricsMiddleware(node string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		RecordHTTPRequest(node, c.Request.Method, routeOf(c), c.Writer.Status(), time.Since(start))
	}
}
