package observability

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// unmatchedRoute labels requests that hit no registered admin route so
// scanners cannot grow the metric label set.
const unmatchedRoute = "unmatched"

func routeLabel(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return unmatchedRoute
}

// RequestLogger logs one line per admin request. Successful scrapes and
// health checks stay at debug; feed upgrades are logged at info so renderer
// sessions are visible.
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := logger.Debug()
		switch {
		case status >= http.StatusInternalServerError:
			event = logger.Error()
		case status >= http.StatusBadRequest:
			event = logger.Warn()
		case status == http.StatusSwitchingProtocols:
			event = logger.Info()
		}

		event.
			Str("surface", "admin").
			Str("route", routeLabel(c)).
			Str("method", c.Request.Method).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("elapsed", time.Since(start)).
			Str("remote", c.ClientIP()).
			Bool("upgrade", status == http.StatusSwitchingProtocols).
			Msg("admin request")
	}
}

// RequestMetricsMiddleware records admin requests by route template.
func RequestMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		RecordHTTPRequest(c.Request.Method, routeLabel(c), c.Writer.Status(), time.Since(start))
	}
}
