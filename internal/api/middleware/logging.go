package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tormodh/doipuds/internal/logging"
)

// RequestIDHeader is the response header every request is echoed back on,
// so a caller can correlate its own retry/support ticket with this client's
// logs the same way a diagnostic session's log lines are correlated by
// session_id.
const RequestIDHeader = "X-Request-Id"

// requestIDContextKey is where SlogRequestLogger stashes the minted ID for
// downstream handlers that want to fold it into their own log lines.
const requestIDContextKey = "request_id"

// RequestID returns the correlation ID SlogRequestLogger minted for the
// current request, or "" if the middleware was not installed.
func RequestID(c *gin.Context) string {
	id, _ := c.Get(requestIDContextKey)
	s, _ := id.(string)
	return s
}

// SlogRequestLogger mints a per-request correlation ID, attaches it as a
// response header, stores it in the gin context for RequestID, and logs one
// summary line per request carrying it as a field. Log lines written by the
// handlers themselves do not get the field unless they add it.
func SlogRequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		requestID := uuid.New().String()
		c.Set(requestIDContextKey, requestID)
		c.Writer.Header().Set(RequestIDHeader, requestID)

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if logger != nil {
			scoped := logging.WithCorrelationID(logger, requestIDContextKey, requestID)
			scoped.Info("api request",
				"method", method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		}
	}
}
