package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/uniedit/album/internal/shared/logger"
)

// SessionIDKey is the gin context key holding the authenticated session ID.
const SessionIDKey = "session_id"

// Logging returns a middleware that logs HTTP requests.
func Logging(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		log = logger.New(nil)
	}

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"status", status,
			"method", c.Request.Method,
			"path", path,
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if query != "" {
			attrs = append(attrs, "query", query)
		}
		if requestID := GetRequestID(c); requestID != "" {
			attrs = append(attrs, "request_id", requestID)
		}
		if sessionID := c.GetString(SessionIDKey); sessionID != "" {
			attrs = append(attrs, "session_id", sessionID)
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}

		msg := "HTTP Request"
		switch {
		case status >= 500:
			log.Error(msg, attrs...)
		case status >= 400:
			log.Warn(msg, attrs...)
		default:
			log.Info(msg, attrs...)
		}
	}
}
