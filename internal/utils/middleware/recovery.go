package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/uniedit/album/internal/shared/logger"
)

// Recovery returns a middleware that turns panics into a 500 response.
func Recovery(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		log = logger.New(nil)
	}

	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error("Panic recovered",
					"error", err,
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"request_id", GetRequestID(c),
					"stack", string(debug.Stack()),
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"message": "Internal server error.",
				})
			}
		}()
		c.Next()
	}
}
