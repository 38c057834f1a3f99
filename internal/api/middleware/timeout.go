package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bassista/court_watch/internal/logger"
)

// RequestTimeout bounds every API request with a context deadline of d.
// Handlers are not interrupted: a manual cycle notices the deadline through
// the feed fetch and returns without writing, and the request is then
// answered with 504. A handler that already wrote keeps its response.
func RequestTimeout(d time.Duration) gin.HandlerFunc {
	if d <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if c.Writer.Written() || !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return
		}
		logger.WithComponent("http").Warnf("%s %s exceeded %s", c.Request.Method, c.Request.URL.Path, d)
		_ = c.Error(ctx.Err())
		c.AbortWithStatusJSON(http.StatusGatewayTimeout, gin.H{"error": "request timeout", "timeout": d.String()})
	}
}
