package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/bassista/court_watch/internal/errreport"
)

// Notifier is the part of errreport.Honeybadger the middleware needs.
type Notifier interface {
	Enabled() bool
	Notice(value any, context map[string]any, tags ...string)
}

var _ Notifier = (*errreport.Honeybadger)(nil)

// HoneybadgerMiddleware sends error/warning notifications to Honeybadger.
// On panic, it notifies Honeybadger and re-panics to allow gin.Recovery to handle the response.
// Rate limiting (429) and conflicts with a running cycle (409) are expected and not reported.
func HoneybadgerMiddleware(notifier Notifier, logger *logrus.Logger) gin.HandlerFunc {
	if notifier == nil || !notifier.Enabled() {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				// Notify Honeybadger with stacktrace, then re-panic
				notifier.Notice(fmt.Sprintf("Panic: %s %s", c.Request.Method, c.Request.URL.Path),
					map[string]any{"stack": string(debug.Stack()), "panic": fmt.Sprint(rec)}, "panic", "http")
				logger.Error("Recovered from panic, notified Honeybadger: ", rec)
				panic(rec) // propagate panic to let gin.Recovery handle it
			}
		}()

		c.Next()

		status := c.Writer.Status()
		if !reportable(status) {
			return
		}
		ctx := map[string]any{"method": c.Request.Method, "path": c.Request.URL.Path, "status": status}
		if len(c.Errors) > 0 {
			ctx["errors"] = c.Errors.String()
		}
		if status >= 500 {
			notifier.Notice(fmt.Sprintf("Error: HTTP %d: %s %s", status, c.Request.Method, c.Request.URL.Path), ctx, "5XX", "http")
		} else {
			notifier.Notice(fmt.Sprintf("Warning: HTTP %d: %s %s", status, c.Request.Method, c.Request.URL.Path), ctx, "4XX", "http")
		}
		logger.Warnf("Honeybadger reported HTTP %d for %s %s", status, c.Request.Method, c.Request.URL.Path)
	}
}

func reportable(status int) bool {
	switch status {
	case http.StatusNotFound, http.StatusConflict, http.StatusTooManyRequests:
		return false
	}
	return status >= 400
}
