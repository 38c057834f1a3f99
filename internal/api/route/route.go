package route

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/bassista/court_watch/internal/api/middleware"
	"github.com/bassista/court_watch/internal/app"
)

// SetupRoutes builds the HTTP engine for the watcher API.
func SetupRoutes(appCtx *app.App, logger *logrus.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.LoggerWithWriter(logger.Writer(), "/health"))
	r.Use(gin.Recovery())
	r.Use(middleware.HoneybadgerMiddleware(appCtx.Reporter, logger))
	if appCtx.Config.Server.CORSAllowedOrigins != "" {
		r.Use(middleware.CORSMiddleware(appCtx.Config.Server.CORSAllowedOrigins))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "UP",
		})
	})

	apiRouter := r.Group("/api")

	timeout := appCtx.Config.Server.RequestTimeout
	limiter := rate.NewLimiter(rate.Every(appCtx.Config.Server.TriggerInterval), appCtx.Config.Server.TriggerBurst)

	NewStatusRouter(timeout, apiRouter, appCtx.Status, appCtx.Store)
	NewCycleRouter(timeout, apiRouter, appCtx.Scheduler, limiter)
	NewConfigurationRouter(timeout, apiRouter, appCtx.Config)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	return r
}
