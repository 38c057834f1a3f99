package route

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bassista/court_watch/internal/api/controller"
	"github.com/bassista/court_watch/internal/api/middleware"
	"github.com/bassista/court_watch/internal/cache"
	"github.com/bassista/court_watch/internal/repository"
)

// NewStatusRouter sets up the read-only status routes.
func NewStatusRouter(timeout time.Duration, group *gin.RouterGroup, status cache.ReadOnlyStore, snapshots repository.Loader) {
	sc := controller.NewStatusController(status, snapshots)
	timeoutMiddleware := middleware.RequestTimeout(timeout)

	group.GET("status", timeoutMiddleware, sc.GetStatus)
	group.GET("notification/latest", timeoutMiddleware, sc.GetLatestNotification)
	group.GET("snapshot", timeoutMiddleware, sc.GetSnapshot)
}
