package route

import (
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/bassista/court_watch/internal/api/controller"
	"github.com/bassista/court_watch/internal/api/middleware"
)

// NewCycleRouter sets up the manual cycle route.
func NewCycleRouter(timeout time.Duration, group *gin.RouterGroup, trigger controller.CycleTrigger, limiter *rate.Limiter) {
	cc := controller.NewCycleController(trigger, limiter)

	group.POST("cycle", middleware.RequestTimeout(timeout), cc.RunCycle)
}
