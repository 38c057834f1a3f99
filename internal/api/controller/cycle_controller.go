package controller

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/bassista/court_watch/internal/cycle"
	"github.com/bassista/court_watch/internal/logger"
	"github.com/bassista/court_watch/internal/scheduler"
)

// CycleTrigger runs one cycle on demand. scheduler.CronScheduler implements it.
type CycleTrigger interface {
	Trigger(ctx context.Context, trigger string) (*cycle.Result, error)
}

// CycleResponse is the outcome of a manually triggered cycle.
type CycleResponse struct {
	*cycle.Result
	DurationMs int64  `json:"durationMs"`
	EmitError  string `json:"emitError,omitempty"`
	SaveError  string `json:"saveError,omitempty"`
}

// CycleController handles manual cycle runs.
type CycleController struct {
	trigger CycleTrigger
	limiter *rate.Limiter
}

// NewCycleController creates a CycleController. A nil limiter disables rate limiting.
func NewCycleController(trigger CycleTrigger, limiter *rate.Limiter) *CycleController {
	return &CycleController{trigger: trigger, limiter: limiter}
}

// RunCycle handles POST /cycle.
func (cc *CycleController) RunCycle(c *gin.Context) {
	log := logger.WithComponent("cycle-controller")
	log.Debugf("POST /cycle handler called")

	if cc.limiter != nil {
		r := cc.limiter.Reserve()
		if !r.OK() {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "manual cycles are disabled"})
			return
		}
		if delay := r.Delay(); delay > 0 {
			r.Cancel()
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "manual cycles are rate limited"})
			return
		}
	}

	res, err := cc.trigger.Trigger(c.Request.Context(), scheduler.TriggerManual)
	switch {
	case errors.Is(err, scheduler.ErrCycleInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case errors.Is(err, cycle.ErrFetchFailed):
		log.Warnf("manual cycle failed: %v", err)
		if errors.Is(c.Request.Context().Err(), context.DeadlineExceeded) {
			// left unwritten so RequestTimeout answers 504
			return
		}
		body := gin.H{"error": err.Error()}
		if res != nil {
			body["cycleId"] = res.CycleID
		}
		c.JSON(http.StatusBadGateway, body)
		return
	case err != nil:
		log.Errorf("manual cycle failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	response := CycleResponse{Result: res, DurationMs: res.Duration().Milliseconds()}
	if res.EmitErr != nil {
		response.EmitError = res.EmitErr.Error()
	}
	if res.SaveErr != nil {
		response.SaveError = res.SaveErr.Error()
	}
	c.JSON(http.StatusOK, response)
}
