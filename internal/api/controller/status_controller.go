package controller

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bassista/court_watch/internal/cache"
	"github.com/bassista/court_watch/internal/logger"
	"github.com/bassista/court_watch/internal/model"
	"github.com/bassista/court_watch/internal/repository"
)

// SnapshotResponse is the stored previous poll, optionally narrowed by query.
type SnapshotResponse struct {
	Count int           `json:"count"`
	Slots model.Dataset `json:"slots"`
}

// StatusController serves read-only views of the watcher state.
type StatusController struct {
	status    cache.ReadOnlyStore
	snapshots repository.Loader
}

// NewStatusController creates a new StatusController.
func NewStatusController(status cache.ReadOnlyStore, snapshots repository.Loader) *StatusController {
	return &StatusController{status: status, snapshots: snapshots}
}

// GetStatus handles GET /status.
func (sc *StatusController) GetStatus(c *gin.Context) {
	status, err := sc.status.Snapshot()
	if err != nil {
		logger.WithComponent("status-controller").Errorf("status snapshot failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}

// GetLatestNotification handles GET /notification/latest.
func (sc *StatusController) GetLatestNotification(c *gin.Context) {
	rec, ok, err := sc.status.LatestNotification()
	if err != nil {
		logger.WithComponent("status-controller").Errorf("latest notification failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no notification emitted yet"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// GetSnapshot handles GET /snapshot. The optional venue, district and date
// query parameters match exactly after trimming.
func (sc *StatusController) GetSnapshot(c *gin.Context) {
	ds, err := sc.snapshots.Load(c.Request.Context())
	if err != nil {
		if errors.Is(err, repository.ErrSnapshotNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no snapshot stored yet"})
			return
		}
		logger.WithComponent("status-controller").Errorf("snapshot load failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	venue := strings.TrimSpace(c.Query("venue"))
	district := strings.TrimSpace(c.Query("district"))
	date := strings.TrimSpace(c.Query("date"))

	slots := model.Dataset{}
	for _, s := range *ds {
		if venue != "" && s.Venue != venue {
			continue
		}
		if district != "" && s.District != district {
			continue
		}
		if date != "" && s.Date != date {
			continue
		}
		slots = append(slots, s)
	}
	c.JSON(http.StatusOK, SnapshotResponse{Count: len(slots), Slots: slots})
}
