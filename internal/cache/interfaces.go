package cache

import (
	"time"

	"github.com/bassista/court_watch/internal/cycle"
)

// ReadOnlyStore is the minimal cache API for read-only controllers.
type ReadOnlyStore interface {
	Snapshot() (Status, error)
	LatestNotification() (NotificationRecord, bool, error)
}

// Recorder is the cache API needed by the scheduler.
type Recorder interface {
	SetRunning(running bool)
	SetNextRun(at time.Time)
	Record(trigger string, res *cycle.Result)
}

// StatusStore is the cache contract the application container exposes.
type StatusStore interface {
	ReadOnlyStore
	Recorder
}
