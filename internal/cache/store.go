package cache

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/bassista/court_watch/internal/cycle"
	"github.com/bassista/court_watch/internal/notification"
)

// CycleSummary is the API view of one cycle.
type CycleSummary struct {
	CycleID     string    `json:"cycleId"`
	Trigger     string    `json:"trigger,omitempty"`
	StartedAt   time.Time `json:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt"`
	DurationMs  int64     `json:"durationMs"`
	SlotCount   int       `json:"slotCount"`
	HadPrevious bool      `json:"hadPrevious"`
	Detected    int       `json:"detected"`
	Changes     int       `json:"changes"`
	Notified    bool      `json:"notified"`
	FetchError  string    `json:"fetchError,omitempty"`
	EmitError   string    `json:"emitError,omitempty"`
	SaveError   string    `json:"saveError,omitempty"`
}

// NotificationRecord is the last notification together with its cycle.
type NotificationRecord struct {
	CycleID      string                    `json:"cycleId"`
	EmittedAt    time.Time                 `json:"emittedAt"`
	Notification notification.Notification `json:"notification"`
}

// Status is the daemon state served by the API.
type Status struct {
	StartedAt     time.Time     `json:"startedAt"`
	Running       bool          `json:"running"`
	Cycles        int           `json:"cycles"`
	Failures      int           `json:"failures"`
	LastSuccessAt *time.Time    `json:"lastSuccessAt,omitempty"`
	LastCycle     *CycleSummary `json:"lastCycle,omitempty"`
	NextRunAt     *time.Time    `json:"nextRunAt,omitempty"`
}

// Store keeps the daemon status in memory.
type Store struct {
	mu           sync.RWMutex
	status       Status
	notification *NotificationRecord
}

// NewStore creates an empty status store.
func NewStore(startedAt time.Time) *Store {
	return &Store{status: Status{StartedAt: startedAt}}
}

// SetRunning flags whether a cycle is currently executing.
func (s *Store) SetRunning(running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Running = running
}

// SetNextRun records when the scheduler fires next.
func (s *Store) SetNextRun(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if at.IsZero() {
		s.status.NextRunAt = nil
		return
	}
	s.status.NextRunAt = &at
}

// Record folds a cycle result into the status.
func (s *Store) Record(trigger string, res *cycle.Result) {
	if res == nil {
		return
	}
	summary := summarize(trigger, res)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.Cycles++
	s.status.LastCycle = &summary
	if res.FetchErr != nil {
		s.status.Failures++
		return
	}
	finished := res.FinishedAt
	s.status.LastSuccessAt = &finished

	if res.Notification != nil && res.EmitErr == nil {
		s.notification = &NotificationRecord{
			CycleID:      res.CycleID,
			EmittedAt:    res.FinishedAt,
			Notification: *res.Notification,
		}
	}
}

func summarize(trigger string, res *cycle.Result) CycleSummary {
	summary := CycleSummary{
		CycleID:     res.CycleID,
		Trigger:     trigger,
		StartedAt:   res.StartedAt,
		FinishedAt:  res.FinishedAt,
		DurationMs:  res.Duration().Milliseconds(),
		SlotCount:   res.SlotCount,
		HadPrevious: res.HadPrevious,
		Detected:    res.Detected,
		Changes:     len(res.Changes),
		Notified:    res.Notification != nil && res.EmitErr == nil,
	}
	if res.FetchErr != nil {
		summary.FetchError = res.FetchErr.Error()
	}
	if res.EmitErr != nil {
		summary.EmitError = res.EmitErr.Error()
	}
	if res.SaveErr != nil {
		summary.SaveError = res.SaveErr.Error()
	}
	return summary
}

// Snapshot returns a deep copy of the status.
func (s *Store) Snapshot() (Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneJSON(s.status)
}

// LatestNotification returns a copy of the last emitted notification.
// ok is false when nothing has been emitted since start.
func (s *Store) LatestNotification() (rec NotificationRecord, ok bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.notification == nil {
		return NotificationRecord{}, false, nil
	}
	rec, err = cloneJSON(*s.notification)
	if err != nil {
		return NotificationRecord{}, false, err
	}
	return rec, true, nil
}

// cloneJSON deep-copies v to avoid shared slices and pointers between cache and callers.
func cloneJSON[T any](v T) (T, error) {
	var out T
	bytes, err := json.Marshal(v)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(bytes, &out); err != nil {
		return out, err
	}
	return out, nil
}
