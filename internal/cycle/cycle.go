// Package cycle runs one detection cycle: load the previous snapshot, fetch
// the current one, detect and filter changes, emit the notification and save.
package cycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bassista/court_watch/internal/detector"
	"github.com/bassista/court_watch/internal/emitter"
	"github.com/bassista/court_watch/internal/errreport"
	"github.com/bassista/court_watch/internal/feed"
	"github.com/bassista/court_watch/internal/filter"
	"github.com/bassista/court_watch/internal/logger"
	"github.com/bassista/court_watch/internal/model"
	"github.com/bassista/court_watch/internal/notification"
	"github.com/bassista/court_watch/internal/repository"
)

// ErrFetchFailed aborts a cycle before any stored state is touched.
var ErrFetchFailed = errors.New("fetch failed")

// Result summarises one cycle.
type Result struct {
	CycleID      string                     `json:"cycleId"`
	StartedAt    time.Time                  `json:"startedAt"`
	FinishedAt   time.Time                  `json:"finishedAt"`
	SlotCount    int                        `json:"slotCount"`
	HadPrevious  bool                       `json:"hadPrevious"`
	Detected     int                        `json:"detected"`
	Changes      []model.Change             `json:"changes"`
	Notification *notification.Notification `json:"notification,omitempty"`
	FetchErr     error                      `json:"-"`
	EmitErr      error                      `json:"-"`
	SaveErr      error                      `json:"-"`
}

// Duration is the wall time of the cycle.
func (r *Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Runner wires the cycle's collaborators together.
type Runner struct {
	store    repository.SnapshotStore
	fetcher  feed.Fetcher
	emitter  emitter.Emitter
	filter   *filter.Filter
	reporter errreport.Reporter
	now      func() time.Time
	newID    func() string
}

// Option configures a Runner.
type Option func(*Runner)

// WithFilter drops changes the filter rejects before formatting.
func WithFilter(f *filter.Filter) Option {
	return func(r *Runner) { r.filter = f }
}

// WithReporter forwards fetch, emit and save failures.
func WithReporter(rep errreport.Reporter) Option {
	return func(r *Runner) {
		if rep != nil {
			r.reporter = rep
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRunner creates a Runner. store, fetcher and emit are required.
func NewRunner(store repository.SnapshotStore, fetcher feed.Fetcher, emit emitter.Emitter, opts ...Option) (*Runner, error) {
	if store == nil {
		return nil, errors.New("snapshot store is required")
	}
	if fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if emit == nil {
		return nil, errors.New("emitter is required")
	}
	r := &Runner{
		store:    store,
		fetcher:  fetcher,
		emitter:  emit,
		reporter: errreport.Nop{},
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run executes one cycle. The returned Result is never nil; the error is
// non-nil only when the fetch failed, in which case nothing was saved.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	res := &Result{CycleID: r.newID(), StartedAt: r.now()}
	log := logger.WithCycle("cycle", res.CycleID)
	log.Info("cycle started")

	previous := r.loadPrevious(ctx, res)
	res.HadPrevious = previous != nil

	current, err := r.fetcher.Fetch(ctx)
	if err != nil {
		res.FetchErr = err
		res.FinishedAt = r.now()
		log.Errorf("fetch failed, keeping previous snapshot: %v", err)
		r.reporter.Report(err, map[string]any{"cycle_id": res.CycleID}, "cycle", "fetch")
		return res, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	res.SlotCount = len(current)

	detected := detector.Detect(current, previous)
	res.Detected = len(detected)
	res.Changes = r.filter.Apply(detected)
	if dropped := len(detected) - len(res.Changes); dropped > 0 {
		log.Infof("filter %q dropped %d of %d changes", r.filter.String(), dropped, len(detected))
	}

	// Past the fetch, emit and save run to completion whatever the caller does.
	done := context.WithoutCancel(ctx)

	res.Notification = notification.Format(res.Changes)
	if res.Notification != nil {
		if err := r.emitter.Emit(done, res.Notification); err != nil {
			res.EmitErr = err
			log.Errorf("emit notification: %v", err)
			r.reporter.Report(err, map[string]any{"cycle_id": res.CycleID}, "cycle", "emit")
		}
	}

	if err := r.store.Save(done, current); err != nil {
		res.SaveErr = err
		log.Errorf("save snapshot: %v", err)
		r.reporter.Report(err, map[string]any{"cycle_id": res.CycleID}, "cycle", "save")
	}

	res.FinishedAt = r.now()
	log.WithField("duration", res.Duration().String()).
		Infof("cycle finished: %d slots, %d changes (previous snapshot: %t)", res.SlotCount, len(res.Changes), res.HadPrevious)
	return res, nil
}

// loadPrevious treats every load error as "no previous data".
func (r *Runner) loadPrevious(ctx context.Context, res *Result) *model.Dataset {
	log := logger.WithCycle("cycle", res.CycleID)
	previous, err := r.store.Load(ctx)
	switch {
	case err == nil:
		return previous
	case errors.Is(err, repository.ErrSnapshotNotFound):
		log.Debug("no previous snapshot, first run")
	default:
		log.Warnf("load previous snapshot, treating as first run: %v", err)
	}
	return nil
}
