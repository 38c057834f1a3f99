package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bassista/court_watch/internal/cache"
	"github.com/bassista/court_watch/internal/cycle"
	"github.com/bassista/court_watch/internal/logger"
)

// ErrCycleInProgress is returned when a trigger arrives while a cycle runs.
var ErrCycleInProgress = errors.New("cycle already in progress")

// Trigger names recorded with each cycle.
const (
	TriggerCron    = "cron"
	TriggerStartup = "startup"
	TriggerManual  = "manual"
	TriggerWatch   = "watch"
)

// DefaultSpec polls every ten minutes.
const DefaultSpec = "@every 10m"

var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSpec validates a cron expression. Seconds are optional and
// descriptors such as @every 5m or @hourly are accepted.
func ParseSpec(spec string) (cron.Schedule, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, errors.New("cron spec is empty")
	}
	sched, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parse cron spec %q: %w", spec, err)
	}
	return sched, nil
}

// CycleRunner runs one detection cycle.
type CycleRunner interface {
	Run(ctx context.Context) (*cycle.Result, error)
}

// CronScheduler runs cycles on a cron schedule in a fixed timezone.
// At most one cycle runs at a time; triggers arriving meanwhile are skipped
// unless they were queued.
type CronScheduler struct {
	runner CycleRunner
	status cache.Recorder
	spec   string
	sched  cron.Schedule
	loc    *time.Location

	busy sync.Mutex

	mu        sync.Mutex
	c         *cron.Cron
	entry     cron.EntryID
	queued    string
	queuedCtx context.Context
}

func NewCronScheduler(runner CycleRunner, status cache.Recorder, spec string, loc *time.Location) (*CronScheduler, error) {
	if runner == nil {
		return nil, errors.New("cycle runner is required")
	}
	if strings.TrimSpace(spec) == "" {
		spec = DefaultSpec
	}
	sched, err := ParseSpec(spec)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}
	return &CronScheduler{runner: runner, status: status, spec: strings.TrimSpace(spec), sched: sched, loc: loc}, nil
}

// Start registers the cycle job and starts the cron loop. The scheduler stops
// when ctx is cancelled; use Stop to wait for a running cycle to finish.
func (s *CronScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return errors.New("scheduler already started")
	}

	log := logger.WithComponent("sched")
	log.Debugf("starting cron scheduler with spec: %q, timezone: %s", s.spec, s.loc.String())

	c := cron.New(
		cron.WithParser(parser),
		cron.WithLocation(s.loc),
		cron.WithChain(cron.Recover(cron.PrintfLogger(logger.WithComponent("cron")))),
	)
	id, err := c.AddFunc(s.spec, func() {
		if _, err := s.Trigger(ctx, TriggerCron); err != nil {
			if errors.Is(err, ErrCycleInProgress) {
				log.Warn("previous cycle still running, skipping scheduled run")
			}
		}
	})
	if err != nil {
		return fmt.Errorf("register cycle job: %w", err)
	}
	s.c = c
	s.entry = id
	c.Start()
	s.publishNextRunLocked()

	go func() {
		<-ctx.Done()
		s.Stop(context.Background())
		log.Info("scheduler stopped")
	}()
	return nil
}

// Stop halts the cron loop and waits for a running cycle, bounded by ctx.
func (s *CronScheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		logger.WithComponent("sched").Warnf("stop did not wait for running cycle: %v", ctx.Err())
	}
	if s.status != nil {
		s.status.SetNextRun(time.Time{})
	}
}

// Trigger runs a cycle now unless one is already running.
func (s *CronScheduler) Trigger(ctx context.Context, trigger string) (*cycle.Result, error) {
	if !s.busy.TryLock() {
		return nil, ErrCycleInProgress
	}
	res, err := s.run(ctx, trigger)
	s.busy.Unlock()

	if s.hasQueued() {
		go s.runQueued()
	}
	return res, err
}

// Queue runs a cycle now, or once the running cycle finishes. Queueing
// again before that rerun starts replaces the pending trigger, so a burst
// of requests costs at most one extra cycle.
func (s *CronScheduler) Queue(ctx context.Context, trigger string) {
	s.mu.Lock()
	s.queued, s.queuedCtx = trigger, ctx
	s.mu.Unlock()
	s.runQueued()
}

func (s *CronScheduler) hasQueued() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queued != ""
}

// runQueued drains the queued trigger. When busy it leaves it for the holder,
// which checks the queue after unlocking.
func (s *CronScheduler) runQueued() {
	for s.hasQueued() && s.busy.TryLock() {
		s.mu.Lock()
		trigger, ctx := s.queued, s.queuedCtx
		s.queued, s.queuedCtx = "", nil
		s.mu.Unlock()

		if trigger != "" && ctx.Err() == nil {
			_, _ = s.run(ctx, trigger)
		}
		s.busy.Unlock()
	}
}

// run executes one cycle; the caller holds busy.
func (s *CronScheduler) run(ctx context.Context, trigger string) (*cycle.Result, error) {
	log := logger.WithComponent("sched")
	log.Debugf("running cycle (trigger: %s)", trigger)
	if s.status != nil {
		s.status.SetRunning(true)
		defer s.status.SetRunning(false)
	}

	res, err := s.runner.Run(ctx)
	if s.status != nil {
		s.status.Record(trigger, res)
	}

	s.mu.Lock()
	s.publishNextRunLocked()
	s.mu.Unlock()

	if err != nil {
		log.Errorf("cycle failed (trigger: %s): %v", trigger, err)
	}
	return res, err
}

// NextRun returns the next scheduled time, or zero when not started.
func (s *CronScheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextRunLocked()
}

// nextRunLocked falls back to the parsed schedule until the cron loop has
// computed the entry's first activation.
func (s *CronScheduler) nextRunLocked() time.Time {
	if s.c == nil {
		return time.Time{}
	}
	if next := s.c.Entry(s.entry).Next; !next.IsZero() {
		return next
	}
	return s.sched.Next(time.Now().In(s.loc))
}

func (s *CronScheduler) publishNextRunLocked() {
	if s.status == nil || s.c == nil {
		return
	}
	s.status.SetNextRun(s.nextRunLocked())
}

// Spec returns the normalised cron expression.
func (s *CronScheduler) Spec() string {
	return s.spec
}

// Location returns the timezone the schedule is evaluated in.
func (s *CronScheduler) Location() *time.Location {
	return s.loc
}
