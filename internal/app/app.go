package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/bassista/court_watch/internal/cache"
	"github.com/bassista/court_watch/internal/config"
	"github.com/bassista/court_watch/internal/cycle"
	"github.com/bassista/court_watch/internal/emitter"
	"github.com/bassista/court_watch/internal/errreport"
	"github.com/bassista/court_watch/internal/feed"
	"github.com/bassista/court_watch/internal/filter"
	"github.com/bassista/court_watch/internal/logger"
	"github.com/bassista/court_watch/internal/repository"
	"github.com/bassista/court_watch/internal/scheduler"
)

// Watcher is implemented by feed sources that can signal updates.
type Watcher interface {
	Watch(ctx context.Context, onChange func()) error
}

// App is the application container (immutable dependencies + lifecycle context).
// It is not a request context; handlers should still use gin's request context.
type App struct {
	Config    *config.Config
	Store     repository.SnapshotStore
	Fetcher   feed.Fetcher
	Runner    *cycle.Runner
	Status    cache.StatusStore
	Scheduler *scheduler.CronScheduler
	Reporter  *errreport.Honeybadger

	closer  io.Closer
	BaseCtx context.Context
	Cancel  context.CancelFunc
}

func New(cfg *config.Config, store repository.SnapshotStore, fetcher feed.Fetcher, runner *cycle.Runner, status cache.StatusStore) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if store == nil {
		return nil, errors.New("snapshot store is nil")
	}
	if fetcher == nil {
		return nil, errors.New("fetcher is nil")
	}
	if runner == nil {
		return nil, errors.New("cycle runner is nil")
	}
	if status == nil {
		return nil, errors.New("status store is nil")
	}

	loc, err := cfg.Misc.Location()
	if err != nil {
		return nil, fmt.Errorf("invalid schedule timezone: %w", err)
	}
	sched, err := scheduler.NewCronScheduler(runner, status, cfg.Misc.Schedule, loc)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		Config:    cfg,
		Store:     store,
		Fetcher:   fetcher,
		Runner:    runner,
		Status:    status,
		Scheduler: sched,
		BaseCtx:   ctx,
		Cancel:    cancel,
	}, nil
}

// Bootstrap builds every component from cfg. Notifications are written to out.
func Bootstrap(ctx context.Context, cfg *config.Config, out io.Writer) (*App, error) {
	store, closer, err := repository.NewStoreFromConfig(ctx, cfg.Store.Options())
	if err != nil {
		return nil, fmt.Errorf("cannot init snapshot store: %w", err)
	}

	fetcher, err := NewFetcher(cfg.Feed)
	if err != nil {
		_ = closer.Close()
		return nil, fmt.Errorf("cannot init fetcher: %w", err)
	}

	reporter := errreport.FromEnv()
	runner, err := NewRunner(cfg, store, fetcher, NewEmitter(cfg.Notify, out), reporter)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}

	a, err := New(cfg, store, fetcher, runner, cache.NewStore(time.Now()))
	if err != nil {
		_ = closer.Close()
		return nil, err
	}
	a.Reporter = reporter
	a.closer = closer
	return a, nil
}

// NewFetcher builds the configured feed source.
func NewFetcher(fc config.FeedConfig) (feed.Fetcher, error) {
	switch fc.Source {
	case "file":
		return feed.NewFileFetcher(fc.FilePath)
	case "http", "":
		opts := []feed.Option{
			feed.WithAttempts(fc.Attempts),
			feed.WithRetryDelay(fc.RetryDelay),
			feed.WithTimeout(fc.Timeout),
			feed.WithUserAgent(fc.UserAgent),
		}
		for k, v := range fc.Headers {
			opts = append(opts, feed.WithHeader(k, v))
		}
		return feed.NewHTTPFetcher(fc.URL, opts...)
	default:
		return nil, fmt.Errorf("unknown feed source: %s (supported: http, file)", fc.Source)
	}
}

// NewEmitter builds the console emitter with the configured colour mode.
func NewEmitter(nc config.NotifyConfig, out io.Writer) *emitter.ConsoleEmitter {
	switch nc.Color {
	case "always":
		return emitter.NewConsoleEmitter(out, emitter.WithColor(true))
	case "never":
		return emitter.NewConsoleEmitter(out, emitter.WithColor(false))
	default:
		return emitter.NewConsoleEmitter(out)
	}
}

// NewRunner compiles the notification filter and wires the cycle runner.
func NewRunner(cfg *config.Config, store repository.SnapshotStore, fetcher feed.Fetcher, emit emitter.Emitter, reporter errreport.Reporter) (*cycle.Runner, error) {
	f, err := filter.Compile(cfg.Notify.Filter)
	if err != nil {
		return nil, err
	}
	opts := []cycle.Option{cycle.WithFilter(f)}
	if reporter != nil {
		opts = append(opts, cycle.WithReporter(reporter))
	}
	return cycle.NewRunner(store, fetcher, emit, opts...)
}

// Shutdown cancels background work and releases the store backend.
func (a *App) Shutdown() {
	if a == nil || a.Cancel == nil {
		return
	}
	a.Cancel()
	if a.Scheduler != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutDownTimeout)
		a.Scheduler.Stop(ctx)
		cancel()
	}
	if a.closer != nil {
		if err := a.closer.Close(); err != nil {
			logger.WithComponent("app").Warnf("close snapshot store: %v", err)
		}
	}
	a.Reporter.Flush()
}

// StartWatchers starts the cron scheduler, the optional startup cycle and the
// feed file watcher.
func (a *App) StartWatchers() error {
	log := logger.WithComponent("app")

	if a.Config.Server.SchedulerEnabled {
		if err := a.Scheduler.Start(a.BaseCtx); err != nil {
			return fmt.Errorf("cannot start scheduler: %w", err)
		}
		log.Infof("scheduler started: %q (%s)", a.Scheduler.Spec(), a.Scheduler.Location())
	}

	if a.Config.Server.RunOnStart {
		go a.trigger(scheduler.TriggerStartup)
	}

	if w, ok := a.Fetcher.(Watcher); ok && a.Config.Feed.Watch {
		// A change seen mid-cycle is queued so the new file is not left for the next tick.
		if err := w.Watch(a.BaseCtx, func() { a.Scheduler.Queue(a.BaseCtx, scheduler.TriggerWatch) }); err != nil {
			return fmt.Errorf("cannot start feed file watcher: %w", err)
		}
	}
	return nil
}

func (a *App) trigger(name string) {
	if _, err := a.Scheduler.Trigger(a.BaseCtx, name); errors.Is(err, scheduler.ErrCycleInProgress) {
		logger.WithComponent("app").Debugf("%s trigger skipped: cycle in progress", name)
	}
}
