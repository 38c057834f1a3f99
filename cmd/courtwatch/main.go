package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	appctx "github.com/bassista/court_watch/internal/app"
	"github.com/bassista/court_watch/internal/config"
	"github.com/bassista/court_watch/internal/cycle"
	"github.com/bassista/court_watch/internal/logger"
)

const (
	exitOK          = 0
	exitFetchFailed = 1
	exitSetup       = 2
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithComponent("main").Errorf("configuration error: %v", err)
		os.Exit(exitSetup)
	}
	logger.Configure(cfg.Misc.LogLevel, cfg.Misc.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, cfg, os.Stdout)
	stop()
	os.Exit(code)
}

// run executes exactly one cycle and maps its outcome to an exit code.
// Emit and save failures are logged by the cycle and do not fail the run.
func run(ctx context.Context, cfg *config.Config, out io.Writer) int {
	log := logger.WithComponent("main")

	app, err := appctx.Bootstrap(ctx, cfg, out)
	if err != nil {
		log.Errorf("cannot init app: %v", err)
		return exitSetup
	}
	defer app.Shutdown()

	res, err := app.Runner.Run(ctx)
	if err != nil {
		if errors.Is(err, cycle.ErrFetchFailed) {
			log.Errorf("cycle aborted: %v", err)
			return exitFetchFailed
		}
		log.Errorf("cycle failed: %v", err)
		return exitSetup
	}

	log.Infof("cycle %s done in %s: %d slots, %d changes", res.CycleID, res.Duration(), res.SlotCount, len(res.Changes))
	return exitOK
}
