package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/enrichman/httpgrace"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	route "github.com/bassista/court_watch/internal/api/route"
	appctx "github.com/bassista/court_watch/internal/app"
	"github.com/bassista/court_watch/internal/config"
	"github.com/bassista/court_watch/internal/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithComponent("main").Fatalf("configuration error: %v", err)
	}

	logger.Configure(cfg.Misc.LogLevel, cfg.Misc.LogFormat)
	logger.WithComponent("main").Debugf("log level set to: %s", logger.Logger.GetLevel().String())
	logger.WithComponent("main").Infof("App will run on port: %d", cfg.Server.Port)

	// notifications go to stdout next to the logs; the markers keep them extractable
	app, err := appctx.Bootstrap(context.Background(), cfg, logger.Logger.Out)
	if err != nil {
		logger.WithComponent("main").Fatalf("cannot init app: %v", err)
	}

	if err := app.StartWatchers(); err != nil {
		app.Shutdown()
		logger.WithComponent("main").Fatalf("cannot start watchers: %v", err)
	}

	gin.SetMode(cfg.Misc.GinMode)
	gin.DefaultWriter = logger.Logger.Writer()
	gin.DefaultErrorWriter = logger.Logger.Writer()

	r := route.SetupRoutes(app, logger.Logger)
	srv := createGraceHttpServer(app.BaseCtx, "main-server", app.Config.Server, r)

	g, gctx := errgroup.WithContext(app.BaseCtx)
	g.Go(func() error {
		// cancelling the base context stops the watchdog once the server is gone
		defer app.Cancel()
		if err := srv.ListenAndServe(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return systemdWatchdog(gctx)
	})

	sdNotify(daemon.SdNotifyReady)

	err = g.Wait()
	app.Shutdown()
	if err != nil {
		logger.WithComponent("main").Fatal(err)
	}
}

// sdNotify is a no-op when not started by systemd.
func sdNotify(state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		logger.WithComponent("systemd").Warnf("sd_notify %q failed: %v", state, err)
		return
	}
	if sent {
		logger.WithComponent("systemd").Debugf("sd_notify %q sent", state)
	}
}

// systemdWatchdog pings the watchdog at half the configured interval until ctx ends.
func systemdWatchdog(ctx context.Context) error {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		return fmt.Errorf("systemd watchdog: %w", err)
	}
	if interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			sdNotify(daemon.SdNotifyWatchdog)
		}
	}
}

func createGraceHttpServer(ctx context.Context, name string, serverConfig config.ServerConfig, r *gin.Engine) *httpgrace.Server {
	slogLogger := slog.New(slog.NewTextHandler(logger.Logger.Writer(), nil))

	srv := httpgrace.NewServer(r,
		httpgrace.WithTimeout(serverConfig.ShutDownTimeout),
		httpgrace.WithSignals(syscall.SIGTERM, syscall.SIGINT),
		httpgrace.WithLogger(slogLogger),
		httpgrace.WithBeforeShutdown(func() {
			sdNotify(daemon.SdNotifyStopping)
			logger.WithComponent("http").Infof("Shutting down %s server....", name)
		}),
		httpgrace.WithServerOptions(
			httpgrace.WithReadTimeout(serverConfig.ReadTimeout),
			httpgrace.WithWriteTimeout(serverConfig.WriteTimeout),
			httpgrace.WithIdleTimeout(serverConfig.IdleTimeout),
			func(srv *http.Server) {
				srv.BaseContext = func(_ net.Listener) context.Context {
					return ctx
				}
			},
			func(srv *http.Server) {
				srv.ErrorLog = log.New(logger.Logger.Writer(), fmt.Sprintf("[%s] ", name), log.LstdFlags)
			},
		),
	)
	return srv
}
