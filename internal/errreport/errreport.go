// Package errreport forwards failures to Honeybadger when an API key is
// configured and does nothing otherwise.
package errreport

import (
	"os"
	"sync"

	honeybadger "github.com/honeybadger-io/honeybadger-go"

	"github.com/bassista/court_watch/internal/logger"
)

// Reporter receives failures worth surfacing outside the logs.
type Reporter interface {
	Report(err error, context map[string]any, tags ...string)
}

// Nop discards every report.
type Nop struct{}

func (Nop) Report(error, map[string]any, ...string) {}

// Honeybadger reports to honeybadger.io through the package-level client.
type Honeybadger struct {
	enabled bool
	notify  func(err any, extra ...any) (string, error)
}

var configureOnce sync.Once

// FromEnv configures reporting from HONEYBADGER_API_KEY and GO_ENV.
func FromEnv() *Honeybadger {
	return New(os.Getenv("HONEYBADGER_API_KEY"), os.Getenv("GO_ENV"))
}

// New returns a reporter; with an empty apiKey it is disabled.
func New(apiKey, env string) *Honeybadger {
	log := logger.WithComponent("errreport")
	if apiKey == "" {
		log.Info("Honeybadger is not active. To enable error reporting, set the HONEYBADGER_API_KEY environment variable.")
		return &Honeybadger{}
	}

	configureOnce.Do(func() {
		honeybadger.Configure(honeybadger.Configuration{
			APIKey: apiKey,
			Env:    env,
		})
	})
	log.Info("Honeybadger error reporting is enabled.")
	return &Honeybadger{enabled: true, notify: honeybadger.Notify}
}

// Enabled reports whether notices are actually sent.
func (h *Honeybadger) Enabled() bool {
	return h != nil && h.enabled
}

// Report sends err with optional context and tags.
func (h *Honeybadger) Report(err error, context map[string]any, tags ...string) {
	if !h.Enabled() || err == nil {
		return
	}
	h.Notice(err, context, tags...)
}

// Notice sends any value (error, message or recovered panic) as a notice.
func (h *Honeybadger) Notice(value any, context map[string]any, tags ...string) {
	if !h.Enabled() {
		return
	}
	extra := []any{}
	if len(context) > 0 {
		extra = append(extra, honeybadger.Context(context))
	}
	if len(tags) > 0 {
		extra = append(extra, honeybadger.Tags(tags))
	}
	if _, err := h.notify(value, extra...); err != nil {
		logger.WithComponent("errreport").Warnf("honeybadger notify failed: %v", err)
	}
}

// Flush waits for queued notices, used on shutdown.
func (h *Honeybadger) Flush() {
	if h.Enabled() {
		honeybadger.Flush()
	}
}
