package logger

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var Logger *logrus.Logger

func init() {
	Logger = logrus.New()
	Logger.SetOutput(os.Stdout)
	Logger.SetFormatter(formatterFor(os.Getenv("LOG_FORMAT")))

	// Default level
	Logger.SetLevel(logrus.InfoLevel)

	// Override from env, e.g., LOG_LEVEL=debug
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		if parsedLevel, err := logrus.ParseLevel(strings.ToLower(level)); err == nil {
			Logger.SetLevel(parsedLevel)
		}
	}
}

// Configure applies level and format from configuration.
// An invalid level keeps the current one and is reported as a warning.
func Configure(level, format string) {
	if level != "" {
		parsed, err := logrus.ParseLevel(strings.ToLower(level))
		if err != nil {
			WithComponent("logger").Warnf("invalid log level '%s', keeping '%s': %v", level, Logger.GetLevel(), err)
		} else {
			Logger.SetLevel(parsed)
		}
	}
	if format != "" {
		Logger.SetFormatter(formatterFor(format))
	}
}

func formatterFor(format string) logrus.Formatter {
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return &logrus.JSONFormatter{}
	}
	return &logrus.TextFormatter{FullTimestamp: true}
}

// WithComponent adds a component field to the logger
func WithComponent(component string) *logrus.Entry {
	return Logger.WithField("component", component)
}

// WithCycle tags an entry with the component and the cycle it belongs to.
func WithCycle(component, cycleID string) *logrus.Entry {
	return Logger.WithFields(logrus.Fields{"component": component, "cycle_id": cycleID})
}
