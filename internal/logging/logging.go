// Package logging sets up the process-wide structured logger and hands
// out named sub-loggers per subsystem (spec.md §4.9 expansion).
package logging

import (
	"os"

	"github.com/charmbracelet/log"
)

// New builds the root logger, matching vovakirdan's
// log.NewWithOptions(os.Stderr, log.Options{...}) setup.
func New(debug bool) *log.Logger {
	level := log.InfoLevel
	if debug {
		level = log.DebugLevel
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "pacserver",
		Level:           level,
	})
}

// Component returns a sub-logger tagged with the given subsystem name, so
// a single process's logs can be filtered per component or per room.
func Component(logger *log.Logger, name string) *log.Logger {
	return logger.With("component", name)
}
