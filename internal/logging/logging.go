// Package logging configures the process-wide zerolog logger. Output is
// human-readable console by default and switches to JSON lines when
// SCRAPE_LOG_JSON=1, the toggle the deployment environment drives.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the root logger for a service binary. Every component derives
// its own logger from this one via log.With().Str(...).Logger().
func New(service string, jsonOutput bool) zerolog.Logger {
	var out io.Writer = os.Stdout
	if !jsonOutput {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).With().
		Timestamp().
		Str("service", service).
		Logger()
}
