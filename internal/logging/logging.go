// Package logging builds the zerolog loggers used across the service.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a timestamped logger writing JSON to w at the given level.
// In dev mode output is rendered for the console.
func New(w io.Writer, level zerolog.Level, dev bool) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	if dev {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
