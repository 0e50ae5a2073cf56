// Package util holds small process helpers shared by the binaries.
package util

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the process logger. Unknown levels fall back to info; pretty
// switches to the human-readable console writer.
func NewLogger(level string, pretty bool) zerolog.Logger {
	return newLogger(os.Stdout, level, pretty)
}

func newLogger(w io.Writer, level string, pretty bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}
	return zerolog.New(w).With().Timestamp().Logger().Level(lvl)
}

// Component tags a child logger with the emitting component name.
func Component(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
