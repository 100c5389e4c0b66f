// Package logger builds the zerolog loggers shared by the fae packages.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Options controls how log output is rendered.
type Options struct {
	// Level is one of debug, info, warn, error. Unknown values fall back to info.
	Level string

	// JSON switches from the human readable console writer to raw JSON lines.
	JSON bool

	// Writer defaults to os.Stderr.
	Writer io.Writer
}

// New creates a timestamped logger according to opts.
func New(opts Options) zerolog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	if !opts.JSON {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}

	return zerolog.New(w).
		Level(ParseLevel(opts.Level)).
		With().
		Timestamp().
		Logger()
}

// ParseLevel maps a config level name to a zerolog level.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Component tags every event of l with the component name.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}
