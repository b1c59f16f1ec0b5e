// Package logging builds the console logger shared by the command and the
// batch runner.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New creates a console logger on stderr. verbose enables debug output and
// quiet restricts output to warnings and errors; quiet wins when both are set.
func New(verbose, quiet bool) zerolog.Logger {
	return NewWithWriter(os.Stderr, verbose, quiet)
}

// NewWithWriter is New writing to w.
func NewWithWriter(w io.Writer, verbose, quiet bool) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).
		Level(Level(verbose, quiet)).
		With().
		Timestamp().
		Logger()
}

// Level maps the verbosity switches to a zerolog level.
func Level(verbose, quiet bool) zerolog.Level {
	switch {
	case quiet:
		return zerolog.WarnLevel
	case verbose:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}
