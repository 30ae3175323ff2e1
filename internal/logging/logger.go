// Package logging builds the zerolog logger shared by every binary.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New returns a JSON logger, or a console logger when dev is set. Unknown
// levels fall back to info.
func New(service string, dev bool, level string) zerolog.Logger {
	return newLogger(output(os.Stdout, dev), service, level)
}

func output(w io.Writer, dev bool) io.Writer {
	if dev {
		return zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return w
}

func newLogger(out io.Writer, service, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(out).
		Level(lvl).
		With().
		Timestamp().
		Str("service", service).
		Logger()
}
