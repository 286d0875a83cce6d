// Package logging builds the daemon's zerolog logger.
package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/diode"
)

// Formats accepted by New.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// bufferedLines is how many log lines NonBlocking holds before dropping.
const bufferedLines = 1000

// NonBlocking wraps w so that logging never waits on it. Edge callbacks log
// through it. Lines are dropped while the buffer is full and the number lost
// is reported once it drains. Close flushes what is buffered.
func NonBlocking(w io.Writer) diode.Writer {
	return diode.NewWriter(w, bufferedLines, 10*time.Millisecond, func(missed int) {
		fmt.Fprintf(w, "logging: dropped %d messages\n", missed)
	})
}

// New returns a logger writing to w at the given level ("debug", "info",
// "warn", "error"; empty means info).
func New(w io.Writer, level, format string) (zerolog.Logger, error) {
	lvl := zerolog.InfoLevel
	if level != "" {
		var err error
		lvl, err = zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("log level: %w", err)
		}
	}

	var out io.Writer
	switch format {
	case "", FormatConsole:
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	case FormatJSON:
		out = w
	default:
		return zerolog.Nop(), fmt.Errorf("log format %q: want %s or %s", format, FormatConsole, FormatJSON)
	}

	return zerolog.New(out).Level(lvl).With().Timestamp().Str("app", "hc-receiver").Logger(), nil
}
