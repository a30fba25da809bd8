// Package logging builds zerolog loggers for the binaries.
package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Supported log formats.
const (
	FormatPlain = "plain"
	FormatText  = "text"
	FormatJSON  = "json"
)

// NewConsoleWriter wraps w according to format. plain and text produce
// human-readable lines; json passes raw JSON through.
func NewConsoleWriter(w io.Writer, format string) (io.Writer, error) {
	switch strings.ToLower(format) {
	case FormatPlain, FormatText, "":
		return newConsoleWriter(w), nil

	case FormatJSON:
		return w, nil

	default:
		return nil, fmt.Errorf("unsupported log format: %s", format)
	}
}

func newConsoleWriter(w io.Writer) *zerolog.ConsoleWriter {
	return &zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
		FormatLevel: func(i interface{}) string {
			if ll, ok := i.(string); ok {
				return strings.ToUpper(ll)
			}
			return "????"
		},
	}
}

// New returns a timestamped logger writing to w in format at level.
func New(w io.Writer, format, level string) (zerolog.Logger, error) {
	out, err := NewConsoleWriter(w, format)
	if err != nil {
		return zerolog.Nop(), err
	}

	if level == "" {
		level = zerolog.InfoLevel.String()
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("parse log level: %w", err)
	}

	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}

// Module returns a child logger tagged with the component name.
func Module(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("module", name).Logger()
}
