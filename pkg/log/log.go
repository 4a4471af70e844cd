// Package log provides a thin, package-scoped wrapper around zerolog so
// that every subsystem logs through the same console/JSON writer and the
// same global level.
package log

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Logger is a named zerolog.Logger; the chained .Debug()/.Info()/...
// builder API of zerolog is used directly by callers.
type Logger = zerolog.Logger

var (
	mu     sync.Mutex
	level  = zerolog.InfoLevel
	pretty = true
	out    io.Writer = os.Stderr
)

func init() {
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339
}

// Configure sets the global minimum level and output mode. json=false uses
// zerolog's human-readable console writer (development); json=true emits
// newline-delimited JSON (production). Loggers already returned by
// NewLogger keep the writer and level they were created with: for them
// Configure can raise the minimum level but not lower it, and does not
// change the output mode.
func Configure(levelName string, json bool) {
	mu.Lock()
	defer mu.Unlock()

	if lvl, err := zerolog.ParseLevel(strings.ToLower(levelName)); err == nil {
		level = lvl
	}
	zerolog.SetGlobalLevel(level)

	pretty = !json
	if pretty {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	} else {
		out = os.Stderr
	}
}

// NewLogger returns a Logger tagged with a "component" field, matching the
// `logger = log.NewLogger(Name)` idiom used throughout this codebase.
func NewLogger(component string) *Logger {
	mu.Lock()
	w := out
	mu.Unlock()

	l := zerolog.New(w).With().Timestamp().Str("component", component).Logger()
	l = l.Level(level)
	return &l
}
