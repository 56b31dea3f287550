// Package logging provides the process-wide structured logger. Pipeline
// components attach themselves with WithComponent so every record carries
// the node that emitted it alongside the turn fields the agent adds.
package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	mu     sync.RWMutex
	shared *slog.Logger
)

// Logger returns the shared logger, building it on first use from:
//   - REGRAG_LOG_FORMAT: "json" (default) or "text"
//   - REGRAG_LOG_LEVEL:  debug|info|warn|error (default info)
func Logger() *slog.Logger {
	mu.RLock()
	l := shared
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if shared == nil {
		shared = build(os.Getenv("REGRAG_LOG_FORMAT"), os.Getenv("REGRAG_LOG_LEVEL"))
	}
	return shared
}

// SetLogger replaces the shared logger; mainly useful for tests.
func SetLogger(l *slog.Logger) {
	if l == nil {
		return
	}
	mu.Lock()
	shared = l
	mu.Unlock()
}

// WithComponent returns the shared logger tagged with a component field.
func WithComponent(component string) *slog.Logger {
	return Logger().With("component", component)
}

// ParseLevel maps a level name to its slog level, defaulting to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func build(format, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(strings.TrimSpace(format), "text") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler).With("service", "regrag")
}
