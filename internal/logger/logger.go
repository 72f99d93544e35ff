// Package logger configures the process-wide slog logger.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/lmittmann/tint"
	"golang.org/x/term"

	"github.com/iliyamo/repairdesk/internal/config"
)

var (
	mu     sync.RWMutex
	logger *slog.Logger
	level  = new(slog.LevelVar)
)

// Init builds the logger described by cfg and installs it as the slog
// default.  Text output goes through tint and is coloured only on terminals.
func Init(cfg config.LogConfig) error {
	level.Set(ParseLevel(cfg.Level))

	var w io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stdout":
		w = os.Stdout
	case "stderr", "":
		w = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		w = f
	}

	l := New(w, cfg.Format)
	mu.Lock()
	logger = l
	mu.Unlock()
	slog.SetDefault(l)
	return nil
}

// New returns a logger writing to w in the given format ("json" or text)
// at the package level.
func New(w io.Writer, format string) *slog.Logger {
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.DateTime,
		NoColor:    !isTerminal(w),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == "error" && a.Value.Kind() == slog.KindAny {
				if err, ok := a.Value.Any().(error); ok {
					return tint.Err(err)
				}
			}
			return a
		},
	}))
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// SetLevel changes the level of every logger created by this package.
func SetLevel(l slog.Level) { level.Set(l) }

// Get returns the configured logger, creating a stderr text logger on first
// use when Init has not been called.
func Get() *slog.Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l != nil {
		return l
	}
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		logger = New(os.Stderr, "text")
	}
	return logger
}

// WithComponent returns a child logger tagged with the component name.
func WithComponent(component string) *slog.Logger {
	return Get().With("component", component)
}

func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}
