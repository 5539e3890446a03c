// Package logging builds the structured logger used across greengate.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Options selects where and how much to log.
type Options struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string
	// File switches to JSON lines appended to this path.
	File string
	// Stderr receives text output when File is empty. Defaults to os.Stderr.
	Stderr io.Writer
}

// Logger is a slog.Logger that may own a log file.
type Logger struct {
	*slog.Logger

	mu   sync.Mutex
	file *os.File
}

// DefaultFile returns the debug log location inside a project root.
func DefaultFile(root string) string {
	return filepath.Join(root, ".greengate", "logs", "debug.log")
}

// ParseLevel converts a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

// New creates a logger. With a file it appends JSON records, creating parent
// directories as needed; otherwise it writes text to stderr.
func New(opts Options) (*Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	if opts.File == "" {
		w := opts.Stderr
		if w == nil {
			w = os.Stderr
		}
		return &Logger{Logger: slog.New(slog.NewTextHandler(w, handlerOpts))}, nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	l := &Logger{Logger: slog.New(slog.NewJSONHandler(f, handlerOpts)), file: f}
	l.Debug("debug log started")
	return l, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{Logger: slog.New(slog.DiscardHandler)}
}

// Close closes the log file. Safe to call on a logger without one.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
