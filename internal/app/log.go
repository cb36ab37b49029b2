package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// LogFileName is the diagnostics log inside the configured log dir.
const LogFileName = "lockbyte.log"

// runIDKey is the attribute the batch engine tags its records with. The
// handler lifts it into its own column.
const runIDKey = "run_id"

// sink is one destination with its own minimum level.
type sink struct {
	w   io.Writer
	min slog.Level
}

// lockbyteHandler is a custom slog.Handler that formats log records as:
//
//	<timestamp>\t<level>\t<run id>\t<message>\t<key=value ...>
type lockbyteHandler struct {
	mu    *sync.Mutex
	sinks []sink
	attrs []slog.Attr
}

func newHandler(sinks ...sink) *lockbyteHandler {
	return &lockbyteHandler{mu: &sync.Mutex{}, sinks: sinks}
}

func (h *lockbyteHandler) Enabled(_ context.Context, level slog.Level) bool {
	for _, s := range h.sinks {
		if level >= s.min {
			return true
		}
	}
	return false
}

func (h *lockbyteHandler) Handle(_ context.Context, r slog.Record) error {
	runID := "-"
	var fields []slog.Attr
	collect := func(a slog.Attr) bool {
		if a.Key == runIDKey {
			runID = a.Value.String()
			return true
		}
		fields = append(fields, a)
		return true
	}
	for _, a := range h.attrs {
		collect(a)
	}
	r.Attrs(collect)

	line := fmt.Sprintf("%s\t%s\t%s\t%s", r.Time.UTC().Format("2006-01-02T15:04:05Z"), r.Level, runID, r.Message)
	for _, a := range fields {
		line += fmt.Sprintf("\t%s=%v", a.Key, a.Value)
	}
	line += "\n"

	h.mu.Lock()
	defer h.mu.Unlock()
	var firstErr error
	for _, s := range h.sinks {
		if r.Level < s.min {
			continue
		}
		if _, err := io.WriteString(s.w, line); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *lockbyteHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &lockbyteHandler{
		mu:    h.mu,
		sinks: h.sinks,
		attrs: append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

func (h *lockbyteHandler) WithGroup(string) slog.Handler { return h }

// newLogger creates a structured logger that writes everything to
// logDir/lockbyte.log and records at stderrLevel or above to stderr.
// It returns the slog.Logger, the open log file (for cleanup), and any error.
func newLogger(logDir string, stderr io.Writer, stderrLevel slog.Level) (*slog.Logger, *os.File, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	logPath := filepath.Join(logDir, LogFileName)
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	sinks := []sink{{w: f, min: slog.LevelDebug}}
	if stderr != nil {
		sinks = append(sinks, sink{w: stderr, min: stderrLevel})
	}
	return slog.New(newHandler(sinks...)), f, nil
}

// slogAdapter wraps *slog.Logger to satisfy the lockbyte.Logger interface.
type slogAdapter struct {
	l *slog.Logger
}

func (a *slogAdapter) Debug(msg string, args ...any) { a.l.Debug(msg, args...) }
func (a *slogAdapter) Info(msg string, args ...any)  { a.l.Info(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.l.Warn(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }
