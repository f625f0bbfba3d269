// Package logging builds the process logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/lmittmann/tint"

	"github.com/saviobatista/bike-logger/internal/config"
)

// Lifecycle event names, logged under the "event" key
const (
	EventStartupBegin     = "startup_begin"
	EventStartupSuccess   = "startup_success"
	EventIngestSuccess    = "ingest_success"
	EventIngestFailed     = "ingest_failed"
	EventSnapshotGap      = "snapshot_gap"
	EventSyncFailed       = "sync_failed"
	EventViewsRefreshed   = "views_refreshed"
	EventShuttingDown     = "shutting_down"
	EventShutdownComplete = "shutdown_complete"
	EventCrashed          = "crashed"
)

// Options controls handler construction
type Options struct {
	Format   string
	Level    string
	Service  string
	Env      string
	Instance string
	RunID    string
}

// NewRunID returns a fresh identifier for this process run
func NewRunID() string {
	return uuid.NewString()
}

// FromConfig derives logger options from the loaded configuration
func FromConfig(cfg *config.Config, runID string) Options {
	instance, err := os.Hostname()
	if err != nil {
		instance = "unknown"
	}
	return Options{
		Format:   cfg.LogFormat,
		Level:    cfg.LogLevel,
		Service:  cfg.ServiceName,
		Env:      cfg.Env,
		Instance: instance,
		RunID:    runID,
	}
}

// New returns a logger writing to stdout
func New(opts Options) *slog.Logger {
	return NewWithWriter(os.Stdout, opts)
}

// NewWithWriter returns a logger writing to w with the base attributes set
func NewWithWriter(w io.Writer, opts Options) *slog.Logger {
	level := ParseLevel(opts.Level)

	var handler slog.Handler
	if opts.Format == "text" {
		handler = tint.NewHandler(w, &tint.Options{
			Level:       level,
			TimeFormat:  "2006-01-02T15:04:05.000Z07:00",
			ReplaceAttr: replaceTime,
		})
	} else {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:       level,
			ReplaceAttr: replaceTime,
		})
	}

	return slog.New(handler).With(
		"service", opts.Service,
		"env", opts.Env,
		"instance", opts.Instance,
		"run_id", opts.RunID,
	)
}

// ParseLevel maps a level name to a slog level, defaulting to info
func ParseLevel(s string) slog.Level {
	switch s {
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

// Discard returns a logger that drops everything. Used when no logger is injected.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func replaceTime(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey && len(groups) == 0 {
		a.Value = slog.StringValue(FormatRFC3339Millis(a.Value.Time()))
	}
	return a
}

// FormatRFC3339Millis formats t in UTC with millisecond precision
func FormatRFC3339Millis(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%s.%03dZ", t.Format("2006-01-02T15:04:05"), t.Nanosecond()/1_000_000)
}
