// Package hooks provides production-ready Hook, Logger and metrics implementations.
package hooks

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/frankii91/sharp-web-resizing-images/core"
)

// ── Structured logger adapter ─────────────────────────────────────────────────

// SlogLogger wraps the standard library slog.Logger to satisfy core.Logger.
type SlogLogger struct {
	log *slog.Logger
}

// NewSlogLogger creates a logger backed by slog.
func NewSlogLogger(l *slog.Logger) *SlogLogger { return &SlogLogger{log: l} }

func (s *SlogLogger) Debug(msg string, fields ...interface{}) {
	s.log.Debug(msg, fields...)
}
func (s *SlogLogger) Info(msg string, fields ...interface{}) {
	s.log.Info(msg, fields...)
}
func (s *SlogLogger) Warn(msg string, fields ...interface{}) {
	s.log.Warn(msg, fields...)
}
func (s *SlogLogger) Error(msg string, fields ...interface{}) {
	s.log.Error(msg, fields...)
}

// ParseLevel maps a config level name to a slog.Level; unknown names give info.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// ── Logging hook ──────────────────────────────────────────────────────────────

// LoggingHook logs before/after each derivative task.
type LoggingHook struct {
	logger core.Logger
}

// NewLoggingHook creates a LoggingHook.
func NewLoggingHook(l core.Logger) *LoggingHook { return &LoggingHook{logger: l} }

func (h *LoggingHook) BeforeTask(_ context.Context, t core.DerivativeTask) {
	h.logger.Debug("pipeline.task.start",
		"task", t.Index,
		"file", t.Filename,
		"format", t.Format,
		"size", t.Resize.Size(),
	)
}

func (h *LoggingHook) AfterTask(_ context.Context, o core.TaskOutcome, d time.Duration) {
	if o.Err != nil {
		h.logger.Error("pipeline.task.error",
			"task", o.Task.Index,
			"file", o.Task.Filename,
			"duration_ms", d.Milliseconds(),
			"error", o.Err.Error(),
		)
		return
	}
	h.logger.Debug("pipeline.task.done",
		"task", o.Task.Index,
		"file", o.Task.Filename,
		"status", o.Save.Status,
		"bytes", o.Save.Bytes,
		"duration_ms", d.Milliseconds(),
	)
}

// ── In-memory metrics collector ───────────────────────────────────────────────

// InMemoryMetrics accumulates metrics atomically; safe for concurrent use.
type InMemoryMetrics struct {
	mu sync.RWMutex

	taskDurationsMs map[string]int64 // cumulative ms per format
	taskCalls       map[string]int64 // call count per format
	errors          map[string]int64 // keyed "stage/kind"
	bytesWritten    map[string]int64 // per backend kind

	totalBytes int64
}

// NewInMemoryMetrics creates an empty metrics store.
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{
		taskDurationsMs: make(map[string]int64),
		taskCalls:       make(map[string]int64),
		errors:          make(map[string]int64),
		bytesWritten:    make(map[string]int64),
	}
}

func (m *InMemoryMetrics) RecordTaskTime(format string, d time.Duration) {
	m.mu.Lock()
	m.taskDurationsMs[format] += d.Milliseconds()
	m.taskCalls[format]++
	m.mu.Unlock()
}

func (m *InMemoryMetrics) RecordBytesWritten(kind string, bytes int64) {
	atomic.AddInt64(&m.totalBytes, bytes)
	m.mu.Lock()
	m.bytesWritten[kind] += bytes
	m.mu.Unlock()
}

func (m *InMemoryMetrics) RecordError(stage string, kind string) {
	m.mu.Lock()
	m.errors[stage+"/"+kind]++
	m.mu.Unlock()
}

// Snapshot returns a copy of current metrics.
func (m *InMemoryMetrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return MetricsSnapshot{
		TaskDurationsMs: copyCounts(m.taskDurationsMs),
		TaskCalls:       copyCounts(m.taskCalls),
		Errors:          copyCounts(m.errors),
		BytesWritten:    copyCounts(m.bytesWritten),
		TotalBytes:      atomic.LoadInt64(&m.totalBytes),
	}
}

func copyCounts(src map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// MetricsSnapshot is an immutable point-in-time copy of metrics.
type MetricsSnapshot struct {
	TaskDurationsMs map[string]int64 `json:"taskDurationsMs"`
	TaskCalls       map[string]int64 `json:"taskCalls"`
	Errors          map[string]int64 `json:"errors"`
	BytesWritten    map[string]int64 `json:"bytesWritten"`
	TotalBytes      int64            `json:"totalBytes"`
}

// ── Metrics hook ──────────────────────────────────────────────────────────────

// MetricsHook feeds task events into a MetricsCollector.
type MetricsHook struct {
	collector core.MetricsCollector
}

// NewMetricsHook creates a MetricsHook.
func NewMetricsHook(c core.MetricsCollector) *MetricsHook { return &MetricsHook{collector: c} }

func (h *MetricsHook) BeforeTask(_ context.Context, _ core.DerivativeTask) {}

func (h *MetricsHook) AfterTask(_ context.Context, o core.TaskOutcome, d time.Duration) {
	h.collector.RecordTaskTime(string(o.Task.Format), d)
	if o.Err != nil {
		h.collector.RecordError("task", string(o.Task.Format))
	}
}

var (
	_ core.Logger           = (*SlogLogger)(nil)
	_ core.Hook             = (*LoggingHook)(nil)
	_ core.Hook             = (*MetricsHook)(nil)
	_ core.MetricsCollector = (*InMemoryMetrics)(nil)
)
