package core

import (
	"context"
	"time"
)

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{}) {}
func (NopLogger) Warn(string, ...interface{}) {}
func (NopLogger) Error(string, ...interface{}) {}

// NopMetrics discards every observation.
type NopMetrics struct{}

func (NopMetrics) RecordTaskTime(string, time.Duration) {}
func (NopMetrics) RecordBytesWritten(string, int64) {}
func (NopMetrics) RecordError(string, string) {}

// NopRecorder is used when the ledger is disabled.
type NopRecorder struct{}

func (NopRecorder) Begin(context.Context, string, *Request) error { return nil }
func (NopRecorder) Artifact(context.Context, string, SaveOutcome) error { return nil }
func (NopRecorder) Deleted(context.Context, string, StorageDescriptor, error) error { return nil }
func (NopRecorder) Finish(context.Context, string, error) error { return nil }

var (
	_ Logger           = NopLogger{}
	_ MetricsCollector = NopMetrics{}
	_ Recorder         = NopRecorder{}
)
