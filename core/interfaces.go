package core

import (
	"context"
	"time"
)

// Codec renders one derivative: decode src, apply resize (nil keeps the
// original dimensions) and encode with the format options.
// Implementations live in adapters/vips and adapters/imaging.
type Codec interface {
	Render(ctx context.Context, src []byte, resize *ResizeSpec, format FormatSpec) ([]byte, error)
}

// Backend persists and removes artifacts for one destination kind.
// Implementations live in adapters/storage.
type Backend interface {
	Kind() BackendKind
	Save(ctx context.Context, d StorageDescriptor, data []byte) (SaveOutcome, error)
	Delete(ctx context.Context, d StorageDescriptor) error
}

// DirectoryCache remembers which destination directories already exist.
// Ensure must call create at most once per key for the cache's lifetime.
type DirectoryCache interface {
	Ensure(ctx context.Context, dir string, create func(dir string) error) error
}

// ResponseChannel is the caller's open response for stream destinations.
type ResponseChannel interface {
	// Committed reports whether headers or body have already been sent.
	Committed() bool
	Write(contentType string, data []byte) error
}

// Recorder keeps a durable account of requests and their artifacts.
type Recorder interface {
	Begin(ctx context.Context, requestID string, req *Request) error
	Artifact(ctx context.Context, requestID string, o SaveOutcome) error
	Deleted(ctx context.Context, requestID string, d StorageDescriptor, err error) error
	Finish(ctx context.Context, requestID string, err error) error
}

// MetricsCollector receives performance observations from the pipeline.
type MetricsCollector interface {
	RecordTaskTime(format string, d time.Duration)
	RecordBytesWritten(kind string, bytes int64)
	RecordError(stage string, kind string)
}

// Logger is a minimal structured logging interface.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// Hook is an optional observer invoked around each derivative task.
type Hook interface {
	BeforeTask(ctx context.Context, t DerivativeTask)
	AfterTask(ctx context.Context, o TaskOutcome, d time.Duration)
}
