package storage

import (
	"context"
	"sync"

	"github.com/frankii91/sharp-web-resizing-images/core"
)

// Manager routes saves and deletes to the backend named by each
// descriptor's kind. It is shared by all requests.
type Manager struct {
	registry *core.BackendRegistry
	logger   core.Logger
	metrics  core.MetricsCollector
}

// NewManager creates a Manager over the durable backends. The stream
// backend is bound per request by Session.
func NewManager(backends ...core.Backend) *Manager {
	return &Manager{
		registry: core.NewRegistry(backends...),
		logger:   core.NopLogger{},
		metrics:  core.NopMetrics{},
	}
}

// SetLogger attaches a structured logger.
func (m *Manager) SetLogger(l core.Logger) { m.logger = l }

// SetMetrics attaches a metrics collector.
func (m *Manager) SetMetrics(c core.MetricsCollector) { m.metrics = c }

// Register adds or replaces a durable backend.
func (m *Manager) Register(b core.Backend) { m.registry.Register(b) }

// Backend returns the durable backend for kind.
func (m *Manager) Backend(kind core.BackendKind) (core.Backend, error) {
	return m.registry.Lookup(kind)
}

// Delete removes an artifact outside any request, e.g. during reconciliation.
func (m *Manager) Delete(ctx context.Context, d core.StorageDescriptor) error {
	b, err := m.registry.Lookup(d.Kind)
	if err != nil {
		return err
	}
	return b.Delete(ctx, d)
}

// Kinds lists the configured durable destinations.
func (m *Manager) Kinds() []core.BackendKind { return m.registry.Kinds() }

// Session starts the storage scope of one request. When buffered is set,
// saves to durable backends are held in memory until Flush. out is the
// response channel used by stream descriptors; it may be nil otherwise.
func (m *Manager) Session(requestID string, buffered bool, out core.ResponseChannel) *Session {
	return &Session{
		manager:   m,
		requestID: requestID,
		buffered:  buffered,
		stream:    NewStream(out),
	}
}

// BufferedItem is one deferred write.
type BufferedItem struct {
	Descriptor core.StorageDescriptor
	Data       []byte
}

// FlushResult is the outcome of one deferred write.
type FlushResult struct {
	Descriptor core.StorageDescriptor
	Outcome    core.SaveOutcome
	Err        error
}

// Session is request-scoped: it owns the multi-save buffer and the stream
// binding. Safe for concurrent use by the request's tasks.
type Session struct {
	manager   *Manager
	requestID string
	buffered  bool
	stream    *Stream

	mu     sync.Mutex
	buffer []BufferedItem
}

func (s *Session) backend(kind core.BackendKind) (core.Backend, error) {
	if kind == core.BackendStream {
		return s.stream, nil
	}
	return s.manager.registry.Lookup(kind)
}

// Save persists data, buffers it, or streams it depending on d.Kind and the
// session mode.
func (s *Session) Save(ctx context.Context, d core.StorageDescriptor, data []byte) (core.SaveOutcome, error) {
	b, err := s.backend(d.Kind)
	if err != nil {
		return core.SaveOutcome{Status: core.StatusError, Kind: d.Kind, Dir: d.Dir, File: d.File}, err
	}

	if s.buffered && d.Kind != core.BackendStream {
		s.mu.Lock()
		s.buffer = append(s.buffer, BufferedItem{Descriptor: d, Data: data})
		n := len(s.buffer)
		s.mu.Unlock()
		s.manager.logger.Debug("storage.queued", "request_id", s.requestID, "kind", d.Kind, "file", d.File, "pending", n)
		return core.SaveOutcome{Status: core.StatusQueued, Kind: d.Kind, Dir: d.Dir, File: d.File, Bytes: len(data)}, nil
	}

	out, err := b.Save(ctx, d, data)
	if err != nil {
		out.Status = core.StatusError
		out.Kind, out.Dir, out.File = d.Kind, d.Dir, d.File
		s.manager.metrics.RecordError("save", string(d.Kind))
		return out, err
	}
	if out.Status == core.StatusOK {
		s.manager.metrics.RecordBytesWritten(string(d.Kind), int64(out.Bytes))
	}
	s.manager.logger.Debug("storage.saved", "request_id", s.requestID, "kind", d.Kind,
		"dir", d.Dir, "file", d.File, "status", out.Status, "bytes", out.Bytes)
	return out, nil
}

// Delete removes the artifact addressed by d.
func (s *Session) Delete(ctx context.Context, d core.StorageDescriptor) error {
	b, err := s.backend(d.Kind)
	if err != nil {
		return err
	}
	return b.Delete(ctx, d)
}

// Pending returns a copy of the buffered writes.
func (s *Session) Pending() []BufferedItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]BufferedItem(nil), s.buffer...)
}

// Discard drops the buffered writes without performing them.
func (s *Session) Discard() {
	s.mu.Lock()
	s.buffer = nil
	s.mu.Unlock()
}

// Flush performs the buffered writes in the order they were queued and
// empties the buffer. Every item is attempted.
func (s *Session) Flush(ctx context.Context) []FlushResult {
	s.mu.Lock()
	items := s.buffer
	s.buffer = nil
	s.mu.Unlock()

	results := make([]FlushResult, 0, len(items))
	for _, it := range items {
		r := FlushResult{Descriptor: it.Descriptor}
		b, err := s.backend(it.Descriptor.Kind)
		if err == nil {
			r.Outcome, err = b.Save(ctx, it.Descriptor, it.Data)
		}
		if err != nil {
			r.Err = err
			r.Outcome.Status = core.StatusError
			s.manager.metrics.RecordError("flush", string(it.Descriptor.Kind))
			s.manager.logger.Warn("storage.flush.failed", "request_id", s.requestID,
				"kind", it.Descriptor.Kind, "file", it.Descriptor.File, "error", err.Error())
		} else {
			s.manager.metrics.RecordBytesWritten(string(it.Descriptor.Kind), int64(r.Outcome.Bytes))
		}
		results = append(results, r)
	}
	return results
}
