// Package imageprocessor is the entry point of the resizing service: it
// validates a request, loads its source and fans the derivatives out to
// storage.
package imageprocessor

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/frankii91/sharp-web-resizing-images/adapters/storage"
	"github.com/frankii91/sharp-web-resizing-images/config"
	"github.com/frankii91/sharp-web-resizing-images/core"
	"github.com/frankii91/sharp-web-resizing-images/loader"
	"github.com/frankii91/sharp-web-resizing-images/params"
	"github.com/frankii91/sharp-web-resizing-images/pipeline"
)

// DefaultConfig returns a sensible production configuration.
func DefaultConfig() config.Config { return config.Default() }

// SourceLoader fetches the bytes of a source image.
type SourceLoader interface {
	Load(ctx context.Context, src core.Source) ([]byte, error)
}

// Option customises a Service.
type Option func(*Service)

// WithLogger attaches a structured logger to every component.
func WithLogger(l core.Logger) Option { return func(s *Service) { s.logger = l } }

// WithRecorder attaches the request ledger.
func WithRecorder(r core.Recorder) Option { return func(s *Service) { s.recorder = r } }

// WithHooks registers task observers.
func WithHooks(h ...core.Hook) Option { return func(s *Service) { s.hooks = append(s.hooks, h...) } }

// WithSourceLoader replaces the default loader.
func WithSourceLoader(l SourceLoader) Option { return func(s *Service) { s.loader = l } }

// Service is the primary entry point. Safe for concurrent use.
type Service struct {
	cfg      config.Config
	storage  *storage.Manager
	pipeline *pipeline.Pipeline
	loader   SourceLoader
	logger   core.Logger
	recorder core.Recorder
	hooks    []core.Hook

	processed atomic.Int64
	failed    atomic.Int64
}

// New creates a fully wired Service rendering with codec and persisting
// through mgr.
func New(cfg config.Config, codec core.Codec, mgr *storage.Manager, opts ...Option) (*Service, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	s := &Service{
		cfg:      cfg,
		storage:  mgr,
		logger:   core.NopLogger{},
		recorder: core.NopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.loader == nil {
		s.loader = loader.New(cfg.Source, s.logger)
	}
	mgr.SetLogger(s.logger)

	s.pipeline = pipeline.New(codec, mgr, cfg.Pipeline).
		SetLogger(s.logger).
		SetRecorder(s.recorder)
	for _, h := range s.hooks {
		s.pipeline.AddHook(h)
	}
	return s, nil
}

// Storage returns the storage manager.
func (s *Service) Storage() *storage.Manager { return s.storage }

// Process runs a validated request. out receives the bytes of stream
// requests and may be nil otherwise.
func (s *Service) Process(ctx context.Context, req *core.Request, out core.ResponseChannel) (*pipeline.Result, error) {
	id := uuid.NewString()
	s.logger.Info("request.start", "request_id", id, "source", req.Source.Path,
		"loader", req.Source.Kind, "destination", req.Destination)

	src, err := s.loader.Load(ctx, req.Source)
	if err != nil {
		s.failed.Add(1)
		s.logger.Warn("request.source.failed", "request_id", id, "error", err.Error())
		return nil, err
	}

	res, err := s.pipeline.Run(ctx, id, req, src, out)
	if err != nil {
		s.failed.Add(1)
		return res, err
	}
	s.processed.Add(1)
	return res, nil
}

// ProcessSingle validates the flat single-variant form and runs it.
func (s *Service) ProcessSingle(ctx context.Context, q params.Raw, out core.ResponseChannel) (*pipeline.Result, error) {
	req, err := params.NewSingleRequest(q)
	if err != nil {
		s.failed.Add(1)
		return nil, err
	}
	return s.Process(ctx, req, out)
}

// ProcessMulti validates the structured multi-variant form and runs it.
func (s *Service) ProcessMulti(ctx context.Context, body params.Raw, out core.ResponseChannel) (*pipeline.Result, error) {
	req, err := params.NewRequest(body)
	if err != nil {
		s.failed.Add(1)
		return nil, err
	}
	return s.Process(ctx, req, out)
}

// Stats returns lightweight processing statistics.
func (s *Service) Stats() (processed, failed int64) {
	return s.processed.Load(), s.failed.Load()
}
