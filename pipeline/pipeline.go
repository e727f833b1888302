// Package pipeline expands a request into derivative tasks, runs them
// concurrently and settles partial failures by compensation or retry.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"

	"github.com/frankii91/sharp-web-resizing-images/adapters/storage"
	"github.com/frankii91/sharp-web-resizing-images/config"
	"github.com/frankii91/sharp-web-resizing-images/core"
	apperrors "github.com/frankii91/sharp-web-resizing-images/errors"
)

// Pipeline is the generate → persist fan-out. One Pipeline serves every
// request; per-request state lives in Run.
type Pipeline struct {
	codec    core.Codec
	storage  *storage.Manager
	exec     *Executor
	cfg      config.PipelineConfig
	logger   core.Logger
	recorder core.Recorder
	sleep    func(ctx context.Context, d time.Duration) error
}

// New returns a Pipeline rendering with codec and persisting through mgr.
func New(codec core.Codec, mgr *storage.Manager, cfg config.PipelineConfig) *Pipeline {
	return &Pipeline{
		codec:    codec,
		storage:  mgr,
		exec:     NewExecutor(cfg.MaxInFlight),
		cfg:      cfg,
		logger:   core.NopLogger{},
		recorder: core.NopRecorder{},
	}
}

// SetLogger attaches a structured logger.
func (p *Pipeline) SetLogger(l core.Logger) *Pipeline {
	p.logger = l
	return p
}

// SetRecorder attaches the request ledger.
func (p *Pipeline) SetRecorder(r core.Recorder) *Pipeline {
	p.recorder = r
	return p
}

// AddHook registers an observer for task events.
func (p *Pipeline) AddHook(h core.Hook) *Pipeline {
	p.exec.AddHook(h)
	return p
}

// WithSleep replaces the wait used between retry attempts.
func (p *Pipeline) WithSleep(fn func(ctx context.Context, d time.Duration) error) *Pipeline {
	p.sleep = fn
	return p
}

// Result is the settled state of one request.
type Result struct {
	RequestID    string
	Outcomes     []core.TaskOutcome
	Policy       config.Policy
	Attempts     int
	Compensation Compensation

	session *storage.Session
}

// Pending lists writes deferred by multi-save buffering.
func (r *Result) Pending() []storage.BufferedItem { return r.session.Pending() }

// Flush performs the deferred writes.
func (r *Result) Flush(ctx context.Context) []storage.FlushResult { return r.session.Flush(ctx) }

// Run renders and persists every derivative of req from src. Stream
// destinations write to out. On failure the request's persisted artifacts
// are compensated, or the failed subset retried, depending on the policy
// configured for the destination kind. Once started a request runs to
// completion: cancelling ctx does not stop queued tasks, transfers or
// retries.
func (p *Pipeline) Run(ctx context.Context, requestID string, req *core.Request, src []byte, out core.ResponseChannel) (*Result, error) {
	ctx = context.WithoutCancel(ctx)
	tasks := Plan(req)

	var metaDoc []byte
	if p.cfg.MetaTags {
		b, err := sonic.Marshal(core.RequestDocument(req))
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryPipeline, "pipeline.metatags", err)
		}
		metaDoc = b
		tasks = append(tasks, metaTask(len(tasks)))
	}

	var meta map[string]string
	if req.Destination == core.BackendS3 {
		meta = core.FlattenMetadata(core.RequestDocument(req))
	}

	buffered := p.cfg.MultiSave && req.Destination != core.BackendStream
	session := p.storage.Session(requestID, buffered, out)
	res := &Result{RequestID: requestID, Policy: p.cfg.PolicyFor(string(req.Destination)), session: session}

	if err := p.recorder.Begin(ctx, requestID, req); err != nil {
		p.logger.Warn("ledger.begin.failed", "request_id", requestID, "error", err.Error())
	}
	p.logger.Info("pipeline.start", "request_id", requestID, "destination", req.Destination,
		"tasks", len(tasks), "policy", res.Policy, "buffered", buffered)

	work := func(ctx context.Context, t core.DerivativeTask) (core.SaveOutcome, error) {
		d := core.StorageDescriptor{
			Kind:        req.Destination,
			Dir:         req.Dir,
			File:        t.Filename,
			ContentType: t.ContentType,
			Meta:        meta,
		}
		var data []byte
		if isMeta(t) {
			data = metaDoc
			if d.Kind == core.BackendStream {
				d.Kind = core.BackendLocal
			}
		} else {
			b, err := p.codec.Render(ctx, src, t.Resize, t.Spec)
			if err != nil {
				return core.SaveOutcome{Kind: d.Kind, Dir: d.Dir, File: d.File}, err
			}
			data = b
		}
		o, err := session.Save(ctx, d, data)
		if err == nil && o.Status == core.StatusOK && o.Kind.Durable() {
			if rerr := p.recorder.Artifact(ctx, requestID, o); rerr != nil {
				p.logger.Warn("ledger.artifact.failed", "request_id", requestID, "error", rerr.Error())
			}
		}
		return o, err
	}
	run := func(ctx context.Context, batch []core.DerivativeTask) []core.TaskOutcome {
		return p.exec.Run(ctx, batch, work)
	}

	var err error
	if res.Policy == config.PolicyRetry {
		r := &Retrier{
			MaxAttempts: p.cfg.RetryMaxAttempts,
			BaseDelay:   p.cfg.RetryBaseDelay,
			Logger:      p.logger,
			Sleep:       p.sleep,
		}
		var rerr error
		res.Outcomes, res.Attempts, rerr = r.Run(ctx, requestID, tasks, run)
		if rerr != nil {
			session.Discard()
			err = apperrors.New(apperrors.CategoryPipeline, "pipeline.retry", rerr)
		}
	} else {
		res.Outcomes = run(ctx, tasks)
		res.Attempts = 1
		if failed := Failed(res.Outcomes); len(failed) > 0 {
			session.Discard()
			res.Compensation = NewCompensator(p.logger, p.recorder).Compensate(ctx, requestID, session, res.Outcomes)
			err = apperrors.New(apperrors.CategoryPipeline, "pipeline.run",
				fmt.Errorf("%d of %d outputs failed: %w", len(failed), len(res.Outcomes), failed[0].Err))
		}
	}

	if ferr := p.recorder.Finish(ctx, requestID, err); ferr != nil {
		p.logger.Warn("ledger.finish.failed", "request_id", requestID, "error", ferr.Error())
	}
	if err != nil {
		p.logger.Error("pipeline.failed", "request_id", requestID, "attempts", res.Attempts,
			"compensated", res.Compensation.Deleted, "error", err.Error())
		return res, err
	}
	p.logger.Info("pipeline.done", "request_id", requestID, "outputs", len(res.Outcomes), "attempts", res.Attempts)
	return res, nil
}
