package pipeline

import (
	"context"
	"fmt"

	"github.com/frankii91/sharp-web-resizing-images/core"
	apperrors "github.com/frankii91/sharp-web-resizing-images/errors"
)

// Deleter removes one artifact; storage.Session satisfies it.
type Deleter interface {
	Delete(ctx context.Context, d core.StorageDescriptor) error
}

// Compensation summarises one compensation pass.
type Compensation struct {
	Deleted int
	Failed  []error
}

// Compensator deletes the persisted artifacts of a failed request.
type Compensator struct {
	logger   core.Logger
	recorder core.Recorder
}

// NewCompensator creates a Compensator. nil arguments are replaced by no-ops.
func NewCompensator(l core.Logger, r core.Recorder) *Compensator {
	if l == nil {
		l = core.NopLogger{}
	}
	if r == nil {
		r = core.NopRecorder{}
	}
	return &Compensator{logger: l, recorder: r}
}

// Targets returns the descriptors compensation deletes: successful saves
// with status ok on a delete-capable backend.
func Targets(outcomes []core.TaskOutcome) []core.StorageDescriptor {
	var out []core.StorageDescriptor
	for _, o := range outcomes {
		if o.Err != nil || o.Save.Status != core.StatusOK || !o.Save.Kind.Durable() {
			continue
		}
		out = append(out, o.Save.Descriptor())
	}
	return out
}

// Compensate deletes every target. Each delete is attempted even when an
// earlier one fails; failures are logged and returned, never raised.
func (c *Compensator) Compensate(ctx context.Context, requestID string, del Deleter, outcomes []core.TaskOutcome) Compensation {
	// Deletes must run even when the request context is already done.
	ctx = context.WithoutCancel(ctx)

	var res Compensation
	for _, d := range Targets(outcomes) {
		err := del.Delete(ctx, d)
		if err != nil {
			err = apperrors.New(apperrors.CategoryStorage, "compensate",
				fmt.Errorf("%w: %s/%s: %w", apperrors.ErrCompensation, d.Dir, d.File, err))
			res.Failed = append(res.Failed, err)
			c.logger.Error("pipeline.compensate.failed", "request_id", requestID,
				"kind", d.Kind, "dir", d.Dir, "file", d.File, "error", err.Error())
		} else {
			res.Deleted++
			c.logger.Info("pipeline.compensate.deleted", "request_id", requestID,
				"kind", d.Kind, "dir", d.Dir, "file", d.File)
		}
		if rerr := c.recorder.Deleted(ctx, requestID, d, err); rerr != nil {
			c.logger.Warn("ledger.deleted.failed", "request_id", requestID, "error", rerr.Error())
		}
	}
	return res
}
