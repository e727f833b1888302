package pipeline

import (
	"context"
	"time"

	"github.com/frankii91/sharp-web-resizing-images/core"
	apperrors "github.com/frankii91/sharp-web-resizing-images/errors"
)

// RunFunc runs a batch of tasks and returns outcomes aligned with it.
type RunFunc func(ctx context.Context, tasks []core.DerivativeTask) []core.TaskOutcome

// Retrier resubmits failed tasks. MaxAttempts counts every try, the first
// included; the wait before attempt n+1 is BaseDelay×n.
type Retrier struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Logger      core.Logger
	// Sleep waits between attempts; nil uses a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Run executes tasks, then reruns only the failed subset until everything
// succeeds or MaxAttempts is reached. It returns one outcome per task, in
// task order, and a *errors.RetryError when failures remain.
func (r *Retrier) Run(ctx context.Context, requestID string, tasks []core.DerivativeTask, run RunFunc) ([]core.TaskOutcome, int, error) {
	maxAttempts := r.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	logger := r.Logger
	if logger == nil {
		logger = core.NopLogger{}
	}

	final := make([]core.TaskOutcome, len(tasks))
	pending := make([]int, len(tasks))
	for i := range tasks {
		pending[i] = i
	}

	attempt := 0
	for attempt < maxAttempts && len(pending) > 0 {
		if attempt > 0 {
			delay := r.BaseDelay * time.Duration(attempt)
			logger.Warn("pipeline.retry", "request_id", requestID,
				"attempt", attempt+1, "pending", len(pending), "delay_ms", delay.Milliseconds())
			if err := r.sleep(ctx, delay); err != nil {
				break
			}
		}
		attempt++

		batch := make([]core.DerivativeTask, len(pending))
		for j, idx := range pending {
			batch[j] = tasks[idx]
		}
		outcomes := run(ctx, batch)

		var still []int
		for j, idx := range pending {
			final[idx] = outcomes[j]
			if outcomes[j].Failed() {
				still = append(still, idx)
			}
		}
		pending = still
	}

	if len(pending) == 0 {
		return final, attempt, nil
	}
	failed := make([]string, len(pending))
	for j, idx := range pending {
		failed[j] = tasks[idx].Label()
	}
	return final, attempt, &apperrors.RetryError{
		Attempts: attempt,
		Failed:   failed,
		Last:     final[pending[0]].Err,
	}
}

func (r *Retrier) sleep(ctx context.Context, d time.Duration) error {
	if r.Sleep != nil {
		return r.Sleep(ctx, d)
	}
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
