package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/frankii91/sharp-web-resizing-images/core"
	apperrors "github.com/frankii91/sharp-web-resizing-images/errors"
)

// Work renders and persists one task.
type Work func(ctx context.Context, t core.DerivativeTask) (core.SaveOutcome, error)

// Executor runs tasks concurrently. The in-flight bound is shared by every
// request that uses the same Executor.
type Executor struct {
	sem   *semaphore.Weighted
	hooks []core.Hook
}

// NewExecutor creates an Executor allowing maxInFlight concurrent tasks.
func NewExecutor(maxInFlight int) *Executor {
	if maxInFlight <= 0 {
		maxInFlight = 1
	}
	return &Executor{sem: semaphore.NewWeighted(int64(maxInFlight))}
}

// AddHook registers an observer. Not safe to call concurrently with Run.
func (e *Executor) AddHook(h core.Hook) { e.hooks = append(e.hooks, h) }

// Run starts every task and blocks until all have settled. A failing task
// never stops its siblings. outcomes[i] belongs to tasks[i].
func (e *Executor) Run(ctx context.Context, tasks []core.DerivativeTask, work Work) []core.TaskOutcome {
	outcomes := make([]core.TaskOutcome, len(tasks))
	var g errgroup.Group
	for i, t := range tasks {
		g.Go(func() error {
			outcomes[i] = e.runOne(ctx, t, work)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (e *Executor) runOne(ctx context.Context, t core.DerivativeTask, work Work) core.TaskOutcome {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return core.TaskOutcome{Task: t, Save: core.SaveOutcome{Status: core.StatusError},
			Err: apperrors.Wrap(apperrors.CategoryPipeline, "executor.acquire", err)}
	}
	defer e.sem.Release(1)

	for _, h := range e.hooks {
		h.BeforeTask(ctx, t)
	}
	start := time.Now()
	save, err := work(ctx, t)
	if err != nil {
		save.Status = core.StatusError
	}
	o := core.TaskOutcome{Task: t, Save: save, Err: err}
	elapsed := time.Since(start)
	for _, h := range e.hooks {
		h.AfterTask(ctx, o, elapsed)
	}
	return o
}

// Failed returns the outcomes that ended in error.
func Failed(outcomes []core.TaskOutcome) []core.TaskOutcome {
	var out []core.TaskOutcome
	for _, o := range outcomes {
		if o.Failed() {
			out = append(out, o)
		}
	}
	return out
}
