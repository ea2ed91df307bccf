package ingest

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okranz/tracklog/internal/domain"
)

// Result is the outcome of one job in a batch. Activity is the final
// persisted record (terminal status included); Err is set only when the
// infrastructure itself failed and no terminal record could be written.
type Result struct {
	Activity domain.Activity
	Err      error
}

// Pool runs ingestion jobs concurrently with a fixed worker limit and a
// per-job timeout. Jobs share no mutable state — the database is the only
// synchronization point — so one file's failure never blocks or rolls back
// its siblings.
type Pool struct {
	pipeline *Pipeline
	workers  int
	timeout  time.Duration
}

// NewPool constructs a Pool. workers clamps to at least 1; timeout <= 0
// means no per-job timeout.
func NewPool(pipeline *Pipeline, workers int, timeout time.Duration) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{pipeline: pipeline, workers: workers, timeout: timeout}
}

// Submit creates the pending activity for every job up front — so the caller
// gets all activity IDs immediately — then processes the batch in the
// background, delivering one Result per job on the returned channel. The
// channel is closed when the whole batch has reached a terminal state.
//
// The pending activities are returned in job order. A job whose placeholder
// could not be created is reported on the channel with Err set and is not
// otherwise processed.
func (p *Pool) Submit(ctx context.Context, jobs []Job) ([]domain.Activity, <-chan Result) {
	results := make(chan Result, len(jobs))

	pending := make([]domain.Activity, 0, len(jobs))
	runnable := make([]int, 0, len(jobs)) // indexes into jobs with a placeholder
	for i, job := range jobs {
		activity, err := p.pipeline.CreatePending(ctx, job)
		if err != nil {
			results <- Result{Err: err}
			continue
		}
		pending = append(pending, activity)
		runnable = append(runnable, i)
	}

	go func() {
		defer close(results)

		// The group context is deliberately detached from the request
		// context: processing outlives the HTTP request that started it.
		g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
		g.SetLimit(p.workers)

		for i, jobIdx := range runnable {
			activity, job := pending[i], jobs[jobIdx]
			g.Go(func() error {
				results <- p.runOne(gctx, activity, job)
				// Never propagate: an errgroup error would cancel
				// sibling jobs, and batch siblings are independent.
				return nil
			})
		}
		g.Wait() //nolint:errcheck // goroutines always return nil
	}()

	return pending, results
}

// runOne applies the per-job timeout around a single pipeline run.
// There is no mid-parse cancellation: a job either completes or is marked
// failed once a stage boundary notices the deadline has passed.
func (p *Pool) runOne(ctx context.Context, activity domain.Activity, job Job) Result {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	final, err := p.pipeline.Run(ctx, activity, job)
	return Result{Activity: final, Err: err}
}
