package perch

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// TaskRunner runs tasks concurrently with a bounded number of workers,
// collecting the first error errgroup-style.
type TaskRunner struct {
	eg      *errgroup.Group
	ctx     context.Context
	limiter chan struct{}
}

// NewTaskRunner returns a runner allowing up to maxWorkers concurrent tasks.
// maxWorkers <= 0 defaults to GOMAXPROCS.
func NewTaskRunner(ctx context.Context, maxWorkers int) *TaskRunner {
	if maxWorkers <= 0 {
		maxWorkers = runtime.GOMAXPROCS(0)
	}
	eg, ctx2 := errgroup.WithContext(ctx)
	return &TaskRunner{
		eg:      eg,
		ctx:     ctx2,
		limiter: make(chan struct{}, maxWorkers),
	}
}

// Context returns the group context; it is canceled when any task fails.
func (tr *TaskRunner) Context() context.Context {
	return tr.ctx
}

// Go schedules task, blocking while all worker slots are busy.
func (tr *TaskRunner) Go(task func() error) {
	// Occupy a worker slot.
	tr.limiter <- struct{}{}
	tr.eg.Go(func() error {
		defer func() { <-tr.limiter }()
		return task()
	})
}

// Wait blocks until all scheduled tasks finish and returns the first error.
func (tr *TaskRunner) Wait() error {
	defer close(tr.limiter)
	return tr.eg.Wait()
}
