package attrib

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Pool runs a batch of tasks to completion.
type Pool interface {
	Workers() int
	// Run blocks until every task finished and returns the first error.
	Run(tasks []func() error) error
}

// WorkerPool is a Pool bounded to a fixed number of concurrent tasks.
type WorkerPool struct {
	workers int
}

// NewWorkerPool returns a pool of n workers; n <= 0 uses GOMAXPROCS.
func NewWorkerPool(n int) *WorkerPool {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	return &WorkerPool{workers: n}
}

func (w *WorkerPool) Workers() int {
	return w.workers
}

func (w *WorkerPool) Run(tasks []func() error) error {
	var g errgroup.Group
	g.SetLimit(w.workers)
	for _, task := range tasks {
		g.Go(task)
	}
	return g.Wait()
}
