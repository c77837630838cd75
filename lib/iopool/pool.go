// Package iopool runs chunk I/O on a bounded number of concurrent workers.
package iopool

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Task is one unit of chunk I/O. It returns the number of bytes moved.
type Task func(ctx context.Context) (int, error)

// Pool bounds how many tasks run at once. Tasks submitted beyond that bound
// wait in FIFO order without limit.
type Pool struct {
	sem     *semaphore.Weighted
	size    int
	wg      sync.WaitGroup
	running atomic.Int64
}

func New(size int) *Pool {
	if size < 1 {
		size = 1
	}

	return &Pool{
		sem:  semaphore.NewWeighted(int64(size)),
		size: size,
	}
}

func (p *Pool) Size() int {
	return p.size
}

// Running returns the number of tasks currently holding a worker slot.
func (p *Pool) Running() int64 {
	return p.running.Load()
}

// Submit queues task and returns its future. Cancelling ctx before the task
// obtains a worker slot resolves the future with the context error without
// running the task.
func (p *Pool) Submit(ctx context.Context, task Task) *Future {
	ctx, cancel := context.WithCancel(ctx)
	f := &Future{
		done:   make(chan struct{}),
		cancel: cancel,
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer close(f.done)
		defer cancel()

		if err := p.sem.Acquire(ctx, 1); err != nil {
			f.err = err
			return
		}
		defer p.sem.Release(1)

		if err := ctx.Err(); err != nil {
			f.err = err
			return
		}

		p.running.Add(1)
		defer p.running.Add(-1)

		f.n, f.err = task(ctx)
	}()

	return f
}

// Wait blocks until every submitted task has finished.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Future is the single result slot of a submitted task.
type Future struct {
	done   chan struct{}
	cancel context.CancelFunc

	n   int
	err error
}

// Done is closed once the result is available.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the task has finished and returns its result.
func (f *Future) Await() (int, error) {
	<-f.done
	return f.n, f.err
}

// Cancel asks the task to stop. A task that has not started yet will not run.
func (f *Future) Cancel() {
	f.cancel()
}
