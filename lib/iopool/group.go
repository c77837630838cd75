package iopool

import "context"

// Group collects the futures of one request. Futures are addressed by the
// index Go returned. A Group belongs to a single goroutine.
type Group struct {
	pool    *Pool
	ctx     context.Context
	cancel  context.CancelFunc
	futures []*Future
	closed  bool
}

func (p *Pool) NewGroup(ctx context.Context) *Group {
	ctx, cancel := context.WithCancel(ctx)
	return &Group{
		pool:   p,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Go submits task and returns its index in the group.
func (g *Group) Go(task Task) int {
	g.futures = append(g.futures, g.pool.Submit(g.ctx, task))
	return len(g.futures) - 1
}

func (g *Group) Len() int {
	return len(g.futures)
}

// Future returns the future at index i.
func (g *Group) Future(i int) *Future {
	return g.futures[i]
}

// Await waits for the task at index i.
func (g *Group) Await(i int) (int, error) {
	return g.futures[i].Await()
}

// Cancel stops every task that has not started yet without waiting.
func (g *Group) Cancel() {
	g.cancel()
}

// Close cancels all outstanding tasks and waits for every one of them to
// settle. It is safe to call more than once.
func (g *Group) Close() {
	if g.closed {
		return
	}
	g.closed = true

	g.cancel()
	for _, f := range g.futures {
		<-f.done
	}
}
