// Package worker runs queued background tasks on a bounded number of goroutines.
package worker

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Task is one unit of background work. Tasks report their outcome through
// their own channels; the pool only bounds concurrency.
type Task func(ctx context.Context)

// Pool starts queued tasks in FIFO order with at most size running at once.
// Submit and Dispatch are meant for a single owner goroutine.
type Pool struct {
	ctx      context.Context
	group    *errgroup.Group
	queue    *Queue[Task]
	size     int
	inFlight atomic.Int64
	started  atomic.Int64
}

func NewPool(ctx context.Context, size int) *Pool {
	if size < 1 {
		size = 1
	}
	group := new(errgroup.Group)
	group.SetLimit(size)
	return &Pool{
		ctx:   ctx,
		group: group,
		queue: NewQueue[Task](),
		size:  size,
	}
}

// Submit appends a task to the queue. It does not start it.
func (p *Pool) Submit(task Task) {
	p.queue.Enqueue(task)
}

// Dispatch starts queued tasks from the head while worker slots are free and
// returns how many were started.
func (p *Pool) Dispatch() int {
	started := 0
	for {
		if p.ctx.Err() != nil {
			return started
		}
		task, ok := p.queue.Peek()
		if !ok {
			return started
		}
		p.inFlight.Add(1)
		if !p.group.TryGo(p.wrap(task)) {
			p.inFlight.Add(-1)
			return started
		}
		p.queue.Pop()
		started++
		p.started.Add(1)
	}
}

func (p *Pool) wrap(task Task) func() error {
	return func() error {
		defer p.inFlight.Add(-1)
		task(p.ctx)
		return nil
	}
}

// Wait blocks until every started task has returned.
func (p *Pool) Wait() error {
	return p.group.Wait()
}

func (p *Pool) Size() int {
	return p.size
}

// Pending is the number of submitted tasks not yet started.
func (p *Pool) Pending() int {
	return p.queue.Len()
}

func (p *Pool) InFlight() int {
	return int(p.inFlight.Load())
}

// Started is the total number of tasks ever started.
func (p *Pool) Started() int64 {
	return p.started.Load()
}
