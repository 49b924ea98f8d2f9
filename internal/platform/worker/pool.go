// Package worker provides a bounded pool for background tasks whose
// results are not awaited by the submitter.
package worker

import (
	"context"
	"sync"
)

// Task is a unit of background work.
type Task struct {
	// Name identifies the task in logs.
	Name string
	// Run executes the work. The context is the pool's context and is
	// cancelled when the pool closes.
	Run func(ctx context.Context)
}

// Pool runs tasks on a fixed set of goroutines pulling from a bounded
// queue. It exists so that fire-and-forget work (cache revalidation,
// prefetch warming) has an explicit owner instead of loose goroutines.
type Pool struct {
	workers int
	queue   chan Task
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc

	closeOnce sync.Once
}

// NewPool creates a pool with the given number of workers and queue
// capacity. Workers start immediately.
func NewPool(ctx context.Context, workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	poolCtx, cancel := context.WithCancel(ctx)

	p := &Pool{
		workers: workers,
		queue:   make(chan Task, queueSize),
		ctx:     poolCtx,
		cancel:  cancel,
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case task, ok := <-p.queue:
			if !ok {
				return
			}
			task.Run(p.ctx)
		}
	}
}

// Submit enqueues a task, blocking while the queue is full.
// Returns the pool context's error if the pool is shutting down.
func (p *Pool) Submit(task Task) error {
	select {
	case <-p.ctx.Done():
		return p.ctx.Err()
	case p.queue <- task:
		return nil
	}
}

// TrySubmit enqueues a task without blocking. It reports false when the
// queue is full or the pool is shutting down; best-effort work is simply
// shed in that case.
func (p *Pool) TrySubmit(task Task) bool {
	select {
	case <-p.ctx.Done():
		return false
	default:
	}

	select {
	case p.queue <- task:
		return true
	default:
		return false
	}
}

// Workers returns the worker count.
func (p *Pool) Workers() int {
	return p.workers
}

// Close stops the workers and waits for in-progress tasks to return.
// Queued tasks that have not started are abandoned.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.cancel()
		p.wg.Wait()
	})
}
