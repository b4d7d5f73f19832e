package queue

import (
	"context"
	"sync"

	"github.com/lodeworks/lode/internal/logging"
)

// WorkerPool runs a fixed number of workers that pull tasks from the queue
// until the queue closes or the pool is stopped.
type WorkerPool struct {
	workers int
	queue   *Queue
	logger  logging.Logger

	// wg synchronizes worker goroutine lifecycle
	wg sync.WaitGroup
	// cancel terminates all workers
	cancel context.CancelFunc
	// mu protects cancel and started
	mu      sync.Mutex
	started bool
}

// NewWorkerPool creates a pool of the given size. A size of 0 creates an
// inert pool, used when the queue runs in synchronous mode.
func NewWorkerPool(workers int, q *Queue, logger logging.Logger) *WorkerPool {
	if workers < 0 {
		workers = DefaultWorkers
	}
	return &WorkerPool{
		workers: workers,
		queue:   q,
		logger:  logger.WithComponent("workers"),
	}
}

// Start launches the worker goroutines. Starting an already started or
// zero-sized pool is a no-op.
func (p *WorkerPool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started || p.workers == 0 {
		return
	}
	p.started = true

	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	p.logger.Info(ctx, "Worker pool started", "workers", p.workers)
}

// Stop cancels all workers and waits for them to finish their current task.
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
}

// Workers reports the configured pool size.
func (p *WorkerPool) Workers() int {
	return p.workers
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		task, err := p.queue.Next(ctx)
		if err != nil {
			// Both queue close and context cancellation end the worker.
			p.logger.Debug(ctx, "Worker exiting", "worker", id)
			return
		}
		// The queue records the outcome and logs failures.
		_ = p.queue.RunTask(ctx, task)
	}
}
