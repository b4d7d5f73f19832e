// Package queue provides the task queue and worker pool that drive all
// background work. Tasks carry a name resolved against the TaskRegistry and
// an arbitrary payload; two buffered channels give priority tasks precedence
// over regular ones. With queue.workers set to 0 the queue runs in
// synchronous mode and Enqueue executes the handler inline, which keeps
// one-shot CLI invocations and tests deterministic.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lodeworks/lode/internal/errors"
	"github.com/lodeworks/lode/internal/interfaces"
	"github.com/lodeworks/lode/internal/logging"
)

// Defaults applied when the queue.* configuration keys are absent.
const (
	DefaultWorkers            = 4
	DefaultBufferSize         = 256
	DefaultPriorityBufferSize = 64
)

// Queue error definitions.
var (
	ErrQueueClosed = &QueueError{Code: "QUEUE_CLOSED", Message: "task queue has been closed"}
	ErrQueueFull   = &QueueError{Code: "QUEUE_FULL", Message: "task queue is full"}
)

// QueueError represents an error in queue operations.
type QueueError struct {
	Code    string
	Message string
}

func (qe *QueueError) Error() string {
	return qe.Message
}

// Config controls queue capacity and worker parallelism.
type Config struct {
	// Workers is the number of concurrent workers. 0 enables synchronous
	// mode where Enqueue runs the handler inline.
	Workers int
	// BufferSize caps the regular task channel.
	BufferSize int
	// PriorityBufferSize caps the priority task channel.
	PriorityBufferSize int
}

// withDefaults fills unset capacity fields. Workers is left alone because 0
// is meaningful.
func (c Config) withDefaults() Config {
	if c.Workers < 0 {
		c.Workers = DefaultWorkers
	}
	if c.BufferSize <= 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.PriorityBufferSize <= 0 {
		c.PriorityBufferSize = DefaultPriorityBufferSize
	}
	return c
}

// queueCounters tracks lifetime totals behind its own lock so hot-path
// enqueues never contend with Close.
type queueCounters struct {
	mu        sync.Mutex
	enqueued  int64
	processed int64
	failed    int64
}

// Queue is a priority-aware task queue backed by buffered channels.
type Queue struct {
	config   Config
	tasks    chan interfaces.Task
	priority chan interfaces.Task
	registry *TaskRegistry
	logger   logging.Logger
	counters queueCounters

	// mu protects closed and guards channel sends against Close.
	mu     sync.RWMutex
	closed bool

	// obsMu protects observer.
	obsMu    sync.RWMutex
	observer TaskObserver
}

// TaskObserver is notified after each task run with its outcome.
type TaskObserver func(name string, duration time.Duration, failed bool)

var _ interfaces.TaskQueue = (*Queue)(nil)

// New creates a queue dispatching to handlers from registry.
func New(cfg Config, registry *TaskRegistry, logger logging.Logger) *Queue {
	cfg = cfg.withDefaults()
	return &Queue{
		config:   cfg,
		tasks:    make(chan interfaces.Task, cfg.BufferSize),
		priority: make(chan interfaces.Task, cfg.PriorityBufferSize),
		registry: registry,
		logger:   logger.WithComponent("queue"),
	}
}

// Synchronous reports whether Enqueue runs handlers inline.
func (q *Queue) Synchronous() bool {
	return q.config.Workers == 0
}

// Enqueue adds a regular priority task. In synchronous mode the handler runs
// inline and its error is returned to the caller.
func (q *Queue) Enqueue(ctx context.Context, task interfaces.Task) error {
	return q.enqueue(ctx, task, q.tasks)
}

// EnqueuePriority adds a task processed before regular ones.
func (q *Queue) EnqueuePriority(ctx context.Context, task interfaces.Task) error {
	return q.enqueue(ctx, task, q.priority)
}

func (q *Queue) enqueue(ctx context.Context, task interfaces.Task, ch chan interfaces.Task) error {
	if task.Name == "" {
		return errors.NewValidationError(errors.ErrCodeTaskUnknown,
			"task name is required")
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = time.Now()
	}

	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return ErrQueueClosed
	}

	if q.Synchronous() {
		q.mu.RUnlock()
		q.markEnqueued()
		return q.RunTask(ctx, task)
	}

	// Holding the read lock across the send keeps Close from closing the
	// channel mid-send.
	defer q.mu.RUnlock()
	select {
	case ch <- task:
		q.markEnqueued()
		return nil
	default:
		return ErrQueueFull
	}
}

// Next blocks until a task is available, preferring priority tasks. It
// returns ErrQueueClosed once the queue is closed and drained, or the
// context error on cancellation.
func (q *Queue) Next(ctx context.Context) (interfaces.Task, error) {
	priority, tasks := q.priority, q.tasks
	for {
		if priority == nil && tasks == nil {
			return interfaces.Task{}, ErrQueueClosed
		}

		if priority != nil {
			select {
			case task, ok := <-priority:
				if ok {
					return task, nil
				}
				priority = nil
				continue
			default:
			}
		}

		// A nil channel blocks forever, so a closed-and-drained channel
		// drops out of the select instead of spinning.
		select {
		case <-ctx.Done():
			return interfaces.Task{}, ctx.Err()
		case task, ok := <-priority:
			if ok {
				return task, nil
			}
			priority = nil
		case task, ok := <-tasks:
			if ok {
				return task, nil
			}
			tasks = nil
		}
	}
}

// SetObserver installs a hook notified after every task run. Passing nil
// removes it.
func (q *Queue) SetObserver(observer TaskObserver) {
	q.obsMu.Lock()
	q.observer = observer
	q.obsMu.Unlock()
}

func (q *Queue) notifyObserver(name string, duration time.Duration, failed bool) {
	q.obsMu.RLock()
	observer := q.observer
	q.obsMu.RUnlock()
	if observer != nil {
		observer(name, duration, failed)
	}
}

// RunTask resolves the task's handler and executes it, recording the outcome.
// Handler panics are recovered and reported as failures.
func (q *Queue) RunTask(ctx context.Context, task interfaces.Task) error {
	handler, err := q.registry.Resolve(task.Name)
	if err != nil {
		q.markFailed()
		q.notifyObserver(task.Name, 0, true)
		q.logger.Error(ctx, err, "No handler registered for task",
			"task", task.Name, "task_id", task.ID)
		return err
	}

	start := time.Now()
	if err := q.invoke(ctx, handler, task); err != nil {
		q.markFailed()
		q.notifyObserver(task.Name, time.Since(start), true)
		q.logger.Error(ctx, err, "Task failed",
			"task", task.Name, "task_id", task.ID,
			"duration", time.Since(start).String())
		return err
	}

	q.markProcessed()
	q.notifyObserver(task.Name, time.Since(start), false)
	q.logger.Debug(ctx, "Task completed",
		"task", task.Name, "task_id", task.ID,
		"duration", time.Since(start).String())
	return nil
}

func (q *Queue) invoke(ctx context.Context, handler Handler, task interfaces.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.NewInternalError(errors.ErrCodeInternalError,
				fmt.Sprintf("task handler panicked: %v", r), nil)
		}
	}()
	return handler(ctx, task)
}

// Close prevents new tasks from being enqueued. Tasks already buffered are
// still delivered to Next before it reports ErrQueueClosed. Close is
// idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.tasks)
		close(q.priority)
	}
}

// Stats returns a snapshot of queue depth and lifetime totals.
func (q *Queue) Stats() interfaces.QueueStats {
	q.counters.mu.Lock()
	enqueued, processed, failed := q.counters.enqueued, q.counters.processed, q.counters.failed
	q.counters.mu.Unlock()

	return interfaces.QueueStats{
		Depth:         len(q.tasks),
		PriorityDepth: len(q.priority),
		Enqueued:      enqueued,
		Processed:     processed,
		Failed:        failed,
	}
}

func (q *Queue) markEnqueued() {
	q.counters.mu.Lock()
	q.counters.enqueued++
	q.counters.mu.Unlock()
}

func (q *Queue) markProcessed() {
	q.counters.mu.Lock()
	q.counters.processed++
	q.counters.mu.Unlock()
}

func (q *Queue) markFailed() {
	q.counters.mu.Lock()
	q.counters.failed++
	q.counters.mu.Unlock()
}
