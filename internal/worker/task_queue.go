package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/yourorg/tenantonboard/internal/observability/metrics"
)

// ErrQueueClosed is returned by Shutdown when called twice.
var ErrQueueClosed = errors.New("task queue closed")

// Task is a unit of fire-and-forget work.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// TaskQueue runs background tasks on a fixed pool of goroutines. Submitting
// never blocks: when the buffer is full the task is dropped and logged.
type TaskQueue struct {
	tasks   chan Task
	workers int
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewTaskQueue creates a queue with the given worker count, buffer size and
// per-task timeout.
func NewTaskQueue(workers, size int, timeout time.Duration, logger *slog.Logger) *TaskQueue {
	if logger == nil {
		logger = slog.Default()
	}
	if workers < 1 {
		workers = 1
	}
	if size < 1 {
		size = 1
	}
	return &TaskQueue{
		tasks:   make(chan Task, size),
		workers: workers,
		timeout: timeout,
		logger:  logger,
	}
}

// Start launches the worker goroutines.
func (q *TaskQueue) Start() {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.loop(i)
	}
	q.logger.Info("task queue started", slog.Int("workers", q.workers), slog.Int("capacity", cap(q.tasks)))
}

// Submit enqueues fn under name. It reports false when the task was dropped.
func (q *TaskQueue) Submit(name string, fn func(ctx context.Context) error) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.logger.Warn("task dropped: queue closed", slog.String("task", name))
		metrics.ObserveTask(name, "dropped")
		return false
	}

	select {
	case q.tasks <- Task{Name: name, Run: fn}:
		metrics.SetQueueDepth(len(q.tasks))
		return true
	default:
		q.logger.Warn("task dropped: queue full", slog.String("task", name))
		metrics.ObserveTask(name, "dropped")
		return false
	}
}

// Shutdown stops accepting tasks and waits for queued ones to finish or for
// ctx to expire.
func (q *TaskQueue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.logger.Info("task queue drained")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("task queue shutdown: %w", ctx.Err())
	}
}

func (q *TaskQueue) loop(id int) {
	defer q.wg.Done()
	for task := range q.tasks {
		metrics.SetQueueDepth(len(q.tasks))
		q.run(id, task)
	}
}

func (q *TaskQueue) run(id int, task Task) {
	logger := q.logger.With(slog.String("task", task.Name), slog.Int("worker", id))

	// Tasks outlive the request that queued them.
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	start := time.Now()
	err := safeRun(ctx, task.Run)
	if err != nil {
		logger.Error("background task failed",
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(start)),
		)
		metrics.ObserveTask(task.Name, "error")
		return
	}
	logger.Debug("background task completed", slog.Duration("duration", time.Since(start)))
	metrics.ObserveTask(task.Name, "success")
}

func safeRun(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}
