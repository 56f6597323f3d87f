// Package queue provides a bounded task queue: at most limit tasks run at
// once and the rest wait in submission order.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ErrTaskPanic wraps a panic raised by a task.
var ErrTaskPanic = errors.New("queue: task panicked")

// Task is a unit of work executed by the queue.
type Task[T any] func(ctx context.Context) (T, error)

// Handle resolves once its task has finished.
type Handle[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Done is closed when the task completes.
func (h *Handle[T]) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the task completes or ctx is done. A ctx error does not
// cancel the task itself.
func (h *Handle[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-h.done:
		return h.value, h.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Queue admits at most limit concurrently running tasks.
type Queue struct {
	limit   int
	permits *semaphore.Weighted

	mu      sync.Mutex
	pending []func()
	running int

	wg sync.WaitGroup
}

// New returns a queue that runs at most limit tasks at a time.
func New(limit int) *Queue {
	if limit <= 0 {
		limit = 1
	}
	return &Queue{
		limit:   limit,
		permits: semaphore.NewWeighted(int64(limit)),
	}
}

// Submit schedules task and returns immediately. The task receives ctx; if
// ctx is already done when the task is admitted it is not run and its handle
// resolves with the ctx error.
func Submit[T any](ctx context.Context, q *Queue, task Task[T]) *Handle[T] {
	h := &Handle[T]{done: make(chan struct{})}
	q.enqueue(func() {
		defer close(h.done)
		if err := ctx.Err(); err != nil {
			h.err = err
			return
		}
		h.value, h.err = runTask(ctx, task)
	})
	return h
}

// Running returns the number of tasks currently executing.
func (q *Queue) Running() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}

// Pending returns the number of tasks waiting for a slot.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Drain waits until every submitted task has completed or ctx is done.
func (q *Queue) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) enqueue(job func()) {
	q.wg.Add(1)

	q.mu.Lock()
	if len(q.pending) == 0 && q.permits.TryAcquire(1) {
		q.running++
		q.mu.Unlock()
		go q.run(job)
		return
	}
	q.pending = append(q.pending, job)
	q.mu.Unlock()
}

// run executes job and hands its permit to the oldest pending job, if any.
func (q *Queue) run(job func()) {
	for job != nil {
		job()
		q.wg.Done()
		job = q.next()
	}
}

func (q *Queue) next() func() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		q.running--
		q.permits.Release(1)
		return nil
	}
	job := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	return job
}

func runTask[T any](ctx context.Context, task Task[T]) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanic, r)
		}
	}()
	return task(ctx)
}
