// Package queue runs fire-and-forget background jobs on a fixed worker pool.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"stock_screener/metrics"
)

var (
	ErrQueueFull   = errors.New("task queue is full")
	ErrQueueClosed = errors.New("task queue is closed")
)

// Job is a unit of background work. Its error is logged, never returned to
// whoever submitted it.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// TaskQueue buffers jobs and hands them to worker goroutines
type TaskQueue struct {
	jobs    chan Job
	workers int
	metrics *metrics.Registry

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup
}

// New creates a queue with the given worker count and buffer size
func New(workers, buffer int, m *metrics.Registry) *TaskQueue {
	if workers <= 0 {
		workers = 1
	}
	if buffer < 0 {
		buffer = 0
	}
	return &TaskQueue{
		jobs:    make(chan Job, buffer),
		workers: workers,
		metrics: m,
	}
}

// Start launches the workers. Jobs run with ctx; cancelling it does not stop
// the workers, Stop does.
func (q *TaskQueue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
	log.Info().Int("workers", q.workers).Int("buffer", cap(q.jobs)).Msg("Task queue started")
}

// Submit enqueues job without blocking
func (q *TaskQueue) Submit(job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.jobs <- job:
		q.metrics.SetQueueDepth(len(q.jobs))
		return nil
	default:
		return fmt.Errorf("%w: dropping %s", ErrQueueFull, job.Name)
	}
}

// Len returns the number of jobs waiting for a worker
func (q *TaskQueue) Len() int {
	return len(q.jobs)
}

// Stop refuses new jobs, lets the workers drain what is buffered and waits
// for them to exit.
func (q *TaskQueue) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	started := q.started
	q.mu.Unlock()

	if started {
		q.wg.Wait()
	}
	log.Info().Msg("Task queue stopped")
}

func (q *TaskQueue) worker(ctx context.Context, id int) {
	defer q.wg.Done()
	for job := range q.jobs {
		q.metrics.SetQueueDepth(len(q.jobs))
		q.run(ctx, id, job)
	}
}

func (q *TaskQueue) run(ctx context.Context, worker int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Int("worker", worker).
				Str("job", job.Name).
				Interface("panic", r).
				Msg("Job panicked")
		}
	}()

	if err := job.Run(ctx); err != nil {
		log.Error().Err(err).Int("worker", worker).Str("job", job.Name).Msg("Job failed")
		return
	}
	log.Debug().Int("worker", worker).Str("job", job.Name).Msg("Job completed")
}
