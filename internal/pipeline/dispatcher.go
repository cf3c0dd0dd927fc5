package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Task is a unit of derived work dispatched off the request path.
type Task func(ctx context.Context)

// Dispatcher is a bounded work queue with a fixed worker pool. It makes the
// "never block the caller" contract explicit: Enqueue never blocks, a full
// queue drops the task, and shutdown drains what was accepted.
type Dispatcher struct {
	ch          chan Task
	workers     int
	taskTimeout time.Duration
	log         zerolog.Logger

	mu      sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
	dropped atomic.Int64
}

// NewDispatcher builds a Dispatcher with the given queue buffer, worker
// count, and per-task timeout.
func NewDispatcher(buffer, workers int, taskTimeout time.Duration, log zerolog.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = 256
	}
	if workers <= 0 {
		workers = 4
	}
	if taskTimeout <= 0 {
		taskTimeout = 30 * time.Second
	}
	return &Dispatcher{
		ch:          make(chan Task, buffer),
		workers:     workers,
		taskTimeout: taskTimeout,
		log:         log,
	}
}

// Enqueue attempts to queue a task without blocking. It returns false when
// the queue is full or the dispatcher is shutting down; the task is dropped
// and counted.
func (d *Dispatcher) Enqueue(t Task) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.dropped.Add(1)
		return false
	}
	select {
	case d.ch <- t:
		return true
	default:
		n := d.dropped.Add(1)
		d.log.Warn().Int64("dropped_total", n).Msg("dispatcher queue full, task dropped")
		return false
	}
}

// Run starts the worker pool and blocks until ctx is cancelled and every
// already-accepted task has drained.
func (d *Dispatcher) Run(ctx context.Context) {
	d.log.Info().Int("workers", d.workers).Int("buffer", cap(d.ch)).Msg("dispatcher starting")
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}

	<-ctx.Done()
	d.mu.Lock()
	d.closed = true
	close(d.ch)
	d.mu.Unlock()

	d.wg.Wait()
	d.log.Info().Int64("dropped_total", d.dropped.Load()).Msg("dispatcher drained")
}

// Dropped returns the number of tasks rejected so far.
func (d *Dispatcher) Dropped() int64 { return d.dropped.Load() }

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for t := range d.ch {
		d.runTask(t)
	}
}

func (d *Dispatcher) runTask(t Task) {
	defer func() {
		if rec := recover(); rec != nil {
			d.log.Error().Interface("panic", rec).Msg("dispatched task panicked")
		}
	}()
	// Derived work keeps its own deadline; it must finish (or fail) even
	// while the server context is draining.
	ctx, cancel := context.WithTimeout(context.Background(), d.taskTimeout)
	defer cancel()
	t(ctx)
}
