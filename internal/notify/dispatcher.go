// Package notify runs fire-and-forget callback deliveries on a small worker
// pool so pipeline runs never block on the content API.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrShutdownTimeout is returned when workers don't drain within timeout.
var ErrShutdownTimeout = errors.New("notify dispatcher shutdown timed out")

// Task is one delivery. The context it receives carries the per-delivery
// timeout and is never tied to an HTTP request.
type Task func(ctx context.Context) error

// Dispatcher fans deliveries out to a fixed set of workers over a bounded
// queue. Outcomes are logged and never retried.
type Dispatcher struct {
	workers int
	timeout time.Duration
	queue   chan Task
	logger  *slog.Logger

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

// Config holds dispatcher configuration.
type Config struct {
	Workers int
	Timeout time.Duration
}

// NewDispatcher creates a dispatcher; call Start before dispatching.
func NewDispatcher(cfg Config, logger *slog.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &Dispatcher{
		workers: cfg.Workers,
		timeout: cfg.Timeout,
		queue:   make(chan Task, cfg.Workers*8),
		logger:  logger,
	}
}

// Start launches the workers.
func (d *Dispatcher) Start() {
	d.logger.Info("starting notify dispatcher", "workers", d.workers)

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
}

// Dispatch enqueues a delivery without ever blocking the caller. When the
// queue is full, or the dispatcher has already stopped while a detached
// pipeline run is still finishing, the task runs on its own goroutine
// instead.
func (d *Dispatcher) Dispatch(task Task) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		d.logger.Warn("dispatch after stop, running task detached")
		go d.run(task, d.logger)
		return
	}
	select {
	case d.queue <- task:
		d.mu.Unlock()
	default:
		d.mu.Unlock()
		d.logger.Warn("notify queue full, running task detached")
		go d.run(task, d.logger)
	}
}

// Stop closes the queue and waits for queued deliveries to drain.
// Deliveries dispatched after Stop still run detached but are not waited on.
func (d *Dispatcher) Stop(timeout time.Duration) error {
	d.logger.Info("stopping notify dispatcher")
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("notify dispatcher stopped")
		return nil
	case <-time.After(timeout):
		return ErrShutdownTimeout
	}
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()

	logger := d.logger.With("notify_worker", id)
	for task := range d.queue {
		d.run(task, logger)
	}
}

func (d *Dispatcher) run(task Task, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := task(ctx); err != nil {
		logger.Warn("notification delivery failed", "error", err)
	}
}
