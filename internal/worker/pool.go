package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// ErrShutdownTimeout is returned when workers don't stop within timeout.
var ErrShutdownTimeout = errors.New("worker pool shutdown timed out")

// ErrPoolStopped is returned when submitting to a stopped pool.
var ErrPoolStopped = errors.New("worker pool stopped")

// Task is a unit of work. The context is cancelled when the pool stops.
type Task func(ctx context.Context)

type job struct {
	name string
	fn   Task
}

// Pool runs submitted tasks on a fixed number of workers.
type Pool struct {
	workers int
	tasks   chan job
	logger  *slog.Logger

	wg        sync.WaitGroup
	startOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc

	active    atomic.Int64
	completed atomic.Int64
	panicked  atomic.Int64
}

// Config holds worker pool configuration.
type Config struct {
	Workers   int
	QueueSize int
}

// Stats is a snapshot of pool activity.
type Stats struct {
	Workers   int   `json:"workers"`
	Queued    int   `json:"queued"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Panicked  int64 `json:"panicked"`
}

// NewPool creates a new worker pool.
func NewPool(cfg Config, logger *slog.Logger) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.Workers * 16
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		workers: cfg.Workers,
		tasks:   make(chan job, cfg.QueueSize),
		logger:  logger.With("component", "worker_pool"),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches all workers. Calling Start more than once has no effect.
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		p.logger.Info("starting worker pool", "workers", p.workers, "queue_size", cap(p.tasks))

		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.worker(i)
		}
	})
}

// Submit queues a task. It blocks while the queue is full until ctx is done
// or the pool stops.
func (p *Pool) Submit(ctx context.Context, name string, fn Task) error {
	if p.ctx.Err() != nil {
		return ErrPoolStopped
	}

	select {
	case p.tasks <- job{name: name, fn: fn}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return ErrPoolStopped
	}
}

// Stop cancels running tasks and waits for workers to exit.
// Tasks still queued are dropped.
func (p *Pool) Stop(timeout time.Duration) error {
	p.logger.Info("stopping worker pool", "queued", len(p.tasks))
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
		return nil
	case <-time.After(timeout):
		return ErrShutdownTimeout
	}
}

// Stats returns current pool statistics.
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:   p.workers,
		Queued:    len(p.tasks),
		Active:    p.active.Load(),
		Completed: p.completed.Load(),
		Panicked:  p.panicked.Load(),
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	logger := p.logger.With("worker_id", id)
	logger.Debug("worker started")

	for {
		select {
		case <-p.ctx.Done():
			logger.Debug("worker stopping")
			return
		case j := <-p.tasks:
			p.run(logger, j)
		}
	}
}

func (p *Pool) run(logger *slog.Logger, j job) {
	p.active.Add(1)
	start := time.Now()

	defer func() {
		p.active.Add(-1)
		if r := recover(); r != nil {
			p.panicked.Add(1)
			logger.Error("task panicked",
				"task", j.name,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			return
		}
		p.completed.Add(1)
		logger.Debug("task completed", "task", j.name, "duration", time.Since(start))
	}()

	j.fn(p.ctx)
}
