package pool

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Defaults applied by New for zero config values.
const (
	DefaultWorkers   = 8
	DefaultQueueSize = 64
)

// Logger defines the logging interface used by the Pool.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Task is a unit of work. The context is cancelled when the pool closes.
type Task func(ctx context.Context) error

// Config sizes the pool.
type Config struct {
	// Workers is the number of goroutines executing tasks.
	Workers int

	// QueueSize is how many submitted tasks may wait for a free worker.
	// A negative value means no queue: Submit succeeds only when a worker is idle.
	QueueSize int
}

// Stats is a point-in-time snapshot of pool counters.
type Stats struct {
	Workers   int    `json:"workers"`
	Queued    int    `json:"queued"`
	Active    int64  `json:"active"`
	Submitted uint64 `json:"submitted"`
	Completed uint64 `json:"completed"`
	Failed    uint64 `json:"failed"`
	Rejected  uint64 `json:"rejected"`
	Closed    bool   `json:"closed"`
}

// Pool runs submitted tasks on a fixed set of worker goroutines.
//
// Submit never blocks: when every worker is busy and the queue is full the
// task is rejected with ErrQueueFull. Long-running tasks hold their worker
// until they return, so size Workers for the number of concurrent
// long-running tasks plus headroom.
//
// All methods are safe for concurrent use.
type Pool struct {
	workers int
	queue   chan *job

	ctx    context.Context
	cancel context.CancelFunc
	group  errgroup.Group

	mu     sync.RWMutex // guards closed and sends on queue
	closed bool

	logger Logger

	active    atomic.Int64
	submitted atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
	rejected  atomic.Uint64
}

type job struct {
	handle *Handle
	task   Task
}

// New creates a pool and starts its workers.
func New(cfg Config) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	queueSize := cfg.QueueSize
	switch {
	case queueSize == 0:
		queueSize = DefaultQueueSize
	case queueSize < 0:
		queueSize = 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		workers: workers,
		queue:   make(chan *job, queueSize),
		ctx:     ctx,
		cancel:  cancel,
		logger:  noopLogger{},
	}

	for i := range workers {
		p.group.Go(func() error {
			p.worker(i)
			return nil
		})
	}
	return p
}

// SetLogger sets the logger for the pool. Call before submitting work.
func (p *Pool) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	p.logger = logger
}

// Submit queues task for execution and returns its handle.
//
// Returns:
//   - ErrNilTask if task is nil
//   - ErrClosed once Close has been called
//   - ErrQueueFull when no worker or queue slot is free
func (p *Pool) Submit(name string, task Task) (*Handle, error) {
	if task == nil {
		return nil, ErrNilTask
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.rejected.Add(1)
		return nil, ErrClosed
	}

	j := &job{handle: newHandle(name), task: task}
	select {
	case p.queue <- j:
		p.submitted.Add(1)
		p.logger.Debug("task submitted", "task", name, "task_id", j.handle.ID)
		return j.handle, nil
	default:
		p.rejected.Add(1)
		return nil, fmt.Errorf("%w: %d workers busy, %d queued", ErrQueueFull, p.workers, len(p.queue))
	}
}

// Close stops accepting tasks, cancels the context of running tasks and
// waits for the workers to exit. Queued tasks that never started finish with
// ErrClosed. If ctx expires first, Close returns ErrCloseTimeout; workers are
// left to finish in the background.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.cancel()

	done := make(chan struct{})
	go func() {
		_ = p.group.Wait() //nolint:errcheck // workers always return nil
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped", "completed", p.completed.Load(), "failed", p.failed.Load())
		return nil
	case <-ctx.Done():
		p.logger.Warn("worker pool close timed out", "active", p.active.Load())
		return fmt.Errorf("%w: %w", ErrCloseTimeout, ctx.Err())
	}
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()

	return Stats{
		Workers:   p.workers,
		Queued:    len(p.queue),
		Active:    p.active.Load(),
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Rejected:  p.rejected.Load(),
		Closed:    closed,
	}
}

func (p *Pool) worker(id int) {
	for j := range p.queue {
		if p.ctx.Err() != nil {
			j.handle.finish(ErrClosed)
			continue
		}
		p.run(id, j)
	}
}

func (p *Pool) run(worker int, j *job) {
	p.active.Add(1)
	defer p.active.Add(-1)

	j.handle.start()
	err := safeRun(p.ctx, j.task)

	switch {
	case err == nil, errors.Is(err, context.Canceled):
		p.completed.Add(1)
	default:
		p.failed.Add(1)
		p.logger.Debug("task failed", "task", j.handle.Name, "task_id", j.handle.ID, "worker", worker, "error", err)
	}
	j.handle.finish(err)
}

// safeRun executes task, converting a panic into ErrTaskPanic.
func safeRun(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v\n%s", ErrTaskPanic, r, debug.Stack())
		}
	}()
	return task(ctx)
}

// Handle tracks one submitted task.
type Handle struct {
	// ID uniquely identifies the submission.
	ID string

	// Name is the label given to Submit.
	Name string

	started chan struct{}
	once    sync.Once
	done    chan struct{}
	err     error
}

func newHandle(name string) *Handle {
	return &Handle{
		ID:      uuid.NewString(),
		Name:    name,
		started: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (h *Handle) start() {
	close(h.started)
}

func (h *Handle) finish(err error) {
	h.err = err
	close(h.done)
}

// Started is closed when a worker picks the task up.
func (h *Handle) Started() <-chan struct{} {
	return h.started
}

// Done is closed when the task has returned or was discarded.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err returns the task's result. It is nil until Done is closed.
func (h *Handle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// Wait blocks until the task finishes or ctx is done, returning the task
// result or the context error.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
