package pool

import "errors"

var (
	// ErrClosed is returned by Submit after Close, and is the result of tasks
	// discarded from the queue at close.
	ErrClosed = errors.New("pool: closed")

	// ErrQueueFull is returned when every worker is busy and the queue is full.
	ErrQueueFull = errors.New("pool: queue full")

	// ErrNilTask is returned when Submit is given a nil task.
	ErrNilTask = errors.New("pool: nil task")

	// ErrTaskPanic wraps a panic recovered from a task.
	ErrTaskPanic = errors.New("pool: task panicked")

	// ErrCloseTimeout is returned when workers do not exit before the Close deadline.
	ErrCloseTimeout = errors.New("pool: close timed out")
)
