package manager

import (
	"errors"
	"fmt"

	"github.com/nerrad567/uts-core/internal/location"
	"github.com/nerrad567/uts-core/internal/registry"
)

var (
	// ErrResolution is returned when a class cannot be resolved for a location:
	// unknown name, a manifest alias with a missing base, or a class that does
	// not support the location's kind.
	ErrResolution = errors.New("manager: class resolution failed")

	// ErrConstruction is returned when a factory fails, panics or returns nil.
	ErrConstruction = errors.New("manager: component construction failed")

	// ErrPoolUnavailable is returned when no worker pool is attached or the
	// pool rejects a task.
	ErrPoolUnavailable = errors.New("manager: worker pool unavailable")

	// ErrLifecycle is returned when a component's Init or Shutdown fails or panics.
	ErrLifecycle = errors.New("manager: lifecycle callback failed")

	// ErrDuplicate is returned when a location is already registered.
	ErrDuplicate = registry.ErrDuplicate

	// ErrKindMismatch is returned when a per-kind operation is given a location of another kind.
	ErrKindMismatch = registry.ErrKindMismatch

	// ErrNotRegistered is returned for operations on an unknown location.
	ErrNotRegistered = errors.New("manager: location not registered")

	// ErrAlreadyRunning is returned by init when the component's main is still running.
	ErrAlreadyRunning = errors.New("manager: component already running")

	// ErrPanicked wraps a panic recovered from a component callback.
	ErrPanicked = errors.New("manager: component panicked")

	// ErrClosed is returned by add and init after Shutdown.
	ErrClosed = errors.New("manager: shut down")
)

// OpError records a failed lifecycle operation and the location it was
// applied to. Use errors.Is against the sentinels above to classify it.
type OpError struct {
	Op       string
	Location location.Location
	Err      error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Location, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func opError(op string, loc location.Location, err error) error {
	return &OpError{Op: op, Location: loc, Err: err}
}

// guard runs a foreign callback, converting a panic into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanicked, r)
		}
	}()
	return fn()
}
