package builtin

import "errors"

var (
	// ErrMissingOption is returned when a required option is not set.
	ErrMissingOption = errors.New("builtin: missing option")

	// ErrTooManyRestarts is returned by a daemon's main once its process has
	// failed more often than max_restarts allows.
	ErrTooManyRestarts = errors.New("builtin: too many restarts")

	// ErrCameraBusy is returned by Expose while another exposure is in progress.
	ErrCameraBusy = errors.New("builtin: camera busy")

	// ErrInvalidExposure is returned for a non-positive or too long exposure.
	ErrInvalidExposure = errors.New("builtin: invalid exposure")

	// ErrNotTrigger is returned when a camera's trigger option names a driver
	// that does not emit ticks.
	ErrNotTrigger = errors.New("builtin: driver is not a trigger source")
)
