package registry

import "errors"

var (
	// ErrDuplicate is returned when a location is already registered.
	ErrDuplicate = errors.New("registry: location already registered")

	// ErrKindMismatch is returned when a location is offered to the registry of another kind.
	ErrKindMismatch = errors.New("registry: location kind does not match registry")

	// ErrNilComponent is returned when registering a nil component.
	ErrNilComponent = errors.New("registry: nil component")
)
