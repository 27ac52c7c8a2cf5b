package catalog

import "errors"

var (
	// ErrClassNotFound is returned when no class is known under a name.
	ErrClassNotFound = errors.New("catalog: class not found")

	// ErrDuplicateClass is returned when registering a name already in use.
	ErrDuplicateClass = errors.New("catalog: class already registered")

	// ErrInvalidClass is returned for a class with an empty name, no factory or unknown kinds.
	ErrInvalidClass = errors.New("catalog: invalid class")

	// ErrInvalidManifest is returned when a manifest file cannot be read or parsed.
	ErrInvalidManifest = errors.New("catalog: invalid manifest")

	// ErrUnknownBase is returned when a manifest class aliases a class that cannot be resolved.
	ErrUnknownBase = errors.New("catalog: unknown base class")
)
