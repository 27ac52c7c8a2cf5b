package location

import "errors"

var (
	// ErrInvalidLocation is returned when a location string or its parts are malformed.
	ErrInvalidLocation = errors.New("location: invalid location")

	// ErrUnknownKind is returned for a kind token other than instrument, controller or driver.
	ErrUnknownKind = errors.New("location: unknown kind")
)
