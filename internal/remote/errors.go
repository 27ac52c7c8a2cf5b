package remote

import "errors"

var (
	// ErrInvalidCommand is returned for a malformed command payload or an unknown action.
	ErrInvalidCommand = errors.New("remote: invalid command")

	// ErrNoTransport is returned by Start when the dispatcher has no MQTT transport.
	ErrNoTransport = errors.New("remote: no transport")

	// ErrStopped is returned for a command received after Stop.
	ErrStopped = errors.New("remote: dispatcher stopped")

	// ErrQueueFull is returned when a command arrives while the queue is full.
	ErrQueueFull = errors.New("remote: command queue full")
)
