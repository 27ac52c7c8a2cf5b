package proxy

import "errors"

var (
	// ErrNoPool is returned when a proxy has no worker pool to submit to.
	ErrNoPool = errors.New("proxy: no worker pool")

	// ErrUnsupported is returned when the proxied component does not implement the requested capability.
	ErrUnsupported = errors.New("proxy: operation not supported by component")

	// ErrNilCall is returned when Call is given a nil function.
	ErrNilCall = errors.New("proxy: nil call")
)
