// Package manager drives instruments, controllers and drivers through their
// lifecycle.
//
// A Manager owns one registry per kind, a resolve-once class cache and a
// reference to the worker pool that runs component mains:
//
//	Add(loc) ──► resolve class ──► construct ──► registry
//	Init(loc) ─► [Add] ──► Init() ──► pool.Submit(Main)
//	ShutdownComponent(loc) ─► cancel Main ──► Shutdown() ──► unregister
//
// Failures are returned as *OpError wrapping one of ErrResolution,
// ErrConstruction, ErrPoolUnavailable, ErrLifecycle, ErrDuplicate,
// ErrNotRegistered or ErrAlreadyRunning, and are logged with the location
// and kind. Panics in factories and callbacks are recovered.
//
// Shutdown tears everything down in a fixed order: controllers, then
// instruments, then drivers. Within a kind the order is unspecified.
//
// Every transition is reported to the lifecycle sinks added with AddSink.
package manager
