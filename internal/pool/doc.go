// Package pool provides the fixed-size worker pool that runs component main
// loops and proxied calls.
//
//	Submit(name, task) ──► queue (bounded) ──► worker 1..N ──► Handle.Done()
//	        │ full/closed
//	        └──► ErrQueueFull / ErrClosed
//
// Every submission gets a Handle carrying a uuid, so callers can wait for the
// result or ignore it. Tasks share the pool context, which Close cancels;
// a panic inside a task is recovered and reported as ErrTaskPanic instead of
// taking the process down.
package pool
