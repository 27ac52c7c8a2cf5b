// Package proxy wraps a registered component so that calls on it run on the
// worker pool instead of the caller's goroutine.
package proxy
