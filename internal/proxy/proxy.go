package proxy

import (
	"context"
	"fmt"

	"github.com/nerrad567/uts-core/internal/component"
	"github.com/nerrad567/uts-core/internal/location"
	"github.com/nerrad567/uts-core/internal/pool"
)

// Submitter is the part of the worker pool a Proxy needs.
type Submitter interface {
	Submit(name string, task pool.Task) (*pool.Handle, error)
}

// Proxy routes calls on one component through the worker pool.
//
// A Proxy is a cheap value bound to a component and the pool at the time it
// was created. It has no lifecycle of its own and does not keep the component
// registered; create a fresh one per use.
type Proxy struct {
	loc    location.Location
	target component.Component
	pool   Submitter
}

// New binds target at loc to pool.
func New(loc location.Location, target component.Component, pool Submitter) *Proxy {
	return &Proxy{loc: loc, target: target, pool: pool}
}

// Location returns the address of the proxied component.
func (p *Proxy) Location() location.Location {
	return p.loc
}

// Call submits fn to the pool with the proxied component as argument.
// The returned handle reports fn's result.
func (p *Proxy) Call(op string, fn func(ctx context.Context, c component.Component) error) (*pool.Handle, error) {
	if p.pool == nil {
		return nil, fmt.Errorf("%w: %s %s", ErrNoPool, p.loc, op)
	}
	if fn == nil {
		return nil, fmt.Errorf("%w: %s %s", ErrNilCall, p.loc, op)
	}
	target := p.target
	h, err := p.pool.Submit(p.taskName(op), func(ctx context.Context) error {
		return fn(ctx, target)
	})
	if err != nil {
		return nil, fmt.Errorf("proxy %s %s: %w", p.loc, op, err)
	}
	return h, nil
}

// Init runs the component's Init on the pool. This bypasses the manager's
// bookkeeping; components normally reach peers that are already running.
func (p *Proxy) Init() (*pool.Handle, error) {
	return p.Call("init", func(ctx context.Context, c component.Component) error {
		return c.Init(ctx)
	})
}

// Shutdown runs the component's Shutdown on the pool without unregistering it.
func (p *Proxy) Shutdown() (*pool.Handle, error) {
	return p.Call("shutdown", func(ctx context.Context, c component.Component) error {
		return c.Shutdown(ctx)
	})
}

func (p *Proxy) taskName(op string) string {
	return p.loc.String() + "#" + op
}

// Invoke submits fn with the proxied component asserted to T, for calls
// beyond the basic lifecycle (for example a camera's Expose method).
// It fails with ErrUnsupported, without submitting, when the component does
// not implement T.
//
// Example:
//
//	h, err := proxy.Invoke(cam, "expose", func(ctx context.Context, c Exposer) error {
//	    return c.Expose(ctx, 2*time.Second)
//	})
func Invoke[T any](p *Proxy, op string, fn func(ctx context.Context, target T) error) (*pool.Handle, error) {
	typed, ok := p.target.(T)
	if !ok {
		return nil, fmt.Errorf("%w: %s (%T) does not support %s", ErrUnsupported, p.loc, p.target, op)
	}
	return p.Call(op, func(ctx context.Context, _ component.Component) error {
		return fn(ctx, typed)
	})
}

// Do is Invoke followed by waiting for the result until ctx is done.
func Do[T any](ctx context.Context, p *Proxy, op string, fn func(ctx context.Context, target T) error) error {
	h, err := Invoke(p, op, fn)
	if err != nil {
		return err
	}
	return h.Wait(ctx)
}
