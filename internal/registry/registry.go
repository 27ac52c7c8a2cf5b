package registry

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/nerrad567/uts-core/internal/component"
	"github.com/nerrad567/uts-core/internal/location"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry maps locations of one kind to live components.
//
// It is pure bookkeeping: it never calls into the components it holds.
// All public methods are thread-safe.
type Registry struct {
	kind    location.Kind
	entries map[location.Location]component.Component
	mu      sync.RWMutex
	logger  Logger
}

// New creates an empty registry for kind.
func New(kind location.Kind) *Registry {
	return &Registry{
		kind:    kind,
		entries: make(map[location.Location]component.Component),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	r.logger = logger
}

// Kind returns the kind of location this registry accepts.
func (r *Registry) Kind() location.Kind {
	return r.kind
}

// Register adds c at loc. An existing entry is never overwritten.
//
// Returns:
//   - ErrKindMismatch if loc is of another kind
//   - ErrNilComponent if c is nil
//   - ErrDuplicate if loc is already registered
func (r *Registry) Register(loc location.Location, c component.Component) error {
	if loc.Kind != r.kind {
		return fmt.Errorf("%w: %s in %s registry", ErrKindMismatch, loc, r.kind)
	}
	if isNil(c) {
		return fmt.Errorf("%w: %s", ErrNilComponent, loc)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[loc]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicate, loc)
	}
	r.entries[loc] = c

	r.logger.Debug("registered", "location", loc.String(), "count", len(r.entries))
	return nil
}

// Unregister removes loc and reports whether an entry was present.
func (r *Registry) Unregister(loc location.Location) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[loc]; !exists {
		return false
	}
	delete(r.entries, loc)

	r.logger.Debug("unregistered", "location", loc.String(), "count", len(r.entries))
	return true
}

// Lookup returns the component at loc.
func (r *Registry) Lookup(loc location.Location) (component.Component, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.entries[loc]
	return c, ok
}

// LocationOf finds the location c is registered under, by identity.
// This is a linear scan.
func (r *Registry) LocationOf(c component.Component) (location.Location, bool) {
	if isNil(c) {
		return location.Location{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for loc, entry := range r.entries {
		if sameComponent(entry, c) {
			return loc, true
		}
	}
	return location.Location{}, false
}

// Keys returns a sorted snapshot of the registered locations. The slice is
// safe to iterate while the registry is being modified.
func (r *Registry) Keys() []location.Location {
	r.mu.RLock()
	keys := make([]location.Location, 0, len(r.entries))
	for loc := range r.entries {
		keys = append(keys, loc)
	}
	r.mu.RUnlock()

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Class != keys[j].Class {
			return keys[i].Class < keys[j].Class
		}
		return keys[i].Name < keys[j].Name
	})
	return keys
}

// Len returns the number of registered components.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Clear drops every entry and returns how many were removed.
func (r *Registry) Clear() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.entries)
	r.entries = make(map[location.Location]component.Component)
	return n
}

// sameComponent compares by identity. Components whose dynamic type is not
// comparable (a struct holding a map, say) can only be matched through
// pointers, so they never compare equal here.
func sameComponent(a, b component.Component) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() || !va.Comparable() {
		return false
	}
	return va.Equal(vb)
}

func isNil(c component.Component) bool {
	if c == nil {
		return true
	}
	v := reflect.ValueOf(c)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}
