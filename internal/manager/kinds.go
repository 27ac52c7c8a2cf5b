package manager

import (
	"context"
	"fmt"

	"github.com/nerrad567/uts-core/internal/catalog"
	"github.com/nerrad567/uts-core/internal/component"
	"github.com/nerrad567/uts-core/internal/location"
	"github.com/nerrad567/uts-core/internal/proxy"
)

// Per-kind forms of the generic operations. Each rejects a location of
// another kind with ErrKindMismatch.

func checkKind(op string, loc location.Location, want location.Kind) error {
	if loc.Kind != want {
		return opError(op, loc, fmt.Errorf("%w: want %s", ErrKindMismatch, want))
	}
	return nil
}

// AddInstrument adds an instrument.
func (m *Manager) AddInstrument(loc location.Location, opts component.Options) error {
	if err := checkKind("add", loc, location.Instrument); err != nil {
		return err
	}
	return m.Add(loc, opts)
}

// AddController adds a controller.
func (m *Manager) AddController(loc location.Location, opts component.Options) error {
	if err := checkKind("add", loc, location.Controller); err != nil {
		return err
	}
	return m.Add(loc, opts)
}

// AddDriver adds a driver.
func (m *Manager) AddDriver(loc location.Location, opts component.Options) error {
	if err := checkKind("add", loc, location.Driver); err != nil {
		return err
	}
	return m.Add(loc, opts)
}

// InitInstrument initialises an instrument and starts its main.
func (m *Manager) InitInstrument(ctx context.Context, loc location.Location, opts component.Options) error {
	if err := checkKind("init", loc, location.Instrument); err != nil {
		return err
	}
	return m.Init(ctx, loc, opts)
}

// InitController initialises a controller and starts its main.
func (m *Manager) InitController(ctx context.Context, loc location.Location, opts component.Options) error {
	if err := checkKind("init", loc, location.Controller); err != nil {
		return err
	}
	return m.Init(ctx, loc, opts)
}

// InitDriver initialises a driver and starts its main.
func (m *Manager) InitDriver(ctx context.Context, loc location.Location, opts component.Options) error {
	if err := checkKind("init", loc, location.Driver); err != nil {
		return err
	}
	return m.Init(ctx, loc, opts)
}

// ShutdownInstrument shuts an instrument down and unregisters it.
func (m *Manager) ShutdownInstrument(ctx context.Context, loc location.Location) error {
	if err := checkKind("shutdown", loc, location.Instrument); err != nil {
		return err
	}
	return m.ShutdownComponent(ctx, loc)
}

// ShutdownController shuts a controller down and unregisters it.
func (m *Manager) ShutdownController(ctx context.Context, loc location.Location) error {
	if err := checkKind("shutdown", loc, location.Controller); err != nil {
		return err
	}
	return m.ShutdownComponent(ctx, loc)
}

// ShutdownDriver shuts a driver down and unregisters it.
func (m *Manager) ShutdownDriver(ctx context.Context, loc location.Location) error {
	if err := checkKind("shutdown", loc, location.Driver); err != nil {
		return err
	}
	return m.ShutdownComponent(ctx, loc)
}

// RemoveInstrument unregisters an instrument without calling Shutdown.
func (m *Manager) RemoveInstrument(loc location.Location) bool {
	return loc.Kind == location.Instrument && m.Remove(loc)
}

// RemoveController unregisters a controller without calling Shutdown.
func (m *Manager) RemoveController(loc location.Location) bool {
	return loc.Kind == location.Controller && m.Remove(loc)
}

// RemoveDriver unregisters a driver without calling Shutdown.
func (m *Manager) RemoveDriver(loc location.Location) bool {
	return loc.Kind == location.Driver && m.Remove(loc)
}

// GetInstrument returns a proxy for a registered instrument.
func (m *Manager) GetInstrument(loc location.Location) (*proxy.Proxy, error) {
	if err := checkKind("get", loc, location.Instrument); err != nil {
		return nil, err
	}
	return m.Get(loc)
}

// GetController returns a proxy for a registered controller.
func (m *Manager) GetController(loc location.Location) (*proxy.Proxy, error) {
	if err := checkKind("get", loc, location.Controller); err != nil {
		return nil, err
	}
	return m.Get(loc)
}

// GetDriver returns a proxy for a registered driver.
func (m *Manager) GetDriver(loc location.Location) (*proxy.Proxy, error) {
	if err := checkKind("get", loc, location.Driver); err != nil {
		return nil, err
	}
	return m.Get(loc)
}

// LookupInstrument returns a registered instrument itself.
func (m *Manager) LookupInstrument(loc location.Location) (component.Component, error) {
	if err := checkKind("lookup", loc, location.Instrument); err != nil {
		return nil, err
	}
	return m.Lookup(loc)
}

// LookupController returns a registered controller itself.
func (m *Manager) LookupController(loc location.Location) (component.Component, error) {
	if err := checkKind("lookup", loc, location.Controller); err != nil {
		return nil, err
	}
	return m.Lookup(loc)
}

// LookupDriver returns a registered driver itself.
func (m *Manager) LookupDriver(loc location.Location) (component.Component, error) {
	if err := checkKind("lookup", loc, location.Driver); err != nil {
		return nil, err
	}
	return m.Lookup(loc)
}

// locator is the view of the manager handed to component factories.
// It only looks components up and never takes the operation lock.
type locator struct {
	m *Manager
}

func (l locator) Instrument(loc location.Location) (*proxy.Proxy, error) {
	return l.m.GetInstrument(loc)
}

func (l locator) Controller(loc location.Location) (*proxy.Proxy, error) {
	return l.m.GetController(loc)
}

func (l locator) Driver(loc location.Location) (*proxy.Proxy, error) {
	return l.m.GetDriver(loc)
}

func (l locator) Lookup(loc location.Location) (component.Component, error) {
	return l.m.Lookup(loc)
}

// Locator returns the lookup-only view of the manager given to components.
func (m *Manager) Locator() catalog.Locator {
	return locator{m: m}
}
