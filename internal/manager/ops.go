package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/uts-core/internal/catalog"
	"github.com/nerrad567/uts-core/internal/component"
	"github.com/nerrad567/uts-core/internal/lifecycle"
	"github.com/nerrad567/uts-core/internal/location"
)

// The primitives below run with opMu held.

func (m *Manager) add(loc location.Location, opts component.Options) error {
	start := time.Now()

	err := m.doAdd(loc, opts)
	if err != nil {
		m.logger.Error("failed to add component", "kind", loc.Kind, "location", loc.String(), "error", err)
		m.emit(lifecycle.Event{Op: lifecycle.OpAdd, Location: loc, State: lifecycle.StateFailed, Err: err, Duration: time.Since(start)})
		return opError("add", loc, err)
	}

	m.logger.Info("component added", "kind", loc.Kind, "location", loc.String())
	m.emit(lifecycle.Event{Op: lifecycle.OpAdd, Location: loc, State: lifecycle.StateRegistered, Duration: time.Since(start)})
	return nil
}

func (m *Manager) doAdd(loc location.Location, opts component.Options) error {
	if m.isClosed() {
		return ErrClosed
	}
	reg, err := m.registry(loc)
	if err != nil {
		return err
	}
	if _, exists := reg.Lookup(loc); exists {
		return ErrDuplicate
	}

	cls, err := m.class(loc.Class)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrResolution, err)
	}
	if !cls.Supports(loc.Kind) {
		return fmt.Errorf("%w: class %s cannot be used as %s", ErrResolution, cls.Name, loc.Kind)
	}

	env := catalog.Env{
		Location: loc,
		Options:  opts,
		Logger:   component.WithFields(m.logger, "component", loc.String()),
		Locator:  locator{m: m},
	}
	var c component.Component
	err = guard(func() error {
		var buildErr error
		c, buildErr = cls.Build(env)
		return buildErr
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConstruction, err)
	}
	if c == nil {
		return fmt.Errorf("%w: class %s returned no component", ErrConstruction, cls.Name)
	}

	if err := reg.Register(loc, c); err != nil {
		return err
	}

	m.mu.Lock()
	m.entries[loc] = &entry{class: cls.Name, state: lifecycle.StateRegistered, since: time.Now()}
	m.mu.Unlock()
	return nil
}

// class resolves name once; later calls reuse the cached class.
// Failures are not cached, so a manifest added to an include path later
// can still satisfy the name.
func (m *Manager) class(name string) (*catalog.Class, error) {
	key := strings.ToLower(name)
	if cls, ok := m.classes[key]; ok {
		return cls, nil
	}
	cls, err := m.resolver.Resolve(name)
	if err != nil {
		return nil, err
	}
	m.classes[key] = cls
	return cls, nil
}

func (m *Manager) init(ctx context.Context, loc location.Location, opts component.Options) error {
	if m.isClosed() {
		return opError("init", loc, ErrClosed)
	}
	p := m.workerPool()
	if p == nil {
		m.logger.Error("cannot init component without a worker pool", "kind", loc.Kind, "location", loc.String())
		return opError("init", loc, ErrPoolUnavailable)
	}
	reg, err := m.registry(loc)
	if err != nil {
		return opError("init", loc, err)
	}

	if _, ok := reg.Lookup(loc); !ok {
		if err := m.add(loc, opts); err != nil {
			return err
		}
	}
	c, ok := reg.Lookup(loc)
	if !ok {
		return opError("init", loc, ErrNotRegistered)
	}

	if m.hasRun(loc) {
		return opError("init", loc, ErrAlreadyRunning)
	}

	start := time.Now()
	if err := guard(func() error { return c.Init(ctx) }); err != nil {
		err = fmt.Errorf("%w: %w", ErrLifecycle, err)
		m.logger.Error("component init failed", "kind", loc.Kind, "location", loc.String(), "error", err)
		m.setState(loc, lifecycle.StateFailed, err)
		m.emit(lifecycle.Event{Op: lifecycle.OpInit, Location: loc, State: lifecycle.StateFailed, Err: err, Duration: time.Since(start)})
		return opError("init", loc, err)
	}
	m.setState(loc, lifecycle.StateInitialized, nil)
	m.emit(lifecycle.Event{Op: lifecycle.OpInit, Location: loc, State: lifecycle.StateInitialized, Duration: time.Since(start)})

	return m.start(loc, c, p)
}

// start submits c's main to the pool exactly once. The entry stays
// initialized while the task is queued and becomes running when a worker
// picks it up.
func (m *Manager) start(loc location.Location, c component.Component, p WorkerPool) error {
	mainCtx, cancel := context.WithCancel(m.ctx)
	r := &run{cancel: cancel, started: time.Now()}

	task := func(poolCtx context.Context) error {
		if !m.markRunning(mainCtx, loc, r) {
			return context.Canceled
		}
		stop := context.AfterFunc(poolCtx, cancel)
		defer stop()
		return guard(func() error { return c.Main(mainCtx) })
	}

	// Held across Submit so the task cannot look for its run before it is
	// attached to the entry.
	m.mu.Lock()
	h, err := p.Submit(loc.String()+"#main", task)
	if err == nil {
		r.handle = h
		if e, ok := m.entries[loc]; ok {
			e.lastErr = nil
			e.run = r
		}
	}
	m.mu.Unlock()

	if err != nil {
		cancel()
		err = fmt.Errorf("%w: %w", ErrPoolUnavailable, err)
		m.logger.Error("failed to submit component main", "kind", loc.Kind, "location", loc.String(), "error", err)
		m.setState(loc, lifecycle.StateInitialized, err)
		m.emit(lifecycle.Event{Op: lifecycle.OpStart, Location: loc, State: lifecycle.StateInitialized, Err: err})
		return opError("init", loc, err)
	}

	m.logger.Debug("component main submitted", "kind", loc.Kind, "location", loc.String(), "task_id", h.ID)
	go m.watch(loc, r)
	return nil
}

// markRunning is called on the worker right before main. It reports false
// when the run was detached or cancelled while it waited in the queue, in
// which case main must not be called.
func (m *Manager) markRunning(ctx context.Context, loc location.Location, r *run) bool {
	m.mu.Lock()
	e, ok := m.entries[loc]
	if !ok || e.run != r || ctx.Err() != nil {
		m.mu.Unlock()
		return false
	}
	r.running = true
	r.started = time.Now()
	e.state = lifecycle.StateRunning
	e.since = r.started
	m.mu.Unlock()

	m.logger.Info("component started", "kind", loc.Kind, "location", loc.String(), "task_id", r.handle.ID)
	m.emit(lifecycle.Event{Op: lifecycle.OpStart, Location: loc, State: lifecycle.StateRunning, TaskID: r.handle.ID})
	return true
}

// watch records the exit of a main that returned on its own.
func (m *Manager) watch(loc location.Location, r *run) {
	<-r.handle.Done()

	m.mu.Lock()
	e, ok := m.entries[loc]
	if !ok || e.run != r {
		// Detached by shutdown or remove, which record the exit themselves.
		m.mu.Unlock()
		return
	}
	e.run = nil
	m.mu.Unlock()

	m.exited(loc, r)
}

// exited records the end of r and releases its context.
func (m *Manager) exited(loc location.Location, r *run) {
	r.cancel()
	err := r.handle.Err()
	state := lifecycle.StateStopped
	if err != nil && !errors.Is(err, context.Canceled) {
		state = lifecycle.StateFailed
		m.logger.Error("component main failed", "kind", loc.Kind, "location", loc.String(), "error", err)
	} else {
		err = nil
		m.logger.Info("component main returned", "kind", loc.Kind, "location", loc.String())
	}
	m.setState(loc, state, err)
	m.emit(lifecycle.Event{
		Op:       lifecycle.OpExit,
		Location: loc,
		State:    state,
		Err:      err,
		Duration: time.Since(r.started),
		TaskID:   r.handle.ID,
	})
}

// detach takes ownership of loc's main, if any. The second result reports
// whether main was ever called; a run detached while queued never calls it.
func (m *Manager) detach(loc location.Location) (*run, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[loc]
	if !ok || e.run == nil {
		return nil, false
	}
	r := e.run
	e.run = nil
	return r, r.running
}

// hasRun reports whether loc has a main queued or running.
func (m *Manager) hasRun(loc location.Location) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[loc]
	return ok && e.run != nil
}

// stop cancels loc's main and waits up to the stop timeout for it to return.
// A main that is still queued is dropped without waiting.
func (m *Manager) stop(ctx context.Context, loc location.Location) {
	r, running := m.detach(loc)
	if r == nil {
		return
	}
	r.cancel()
	if !running {
		m.logger.Debug("dropped queued component main", "location", loc.String(), "task_id", r.handle.ID)
		m.exited(loc, r)
		return
	}

	timer := time.NewTimer(m.stopTimeout)
	defer timer.Stop()

	select {
	case <-r.handle.Done():
		m.exited(loc, r)
	case <-ctx.Done():
		m.logger.Warn("gave up waiting for component main", "location", loc.String(), "error", ctx.Err())
	case <-timer.C:
		m.logger.Warn("component main did not stop in time", "location", loc.String(), "timeout", m.stopTimeout)
	}
}

func (m *Manager) shutdown(ctx context.Context, loc location.Location) error {
	reg, err := m.registry(loc)
	if err != nil {
		return opError("shutdown", loc, err)
	}
	c, ok := reg.Lookup(loc)
	if !ok {
		return opError("shutdown", loc, ErrNotRegistered)
	}

	start := time.Now()
	m.stop(ctx, loc)

	err = guard(func() error { return c.Shutdown(ctx) })
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrLifecycle, err)
		m.logger.Error("component shutdown failed", "kind", loc.Kind, "location", loc.String(), "error", err)
	}

	// The entry goes even when the callback failed.
	m.unregister(loc)

	state := lifecycle.StateRemoved
	if err != nil {
		state = lifecycle.StateFailed
	}
	m.emit(lifecycle.Event{Op: lifecycle.OpShutdown, Location: loc, State: state, Err: err, Duration: time.Since(start)})
	if err != nil {
		return opError("shutdown", loc, err)
	}
	m.logger.Info("component shut down", "kind", loc.Kind, "location", loc.String())
	return nil
}

func (m *Manager) remove(loc location.Location) bool {
	if _, err := m.registry(loc); err != nil {
		return false
	}
	if r, _ := m.detach(loc); r != nil {
		r.cancel()
	}
	if !m.unregister(loc) {
		return false
	}
	m.logger.Info("component removed", "kind", loc.Kind, "location", loc.String())
	m.emit(lifecycle.Event{Op: lifecycle.OpRemove, Location: loc, State: lifecycle.StateRemoved})
	return true
}

func (m *Manager) unregister(loc location.Location) bool {
	removed := m.registries[loc.Kind].Unregister(loc)
	m.mu.Lock()
	delete(m.entries, loc)
	m.mu.Unlock()
	return removed
}
