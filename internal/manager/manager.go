package manager

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/uts-core/internal/catalog"
	"github.com/nerrad567/uts-core/internal/component"
	"github.com/nerrad567/uts-core/internal/lifecycle"
	"github.com/nerrad567/uts-core/internal/location"
	"github.com/nerrad567/uts-core/internal/pool"
	"github.com/nerrad567/uts-core/internal/proxy"
	"github.com/nerrad567/uts-core/internal/registry"
)

// DefaultStopTimeout is how long shutdown waits for a running main to return.
const DefaultStopTimeout = 10 * time.Second

// Logger defines the logging interface used by the Manager.
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

// WorkerPool executes component mains and proxied calls.
// *pool.Pool satisfies it.
type WorkerPool interface {
	Submit(name string, task pool.Task) (*pool.Handle, error)
}

// Config holds manager settings.
type Config struct {
	// StopTimeout bounds the wait for a running main during shutdown.
	// Zero means DefaultStopTimeout.
	StopTimeout time.Duration

	// IncludePaths are searched for class manifests, in order. Paths that
	// cannot be used are logged and skipped.
	IncludePaths []string

	// Logger is used from construction on. Nil discards logs; SetLogger
	// replaces it.
	Logger Logger
}

// Status is a snapshot of one registered component.
type Status struct {
	Location  location.Location `json:"location"`
	Class     string            `json:"class"`
	State     lifecycle.State   `json:"state"`
	Since     time.Time         `json:"since"`
	LastError string            `json:"last_error,omitempty"`
	TaskID    string            `json:"task_id,omitempty"`
}

// Stats counts registered components.
type Stats struct {
	ByKind  map[location.Kind]int   `json:"by_kind"`
	ByState map[lifecycle.State]int `json:"by_state"`
	Total   int                     `json:"total"`
}

// run is one submitted main. handle, running and started are guarded by
// Manager.mu.
type run struct {
	cancel  context.CancelFunc
	handle  *pool.Handle
	running bool
	started time.Time
}

// entry is the manager's bookkeeping for a registered location.
type entry struct {
	class   string
	state   lifecycle.State
	since   time.Time
	lastErr error
	run     *run
}

// Manager owns the instrument, controller and driver registries and drives
// every component through add, init, main and shutdown.
//
// Lifecycle operations are serialised by an operation lock: Init and
// Shutdown callbacks run synchronously on the caller's goroutine while it is
// held, and must not block. Lookups (Get*, Lookup*, the Locator handed to
// factories) never take the operation lock, so components may reach their
// peers from any callback.
//
// All public methods are thread-safe.
type Manager struct {
	// opMu serialises add, remove, init and shutdown. It also guards classes.
	opMu    sync.Mutex
	classes map[string]*catalog.Class // resolved classes keyed by lower-cased name

	registries map[location.Kind]*registry.Registry
	resolver   *catalog.IncludeResolver

	// mu guards the fields below.
	mu          sync.RWMutex
	pool        WorkerPool
	paths       []string
	entries     map[location.Location]*entry
	sinks       lifecycle.Fanout
	closed      bool
	stopTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	logger Logger
}

// New creates a manager resolving classes from base, falling back to the
// manifests in the configured include paths.
func New(base catalog.Resolver, cfg Config) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		classes:     make(map[string]*catalog.Class),
		registries:  make(map[location.Kind]*registry.Registry, 3),
		entries:     make(map[location.Location]*entry),
		stopTimeout: cfg.StopTimeout,
		ctx:         ctx,
		cancel:      cancel,
	}
	if m.stopTimeout <= 0 {
		m.stopTimeout = DefaultStopTimeout
	}
	for _, kind := range location.Kinds() {
		m.registries[kind] = registry.New(kind)
	}
	m.resolver = catalog.NewIncludeResolver(base, m.IncludePaths)
	m.SetLogger(cfg.Logger)

	for _, p := range cfg.IncludePaths {
		if err := m.AppendPath(p); err != nil {
			m.logger.Warn("ignoring include path", "path", p, "error", err)
		}
	}
	return m
}

// SetLogger sets the logger for the manager and its registries.
func (m *Manager) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	m.logger = logger
	m.resolver.SetLogger(logger)
	for _, reg := range m.registries {
		reg.SetLogger(logger)
	}
}

// SetPool attaches the worker pool. It must be called before any init.
func (m *Manager) SetPool(p WorkerPool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pool = p
}

// AddSink subscribes s to lifecycle events. Sinks may be called from pool
// workers as well as from the operation path, so they must be safe for
// concurrent use.
func (m *Manager) AddSink(s lifecycle.Sink) {
	if s == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sinks = append(m.sinks, s)
}

// AppendPath adds dir to the include paths searched for class manifests.
// The path is made absolute; duplicates are ignored.
func (m *Manager) AppendPath(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return errors.New("manager: empty include path")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("manager: include path %s: %w", dir, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.paths {
		if p == abs {
			return nil
		}
	}
	m.paths = append(m.paths, abs)
	return nil
}

// IncludePaths returns a copy of the include paths in search order.
func (m *Manager) IncludePaths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.paths))
	copy(out, m.paths)
	return out
}

// Classes lists the classes that can currently be resolved.
func (m *Manager) Classes() []*catalog.Class {
	return m.resolver.Classes()
}

// Context returns the manager's root context. Every component main runs
// under a child of it and it is cancelled by Shutdown.
func (m *Manager) Context() context.Context {
	return m.ctx
}

// Add constructs the component for loc and registers it.
func (m *Manager) Add(loc location.Location, opts component.Options) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	return m.add(loc, opts)
}

// Init initialises the component at loc, adding it first when needed, and
// submits its main to the worker pool.
func (m *Manager) Init(ctx context.Context, loc location.Location, opts component.Options) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	return m.init(ctx, loc, opts)
}

// ShutdownComponent stops and tears down the component at loc, then
// unregisters it. The entry is removed even when the Shutdown callback fails.
func (m *Manager) ShutdownComponent(ctx context.Context, loc location.Location) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	return m.shutdown(ctx, loc)
}

// Remove cancels the component's main, if running, and unregisters it
// without calling Shutdown. It reports whether an entry was removed.
func (m *Manager) Remove(loc location.Location) bool {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	return m.remove(loc)
}

// Shutdown tears down every component: all controllers first, then all
// instruments, then all drivers. It continues past individual failures and
// returns them joined. Afterwards the manager accepts no new components.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	var errs []error
	for _, kind := range location.Kinds() {
		reg := m.registries[kind]
		keys := reg.Keys()
		for _, loc := range keys {
			if err := m.shutdown(ctx, loc); err != nil {
				errs = append(errs, err)
			}
		}
		if n := reg.Clear(); n > 0 {
			m.logger.Warn("registry not empty after shutdown", "kind", kind, "count", n)
		}
		m.logger.Info("components shut down", "kind", kind, "count", len(keys))
	}

	m.cancel()
	return errors.Join(errs...)
}

// Lookup returns the component registered at loc.
func (m *Manager) Lookup(loc location.Location) (component.Component, error) {
	reg, ok := m.registries[loc.Kind]
	if !ok {
		return nil, opError("lookup", loc, location.ErrUnknownKind)
	}
	c, ok := reg.Lookup(loc)
	if !ok {
		return nil, opError("lookup", loc, ErrNotRegistered)
	}
	return c, nil
}

// Get returns a proxy routing calls on the component at loc through the
// worker pool.
func (m *Manager) Get(loc location.Location) (*proxy.Proxy, error) {
	c, err := m.Lookup(loc)
	if err != nil {
		return nil, err
	}
	p := m.workerPool()
	if p == nil {
		return nil, opError("get", loc, ErrPoolUnavailable)
	}
	return proxy.New(loc, c, p), nil
}

// LocationOf finds the location c is registered under in any registry.
func (m *Manager) LocationOf(c component.Component) (location.Location, bool) {
	for _, kind := range location.Kinds() {
		if loc, ok := m.registries[kind].LocationOf(c); ok {
			return loc, true
		}
	}
	return location.Location{}, false
}

// Status returns the bookkeeping snapshot for loc.
func (m *Manager) Status(loc location.Location) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[loc]
	if !ok {
		return Status{}, false
	}
	return e.status(loc), true
}

// List returns a snapshot of every registered component, controllers first,
// then instruments, then drivers, each sorted by class and name.
func (m *Manager) List() []Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Status, 0, len(m.entries))
	for _, kind := range location.Kinds() {
		for _, loc := range m.registries[kind].Keys() {
			if e, ok := m.entries[loc]; ok {
				out = append(out, e.status(loc))
			}
		}
	}
	return out
}

// Stats counts registered components by kind and state.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Stats{
		ByKind:  make(map[location.Kind]int, 3),
		ByState: make(map[lifecycle.State]int),
	}
	for _, kind := range location.Kinds() {
		s.ByKind[kind] = 0
	}
	for loc, e := range m.entries {
		s.ByKind[loc.Kind]++
		s.ByState[e.state]++
		s.Total++
	}
	return s
}

func (e *entry) status(loc location.Location) Status {
	s := Status{
		Location: loc,
		Class:    e.class,
		State:    e.state,
		Since:    e.since,
	}
	if e.lastErr != nil {
		s.LastError = e.lastErr.Error()
	}
	if e.run != nil {
		s.TaskID = e.run.handle.ID
	}
	return s
}

func (m *Manager) workerPool() WorkerPool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pool
}

func (m *Manager) isClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

func (m *Manager) registry(loc location.Location) (*registry.Registry, error) {
	reg, ok := m.registries[loc.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", location.ErrUnknownKind, loc.Kind)
	}
	return reg, nil
}

// setState records a transition for loc.
func (m *Manager) setState(loc location.Location, state lifecycle.State, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[loc]
	if !ok {
		return
	}
	e.state = state
	e.since = time.Now()
	e.lastErr = err
}

func (m *Manager) emit(ev lifecycle.Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	m.mu.RLock()
	sinks := m.sinks
	m.mu.RUnlock()
	sinks.Record(ev)
}
