package catalog

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/nerrad567/uts-core/internal/component"
	"github.com/nerrad567/uts-core/internal/location"
	"github.com/nerrad567/uts-core/internal/proxy"
)

// Locator gives components access to their peers without handing them the
// manager. Proxies run calls on the worker pool; Lookup returns the
// component itself for synchronous use.
type Locator interface {
	Instrument(loc location.Location) (*proxy.Proxy, error)
	Controller(loc location.Location) (*proxy.Proxy, error)
	Driver(loc location.Location) (*proxy.Proxy, error)
	Lookup(loc location.Location) (component.Component, error)
}

// Env is everything a factory receives to construct one component.
type Env struct {
	Location location.Location
	Options  component.Options
	Logger   component.Logger
	Locator  Locator
}

// Factory constructs a component. It runs synchronously on the manager's
// operation path and must not block or start goroutines; that belongs in
// Init and Main.
type Factory func(env Env) (component.Component, error)

// Class describes a buildable component type.
type Class struct {
	// Name is matched case-insensitively against a location's class.
	Name string `json:"name"`

	// Kinds lists the location kinds the class may be added as. Empty means any.
	Kinds []location.Kind `json:"kinds,omitempty"`

	Description string `json:"description,omitempty"`

	// Defaults are merged under the per-instance options.
	Defaults component.Options `json:"defaults,omitempty"`

	// Base names the class this one aliases, for classes defined in manifests.
	Base string `json:"base,omitempty"`

	// Source is the manifest file that defined the class, if any.
	Source string `json:"source,omitempty"`

	New Factory `json:"-"`
}

// Supports reports whether the class may be added under kind.
func (c *Class) Supports(kind location.Kind) bool {
	if len(c.Kinds) == 0 {
		return true
	}
	for _, k := range c.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Build constructs an instance for env, merging env.Options over the
// class defaults.
func (c *Class) Build(env Env) (component.Component, error) {
	if c.New == nil {
		return nil, fmt.Errorf("%w: class %s has no factory", ErrInvalidClass, c.Name)
	}
	env.Options = c.Defaults.Merge(env.Options)
	if env.Logger == nil {
		env.Logger = component.NopLogger{}
	}
	return c.New(env)
}

// Resolver finds a class by name.
type Resolver interface {
	Resolve(name string) (*Class, error)
}

// Catalog is the set of classes compiled into the binary. It replaces
// loading classes by name from disk: every buildable class is registered
// here at startup.
//
// All public methods are thread-safe.
type Catalog struct {
	mu      sync.RWMutex
	classes map[string]*Class // keyed by lower-cased name
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{classes: make(map[string]*Class)}
}

// Register adds a class. Names are unique regardless of case.
func (c *Catalog) Register(cls Class) error {
	if err := validateClass(&cls); err != nil {
		return err
	}

	key := strings.ToLower(cls.Name)

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.classes[key]; ok {
		return fmt.Errorf("%w: %s (already registered as %s)", ErrDuplicateClass, cls.Name, existing.Name)
	}
	c.classes[key] = &cls
	return nil
}

// MustRegister is Register for built-in classes. It panics on error.
func (c *Catalog) MustRegister(cls Class) {
	if err := c.Register(cls); err != nil {
		panic(err)
	}
}

// Resolve returns the class registered under name, ignoring case.
func (c *Catalog) Resolve(name string) (*Class, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cls, ok := c.classes[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrClassNotFound, name)
	}
	return cls, nil
}

// Classes returns every registered class sorted by name.
func (c *Catalog) Classes() []*Class {
	c.mu.RLock()
	out := make([]*Class, 0, len(c.classes))
	for _, cls := range c.classes {
		out = append(out, cls)
	}
	c.mu.RUnlock()

	sortClasses(out)
	return out
}

func sortClasses(classes []*Class) {
	sort.Slice(classes, func(i, j int) bool {
		return strings.ToLower(classes[i].Name) < strings.ToLower(classes[j].Name)
	})
}

func validateClass(cls *Class) error {
	cls.Name = strings.TrimSpace(cls.Name)
	if cls.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidClass)
	}
	if _, err := location.New(location.Instrument, cls.Name, "check"); err != nil {
		return fmt.Errorf("%w: name %q is not a valid class identifier", ErrInvalidClass, cls.Name)
	}
	if cls.New == nil {
		return fmt.Errorf("%w: %s has no factory", ErrInvalidClass, cls.Name)
	}
	for _, k := range cls.Kinds {
		if !k.Valid() {
			return fmt.Errorf("%w: %s lists unknown kind %q", ErrInvalidClass, cls.Name, k)
		}
	}
	return nil
}
