package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nerrad567/uts-core/internal/component"
)

// maxAliasDepth bounds manifest alias chains (A aliases B aliases C ...).
const maxAliasDepth = 8

// Logger defines the logging interface used by the IncludeResolver.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// IncludeResolver resolves names against a base resolver first and then
// against the manifests (*.yaml, *.yml) found in a list of include paths.
//
// Directories are searched in order and the first manifest defining a name
// wins. Unreadable directories are skipped; invalid manifests are skipped
// with a warning.
type IncludeResolver struct {
	base   Resolver
	paths  func() []string
	logger Logger
}

// NewIncludeResolver creates a resolver over base. paths is called on every
// manifest lookup, so paths appended later are honoured.
func NewIncludeResolver(base Resolver, paths func() []string) *IncludeResolver {
	if paths == nil {
		paths = func() []string { return nil }
	}
	return &IncludeResolver{base: base, paths: paths, logger: component.NopLogger{}}
}

// SetLogger sets the logger for the resolver.
func (r *IncludeResolver) SetLogger(logger Logger) {
	if logger == nil {
		logger = component.NopLogger{}
	}
	r.logger = logger
}

// Resolve implements Resolver.
func (r *IncludeResolver) Resolve(name string) (*Class, error) {
	return r.resolve(strings.TrimSpace(name), 0)
}

func (r *IncludeResolver) resolve(name string, depth int) (*Class, error) {
	cls, err := r.base.Resolve(name)
	if err == nil {
		return cls, nil
	}
	if !errors.Is(err, ErrClassNotFound) {
		return nil, err
	}

	mc, source := r.find(name)
	if mc == nil {
		return nil, err
	}
	if depth >= maxAliasDepth {
		return nil, fmt.Errorf("%w: alias chain for %s is deeper than %d", ErrUnknownBase, name, maxAliasDepth)
	}

	base, err := r.resolve(mc.Base, depth+1)
	if err != nil {
		if errors.Is(err, ErrClassNotFound) {
			return nil, fmt.Errorf("%w: %s (%s) aliases %s", ErrUnknownBase, mc.Name, source, mc.Base)
		}
		return nil, err
	}

	return aliasClass(mc, source, base)
}

func aliasClass(mc *ManifestClass, source string, base *Class) (*Class, error) {
	kinds, err := mc.kinds()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidManifest, source, err)
	}
	for _, k := range kinds {
		if !base.Supports(k) {
			return nil, fmt.Errorf("%w: %s lists kind %s not supported by base %s", ErrInvalidManifest, mc.Name, k, base.Name)
		}
	}
	if len(kinds) == 0 {
		kinds = base.Kinds
	}

	description := mc.Description
	if description == "" {
		description = base.Description
	}

	return &Class{
		Name:        mc.Name,
		Kinds:       kinds,
		Description: description,
		Defaults:    base.Defaults.Merge(mc.Options),
		Base:        base.Name,
		Source:      source,
		New:         base.New,
	}, nil
}

// find returns the first manifest class named name and the file defining it.
func (r *IncludeResolver) find(name string) (*ManifestClass, string) {
	for _, m := range r.manifests() {
		if mc, ok := m.Find(name); ok {
			return mc, m.Path()
		}
	}
	return nil, ""
}

// manifests loads every valid manifest in the include paths, in search order.
func (r *IncludeResolver) manifests() []*Manifest {
	var out []*Manifest
	for _, dir := range r.paths() {
		entries, err := os.ReadDir(dir)
		if err != nil {
			r.logger.Debug("skipping include path", "path", dir, "error", err)
			continue
		}

		names := make([]string, 0, len(entries))
		for _, e := range entries {
			ext := strings.ToLower(filepath.Ext(e.Name()))
			if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)

		for _, n := range names {
			m, err := LoadManifest(filepath.Join(dir, n))
			if err != nil {
				r.logger.Warn("ignoring invalid class manifest", "error", err)
				continue
			}
			out = append(out, m)
		}
	}
	return out
}

// Classes lists the base classes plus every resolvable manifest class.
// Manifest classes shadowed by an earlier definition are omitted.
func (r *IncludeResolver) Classes() []*Class {
	var out []*Class
	seen := make(map[string]bool)

	if l, ok := r.base.(interface{ Classes() []*Class }); ok {
		for _, cls := range l.Classes() {
			seen[strings.ToLower(cls.Name)] = true
			out = append(out, cls)
		}
	}

	for _, m := range r.manifests() {
		for i := range m.Classes {
			key := strings.ToLower(m.Classes[i].Name)
			if seen[key] {
				continue
			}
			seen[key] = true

			cls, err := r.Resolve(m.Classes[i].Name)
			if err != nil {
				r.logger.Warn("manifest class does not resolve", "class", m.Classes[i].Name, "error", err)
				continue
			}
			out = append(out, cls)
		}
	}

	sortClasses(out)
	return out
}
