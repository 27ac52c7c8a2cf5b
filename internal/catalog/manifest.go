package catalog

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/uts-core/internal/location"
)

// Manifest is a YAML file defining classes as aliases of other classes:
//
//	classes:
//	  - name: AllSkyCam
//	    base: SimCamera
//	    kinds: [instrument]
//	    description: "All-sky camera on the roof"
//	    options:
//	      width: 1280
//	      height: 960
type Manifest struct {
	Classes []ManifestClass `yaml:"classes"`

	path string
}

// ManifestClass is one entry of a Manifest.
type ManifestClass struct {
	Name        string         `yaml:"name"`
	Base        string         `yaml:"base"`
	Kinds       []string       `yaml:"kinds,omitempty"`
	Description string         `yaml:"description,omitempty"`
	Options     map[string]any `yaml:"options,omitempty"`
}

// LoadManifest reads and validates a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrInvalidManifest, path, err)
	}
	return ParseManifest(path, data)
}

// ParseManifest parses manifest content; path is only used in errors.
func ParseManifest(path string, data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %w", ErrInvalidManifest, path, err)
	}
	m.path = path

	var errs []string
	seen := make(map[string]bool, len(m.Classes))
	for i := range m.Classes {
		mc := &m.Classes[i]
		mc.Name = strings.TrimSpace(mc.Name)
		mc.Base = strings.TrimSpace(mc.Base)

		switch {
		case mc.Name == "":
			errs = append(errs, fmt.Sprintf("classes[%d].name is required", i))
			continue
		case mc.Base == "":
			errs = append(errs, fmt.Sprintf("classes[%d].base is required", i))
		case strings.EqualFold(mc.Name, mc.Base):
			errs = append(errs, fmt.Sprintf("classes[%d] (%s) cannot alias itself", i, mc.Name))
		}

		key := strings.ToLower(mc.Name)
		if seen[key] {
			errs = append(errs, fmt.Sprintf("classes[%d].name %q is defined twice", i, mc.Name))
		}
		seen[key] = true

		if _, err := mc.kinds(); err != nil {
			errs = append(errs, fmt.Sprintf("classes[%d]: %v", i, err))
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s: %s", ErrInvalidManifest, path, strings.Join(errs, "; "))
	}
	return &m, nil
}

// Path returns the file the manifest was loaded from.
func (m *Manifest) Path() string {
	return m.path
}

// Find returns the class named name, ignoring case.
func (m *Manifest) Find(name string) (*ManifestClass, bool) {
	for i := range m.Classes {
		if strings.EqualFold(m.Classes[i].Name, name) {
			return &m.Classes[i], true
		}
	}
	return nil, false
}

func (mc *ManifestClass) kinds() ([]location.Kind, error) {
	kinds := make([]location.Kind, 0, len(mc.Kinds))
	for _, s := range mc.Kinds {
		k, err := location.ParseKind(s)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}
