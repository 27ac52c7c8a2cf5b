package location

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind is the category a component belongs to. Each kind has its own registry.
type Kind string

// Component kinds.
const (
	Instrument Kind = "instrument"
	Controller Kind = "controller"
	Driver     Kind = "driver"
)

// Separators of the canonical form kind:ClassName/name.
const (
	kindSeparator = ":"
	nameSeparator = "/"
)

const maxPartLength = 128

var (
	classRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	nameRegex  = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.\-]*$`)
)

// Kinds returns every kind in teardown order: controllers depend on
// instruments, which depend on drivers.
func Kinds() []Kind {
	return []Kind{Controller, Instrument, Driver}
}

// ParseKind parses a kind token, case-insensitively.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case Instrument, Controller, Driver:
		return true
	}
	return false
}

func (k Kind) String() string {
	return string(k)
}

// Location addresses one component: its kind, the class that builds it and
// its name. Locations are comparable and used directly as map keys.
type Location struct {
	Kind  Kind
	Class string
	Name  string
}

// New builds a Location from its parts, validating each of them.
func New(kind Kind, class, name string) (Location, error) {
	k, err := ParseKind(string(kind))
	if err != nil {
		return Location{}, fmt.Errorf("%w: %w", ErrInvalidLocation, err)
	}
	loc := Location{
		Kind:  k,
		Class: strings.TrimSpace(class),
		Name:  strings.TrimSpace(name),
	}
	if err := loc.validate(); err != nil {
		return Location{}, err
	}
	return loc, nil
}

// Parse parses the canonical form "kind:ClassName/name".
//
// Surrounding whitespace is trimmed and the kind token is lower-cased; class
// and name keep their case. Parse(l.String()) == l for every valid l.
func Parse(s string) (Location, error) {
	trimmed := strings.TrimSpace(s)

	kindPart, rest, ok := strings.Cut(trimmed, kindSeparator)
	if !ok {
		return Location{}, fmt.Errorf("%w: missing %q in %q", ErrInvalidLocation, kindSeparator, s)
	}
	class, name, ok := strings.Cut(rest, nameSeparator)
	if !ok {
		return Location{}, fmt.Errorf("%w: missing %q in %q", ErrInvalidLocation, nameSeparator, s)
	}

	loc, err := New(Kind(kindPart), class, name)
	if err != nil {
		return Location{}, fmt.Errorf("%w (input %q)", err, s)
	}
	return loc, nil
}

// MustParse is Parse for literals known to be valid. It panics on error.
func MustParse(s string) Location {
	loc, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return loc
}

func (l Location) validate() error {
	switch {
	case l.Class == "":
		return fmt.Errorf("%w: empty class name", ErrInvalidLocation)
	case len(l.Class) > maxPartLength:
		return fmt.Errorf("%w: class name exceeds %d characters", ErrInvalidLocation, maxPartLength)
	case !classRegex.MatchString(l.Class):
		return fmt.Errorf("%w: class name %q must be an identifier", ErrInvalidLocation, l.Class)
	case l.Name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidLocation)
	case len(l.Name) > maxPartLength:
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidLocation, maxPartLength)
	case !nameRegex.MatchString(l.Name):
		return fmt.Errorf("%w: name %q contains forbidden characters", ErrInvalidLocation, l.Name)
	}
	return nil
}

// String returns the canonical form "kind:ClassName/name".
func (l Location) String() string {
	return string(l.Kind) + kindSeparator + l.Class + nameSeparator + l.Name
}

// Path returns the location as "kind/ClassName/name", the form used in MQTT
// topics and HTTP routes.
func (l Location) Path() string {
	return string(l.Kind) + "/" + l.Class + "/" + l.Name
}

// IsZero reports whether l is the zero Location.
func (l Location) IsZero() bool {
	return l == Location{}
}

// MarshalText implements encoding.TextMarshaler.
func (l Location) MarshalText() ([]byte, error) {
	if l.IsZero() {
		return []byte{}, nil
	}
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Location) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
