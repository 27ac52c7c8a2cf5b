package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/nerrad567/uts-core/internal/location"
)

type stub struct{ id int }

func (*stub) Init(context.Context) error     { return nil }
func (*stub) Main(context.Context) error     { return nil }
func (*stub) Shutdown(context.Context) error { return nil }

// valueStub is registered by value and holds a map, so it is not comparable.
type valueStub struct{ settings map[string]string }

func (valueStub) Init(context.Context) error     { return nil }
func (valueStub) Main(context.Context) error     { return nil }
func (valueStub) Shutdown(context.Context) error { return nil }

var (
	cam1 = location.MustParse("instrument:FooCam/cam1")
	cam2 = location.MustParse("instrument:FooCam/cam2")
	drv  = location.MustParse("driver:Serial/ttyS0")
)

func TestRegister(t *testing.T) {
	r := New(location.Instrument)
	a, b := &stub{1}, &stub{2}

	if err := r.Register(cam1, a); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	t.Run("duplicate is refused without overwrite", func(t *testing.T) {
		err := r.Register(cam1, b)
		if !errors.Is(err, ErrDuplicate) {
			t.Fatalf("Register() duplicate error = %v, want ErrDuplicate", err)
		}
		got, _ := r.Lookup(cam1)
		if got != a {
			t.Error("duplicate Register overwrote the existing entry")
		}
	})

	t.Run("kind mismatch", func(t *testing.T) {
		if err := r.Register(drv, b); !errors.Is(err, ErrKindMismatch) {
			t.Errorf("Register() driver in instrument registry error = %v, want ErrKindMismatch", err)
		}
	})

	t.Run("nil component", func(t *testing.T) {
		var typedNil *stub
		if err := r.Register(cam2, nil); !errors.Is(err, ErrNilComponent) {
			t.Errorf("Register(nil) error = %v, want ErrNilComponent", err)
		}
		if err := r.Register(cam2, typedNil); !errors.Is(err, ErrNilComponent) {
			t.Errorf("Register(typed nil) error = %v, want ErrNilComponent", err)
		}
	})

	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestUnregister(t *testing.T) {
	r := New(location.Instrument)
	if err := r.Register(cam1, &stub{}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if !r.Unregister(cam1) {
		t.Error("Unregister() = false for registered location")
	}
	if r.Unregister(cam1) {
		t.Error("Unregister() = true for already removed location")
	}
	if _, ok := r.Lookup(cam1); ok {
		t.Error("Lookup() found removed location")
	}

	// Free to register again once removed.
	if err := r.Register(cam1, &stub{}); err != nil {
		t.Errorf("Register() after Unregister error = %v", err)
	}
}

func TestLocationOf(t *testing.T) {
	r := New(location.Instrument)
	a, b := &stub{1}, &stub{1}
	if err := r.Register(cam1, a); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(cam2, b); err != nil {
		t.Fatal(err)
	}

	if loc, ok := r.LocationOf(a); !ok || loc != cam1 {
		t.Errorf("LocationOf(a) = %v, %v; want %v", loc, ok, cam1)
	}
	if loc, ok := r.LocationOf(b); !ok || loc != cam2 {
		t.Errorf("LocationOf(b) = %v, %v; want %v (identity, not equality)", loc, ok, cam2)
	}
	if _, ok := r.LocationOf(&stub{1}); ok {
		t.Error("LocationOf(unregistered) found a location")
	}
	if _, ok := r.LocationOf(nil); ok {
		t.Error("LocationOf(nil) found a location")
	}
}

func TestLocationOf_NonComparable(t *testing.T) {
	r := New(location.Instrument)
	v := valueStub{settings: map[string]string{"a": "b"}}
	if err := r.Register(cam1, v); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	// Must not panic on a non-comparable dynamic type.
	if _, ok := r.LocationOf(v); ok {
		t.Error("LocationOf() matched a non-comparable value")
	}
}

func TestKeys_SnapshotAndOrder(t *testing.T) {
	r := New(location.Instrument)
	for _, s := range []string{"instrument:Zed/a", "instrument:Alpha/b", "instrument:Alpha/a"} {
		if err := r.Register(location.MustParse(s), &stub{}); err != nil {
			t.Fatal(err)
		}
	}

	keys := r.Keys()
	want := []string{"instrument:Alpha/a", "instrument:Alpha/b", "instrument:Zed/a"}
	for i, k := range keys {
		if k.String() != want[i] {
			t.Errorf("Keys()[%d] = %s, want %s", i, k, want[i])
		}
	}

	// Mutating the registry while iterating the snapshot is safe.
	for _, k := range keys {
		r.Unregister(k)
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d after removing every key, want 0", r.Len())
	}
	if len(keys) != 3 {
		t.Errorf("snapshot changed length to %d", len(keys))
	}
}

func TestClear(t *testing.T) {
	r := New(location.Driver)
	if err := r.Register(drv, &stub{}); err != nil {
		t.Fatal(err)
	}
	if n := r.Clear(); n != 1 {
		t.Errorf("Clear() = %d, want 1", n)
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d after Clear, want 0", r.Len())
	}
	if r.Kind() != location.Driver {
		t.Errorf("Kind() = %v, want driver", r.Kind())
	}
}

func TestConcurrentAccess(t *testing.T) {
	r := New(location.Instrument)
	var wg sync.WaitGroup

	for i := range 50 {
		wg.Add(2)
		loc := location.MustParse(fmt.Sprintf("instrument:FooCam/cam%d", i))
		go func() {
			defer wg.Done()
			if err := r.Register(loc, &stub{i}); err != nil {
				t.Errorf("Register(%s) error = %v", loc, err)
			}
		}()
		go func() {
			defer wg.Done()
			_ = r.Keys()
			_, _ = r.Lookup(loc)
		}()
	}
	wg.Wait()

	if r.Len() != 50 {
		t.Errorf("Len() = %d, want 50", r.Len())
	}
}
