package builtin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/uts-core/internal/catalog"
	"github.com/nerrad567/uts-core/internal/component"
	"github.com/nerrad567/uts-core/internal/lifecycle"
	"github.com/nerrad567/uts-core/internal/location"
	"github.com/nerrad567/uts-core/internal/manager"
	"github.com/nerrad567/uts-core/internal/pool"
)

// newTestManager returns a manager with the built-in classes and a running pool.
func newTestManager(t *testing.T) *manager.Manager {
	t.Helper()

	cat := catalog.New()
	if err := Register(cat); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	p := pool.New(pool.Config{Workers: 4, QueueSize: 16})
	m := manager.New(cat, manager.Config{StopTimeout: 2 * time.Second})
	m.SetPool(p)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = m.Shutdown(ctx) //nolint:errcheck // best-effort cleanup
		_ = p.Close(ctx)    //nolint:errcheck // best-effort cleanup
	})
	return m
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func stateOf(m *manager.Manager, loc location.Location) lifecycle.State {
	st, ok := m.Status(loc)
	if !ok {
		return lifecycle.StateRemoved
	}
	return st.State
}

// ============================================================================
// Registration
// ============================================================================

func TestRegister(t *testing.T) {
	cat := catalog.New()
	if err := Register(cat); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	for _, name := range []string{ClassDaemon, ClassTicker, ClassSimCamera, ClassSequencer} {
		if _, err := cat.Resolve(name); err != nil {
			t.Errorf("Resolve(%q) error = %v", name, err)
		}
	}

	if err := Register(cat); !errors.Is(err, catalog.ErrDuplicateClass) {
		t.Errorf("second Register() error = %v, want ErrDuplicateClass", err)
	}
}

func TestClasses_Kinds(t *testing.T) {
	want := map[string]location.Kind{
		ClassDaemon:    location.Driver,
		ClassTicker:    location.Driver,
		ClassSimCamera: location.Instrument,
		ClassSequencer: location.Controller,
	}
	for _, cls := range Classes() {
		kind, ok := want[cls.Name]
		if !ok {
			t.Errorf("unexpected class %q", cls.Name)
			continue
		}
		if !cls.Supports(kind) {
			t.Errorf("%s.Supports(%s) = false, want true", cls.Name, kind)
		}
		if cls.Description == "" {
			t.Errorf("%s has no description", cls.Name)
		}
	}
}

// ============================================================================
// Daemon
// ============================================================================

func newDaemon(t *testing.T, opts component.Options) *Daemon {
	t.Helper()
	c, err := NewDaemon(catalog.Env{Options: opts})
	if err != nil {
		t.Fatalf("NewDaemon() error = %v", err)
	}
	d := c.(*Daemon)
	if err := d.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	return d
}

func TestNewDaemon_Options(t *testing.T) {
	tests := []struct {
		name    string
		opts    component.Options
		wantErr error
	}{
		{"missing binary", component.Options{}, ErrMissingOption},
		{"blank binary", component.Options{"binary": "  "}, ErrMissingOption},
		{"bad restart", component.Options{"binary": "sh", "restart": "sometimes"}, component.ErrInvalidOption},
		{"negative restarts", component.Options{"binary": "sh", "max_restarts": -1}, component.ErrInvalidOption},
		{"bad delay", component.Options{"binary": "sh", "restart_delay": "soon"}, component.ErrInvalidOption},
		{"valid", component.Options{"binary": "sh", "args": []any{"-c", "true"}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDaemon(catalog.Env{Options: tt.opts})
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("NewDaemon() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("NewDaemon() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDaemon_InitUnknownBinary(t *testing.T) {
	c, err := NewDaemon(catalog.Env{Options: component.Options{"binary": "uts-no-such-binary"}})
	if err != nil {
		t.Fatalf("NewDaemon() error = %v", err)
	}
	if err := c.Init(context.Background()); err == nil {
		t.Error("Init() error = nil, want lookup failure")
	}
}

func TestDaemon_CleanExit(t *testing.T) {
	d := newDaemon(t, component.Options{"binary": "sh", "args": []any{"-c", "exit 0"}})

	if err := d.Main(context.Background()); err != nil {
		t.Errorf("Main() error = %v, want nil", err)
	}
	if got := d.Describe()["status"]; got != string(ProcessStopped) {
		t.Errorf("status = %v, want %s", got, ProcessStopped)
	}
}

func TestDaemon_FailureWithoutRestart(t *testing.T) {
	d := newDaemon(t, component.Options{
		"binary":  "sh",
		"args":    []any{"-c", "exit 3"},
		"restart": false,
	})

	err := d.Main(context.Background())
	if err == nil {
		t.Fatal("Main() error = nil, want exit error")
	}
	if errors.Is(err, ErrTooManyRestarts) {
		t.Errorf("Main() error = %v, want plain exit error", err)
	}
	desc := d.Describe()
	if desc["status"] != string(ProcessFailed) {
		t.Errorf("status = %v, want %s", desc["status"], ProcessFailed)
	}
	if _, ok := desc["last_error"]; !ok {
		t.Error("Describe() has no last_error")
	}
}

func TestDaemon_TooManyRestarts(t *testing.T) {
	d := newDaemon(t, component.Options{
		"binary":        "sh",
		"args":          []any{"-c", "exit 1"},
		"restart_delay": "5ms",
		"max_restarts":  2,
	})

	err := d.Main(context.Background())
	if !errors.Is(err, ErrTooManyRestarts) {
		t.Fatalf("Main() error = %v, want ErrTooManyRestarts", err)
	}
	if got := d.Restarts(); got != 3 {
		t.Errorf("Restarts() = %d, want 3", got)
	}
}

func TestDaemon_StopsOnCancel(t *testing.T) {
	d := newDaemon(t, component.Options{
		"binary":           "sh",
		"args":             []any{"-c", "sleep 30"},
		"graceful_timeout": "2s",
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Main(ctx) }()

	waitFor(t, "process start", func() bool {
		return d.Describe()["status"] == string(ProcessRunning)
	})
	if _, ok := d.Describe()["pid"]; !ok {
		t.Error("Describe() has no pid while running")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Main() error = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Main() did not return after cancel")
	}

	if err := d.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
	if got := d.Describe()["status"]; got != string(ProcessStopped) {
		t.Errorf("status = %v, want %s", got, ProcessStopped)
	}
}

// ============================================================================
// Ticker
// ============================================================================

func TestTicker_Ticks(t *testing.T) {
	c, err := NewTicker(catalog.Env{Options: component.Options{"interval": "5ms"}})
	if err != nil {
		t.Fatalf("NewTicker() error = %v", err)
	}
	tk := c.(*Ticker)
	if err := tk.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	ticks, unsubscribe := tk.Subscribe(4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tk.Main(ctx) }()

	select {
	case <-ticks:
	case <-time.After(2 * time.Second):
		t.Fatal("no tick received")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Main() error = %v", err)
	}
	if tk.Ticks() == 0 {
		t.Error("Ticks() = 0, want > 0")
	}
	if tk.Last().IsZero() {
		t.Error("Last() is zero")
	}

	unsubscribe()
	unsubscribe()
	if got := tk.Describe()["subscribers"]; got != 0 {
		t.Errorf("subscribers = %v, want 0", got)
	}
}

func TestTicker_ShutdownClosesSubscriptions(t *testing.T) {
	c, err := NewTicker(catalog.Env{})
	if err != nil {
		t.Fatalf("NewTicker() error = %v", err)
	}
	tk := c.(*Ticker)
	ticks, unsubscribe := tk.Subscribe(1)

	tk.Fire()
	if _, ok := <-ticks; !ok {
		t.Fatal("tick channel closed before shutdown")
	}

	if err := tk.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if _, ok := <-ticks; ok {
		t.Error("tick channel still open after shutdown")
	}
	unsubscribe()
}

func TestNewTicker_InvalidInterval(t *testing.T) {
	for _, v := range []any{"0s", "-1s", "often"} {
		if _, err := NewTicker(catalog.Env{Options: component.Options{"interval": v}}); !errors.Is(err, component.ErrInvalidOption) {
			t.Errorf("NewTicker(interval=%v) error = %v, want ErrInvalidOption", v, err)
		}
	}
}

// ============================================================================
// SimCamera
// ============================================================================

func newCamera(t *testing.T, opts component.Options) *SimCamera {
	t.Helper()
	c, err := NewSimCamera(catalog.Env{Options: opts})
	if err != nil {
		t.Fatalf("NewSimCamera() error = %v", err)
	}
	cam := c.(*SimCamera)
	if err := cam.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	return cam
}

func TestSimCamera_Expose(t *testing.T) {
	cam := newCamera(t, component.Options{"width": 32, "height": 16, "exposure": "1ms"})

	f, err := cam.Expose(context.Background(), 0)
	if err != nil {
		t.Fatalf("Expose() error = %v", err)
	}
	if f.Seq != 1 || f.Width != 32 || f.Height != 16 {
		t.Errorf("Frame = %+v, want seq 1 of 32x16", f)
	}
	if f.Exposure != time.Millisecond {
		t.Errorf("Exposure = %v, want 1ms", f.Exposure)
	}
	if f.Mean <= 0 {
		t.Errorf("Mean = %v, want > 0", f.Mean)
	}

	long, err := cam.Expose(context.Background(), 4*time.Millisecond)
	if err != nil {
		t.Fatalf("Expose() error = %v", err)
	}
	if long.Seq != 2 || long.Mean <= f.Mean {
		t.Errorf("second frame = %+v, want seq 2 brighter than first", long)
	}

	last, ok := cam.LastFrame()
	if !ok || last.Seq != 2 {
		t.Errorf("LastFrame() = %+v, %v, want seq 2", last, ok)
	}
}

func TestSimCamera_Busy(t *testing.T) {
	cam := newCamera(t, component.Options{"exposure": "1ms"})

	cam.busy.Lock()
	_, err := cam.Expose(context.Background(), time.Millisecond)
	cam.busy.Unlock()

	if !errors.Is(err, ErrCameraBusy) {
		t.Errorf("Expose() error = %v, want ErrCameraBusy", err)
	}
}

func TestSimCamera_InvalidExposure(t *testing.T) {
	cam := newCamera(t, component.Options{"max_exposure": "1s"})

	for _, d := range []time.Duration{-time.Millisecond, 2 * time.Second} {
		if _, err := cam.Expose(context.Background(), d); !errors.Is(err, ErrInvalidExposure) {
			t.Errorf("Expose(%v) error = %v, want ErrInvalidExposure", d, err)
		}
	}

	if _, err := NewSimCamera(catalog.Env{Options: component.Options{"exposure": "2m"}}); !errors.Is(err, ErrInvalidExposure) {
		t.Errorf("NewSimCamera(exposure=2m) error = %v, want ErrInvalidExposure", err)
	}
	if _, err := NewSimCamera(catalog.Env{Options: component.Options{"width": 0}}); !errors.Is(err, component.ErrInvalidOption) {
		t.Errorf("NewSimCamera(width=0) error = %v, want ErrInvalidOption", err)
	}
}

func TestSimCamera_ExposeCancelled(t *testing.T) {
	cam := newCamera(t, component.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := cam.Expose(ctx, time.Second); !errors.Is(err, context.Canceled) {
		t.Errorf("Expose() error = %v, want context.Canceled", err)
	}
	if _, ok := cam.LastFrame(); ok {
		t.Error("LastFrame() present after cancelled exposure")
	}
}

func TestSimCamera_Triggered(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	clock := location.MustParse("driver:Ticker/clock")
	cam := location.MustParse("instrument:SimCamera/cam")

	if err := m.Init(ctx, clock, component.Options{"interval": "5ms"}); err != nil {
		t.Fatalf("Init(clock) error = %v", err)
	}
	if err := m.Init(ctx, cam, component.Options{"exposure": "1ms", "trigger": clock.String()}); err != nil {
		t.Fatalf("Init(cam) error = %v", err)
	}

	c, err := m.LookupInstrument(cam)
	if err != nil {
		t.Fatalf("LookupInstrument() error = %v", err)
	}
	waitFor(t, "triggered frames", func() bool {
		f, ok := c.(*SimCamera).LastFrame()
		return ok && f.Seq >= 2
	})
}

func TestSimCamera_TriggerErrors(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	daemon := location.MustParse("driver:Daemon/sh")
	if err := m.Add(daemon, component.Options{"binary": "sh"}); err != nil {
		t.Fatalf("Add(daemon) error = %v", err)
	}

	tests := []struct {
		name    string
		trigger string
		wantErr error
	}{
		{"not registered", "driver:Ticker/missing", manager.ErrNotRegistered},
		{"wrong kind", "instrument:Ticker/clock", component.ErrInvalidOption},
		{"not a trigger", daemon.String(), ErrNotTrigger},
		{"malformed", "clock", location.ErrInvalidLocation},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, _ := location.New(location.Instrument, ClassSimCamera, "cam"+string(rune('a'+i)))
			err := m.Init(ctx, loc, component.Options{"trigger": tt.trigger})
			if !errors.Is(err, manager.ErrLifecycle) {
				t.Fatalf("Init() error = %v, want ErrLifecycle", err)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Init() error = %v, want %v", err, tt.wantErr)
			}
			if got := stateOf(m, loc); got != lifecycle.StateFailed {
				t.Errorf("state = %s, want failed", got)
			}
		})
	}
}

// ============================================================================
// Sequencer
// ============================================================================

func TestNewSequencer_Options(t *testing.T) {
	tests := []struct {
		name    string
		opts    component.Options
		wantErr error
	}{
		{"missing camera", component.Options{}, ErrMissingOption},
		{"malformed camera", component.Options{"camera": "cam"}, location.ErrInvalidLocation},
		{"camera not an instrument", component.Options{"camera": "driver:SimCamera/cam"}, component.ErrInvalidOption},
		{"negative frames", component.Options{"camera": "instrument:SimCamera/cam", "frames": -1}, component.ErrInvalidOption},
		{"zero interval", component.Options{"camera": "instrument:SimCamera/cam", "interval": 0}, component.ErrInvalidOption},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSequencer(catalog.Env{Options: tt.opts}); !errors.Is(err, tt.wantErr) {
				t.Errorf("NewSequencer() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSequencer_RunsToCompletion(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	cam := location.MustParse("instrument:SimCamera/cam")
	seq := location.MustParse("controller:Sequencer/series")

	if err := m.Init(ctx, cam, component.Options{"exposure": "1ms"}); err != nil {
		t.Fatalf("Init(cam) error = %v", err)
	}
	err := m.Init(ctx, seq, component.Options{
		"camera":   cam.String(),
		"interval": "5ms",
		"exposure": "1ms",
		"frames":   3,
	})
	if err != nil {
		t.Fatalf("Init(sequencer) error = %v", err)
	}

	waitFor(t, "sequence to finish", func() bool {
		return stateOf(m, seq) == lifecycle.StateStopped
	})

	st, _ := m.Status(seq)
	if st.LastError != "" {
		t.Errorf("LastError = %q, want empty", st.LastError)
	}

	c, err := m.LookupController(seq)
	if err != nil {
		t.Fatalf("LookupController() error = %v", err)
	}
	if got := c.(*Sequencer).Taken(); got != 3 {
		t.Errorf("Taken() = %d, want 3", got)
	}

	camc, _ := m.LookupInstrument(cam)
	if f, ok := camc.(*SimCamera).LastFrame(); !ok || f.Seq != 3 {
		t.Errorf("camera LastFrame() = %+v, %v, want seq 3", f, ok)
	}
}

func TestSequencer_CameraMissing(t *testing.T) {
	m := newTestManager(t)
	seq := location.MustParse("controller:Sequencer/series")

	err := m.Init(context.Background(), seq, component.Options{"camera": "instrument:SimCamera/absent"})
	if !errors.Is(err, manager.ErrLifecycle) || !errors.Is(err, manager.ErrNotRegistered) {
		t.Errorf("Init() error = %v, want ErrLifecycle wrapping ErrNotRegistered", err)
	}
}

func TestSequencer_CameraFailureEndsSequence(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	cam := location.MustParse("instrument:SimCamera/cam")
	seq := location.MustParse("controller:Sequencer/series")

	if err := m.Init(ctx, cam, component.Options{"max_exposure": "10ms", "exposure": "1ms"}); err != nil {
		t.Fatalf("Init(cam) error = %v", err)
	}
	if err := m.Init(ctx, seq, component.Options{"camera": cam.String(), "exposure": "1s"}); err != nil {
		t.Fatalf("Init(sequencer) error = %v", err)
	}

	waitFor(t, "sequence to fail", func() bool {
		return stateOf(m, seq) == lifecycle.StateFailed
	})
	st, _ := m.Status(seq)
	if st.LastError == "" {
		t.Error("LastError is empty, want exposure error")
	}
}

func TestSequencer_ShutdownViaManager(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	cam := location.MustParse("instrument:SimCamera/cam")
	seq := location.MustParse("controller:Sequencer/series")

	if err := m.Init(ctx, cam, component.Options{"exposure": "1ms"}); err != nil {
		t.Fatalf("Init(cam) error = %v", err)
	}
	if err := m.Init(ctx, seq, component.Options{"camera": cam.String(), "interval": "10ms", "exposure": "1ms"}); err != nil {
		t.Fatalf("Init(sequencer) error = %v", err)
	}

	c, _ := m.LookupController(seq)
	waitFor(t, "first frame", func() bool { return c.(*Sequencer).Taken() > 0 })

	if err := m.ShutdownComponent(ctx, seq); err != nil {
		t.Fatalf("ShutdownComponent() error = %v", err)
	}
	if _, ok := m.Status(seq); ok {
		t.Error("sequencer still registered after shutdown")
	}
	if got := c.(*Sequencer).Describe()["taken"]; got == 0 {
		t.Errorf("taken = %v, want > 0", got)
	}
}
