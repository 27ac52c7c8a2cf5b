package influxdb

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/uts-core/internal/infrastructure/config"
	"github.com/nerrad567/uts-core/internal/lifecycle"
	"github.com/nerrad567/uts-core/internal/location"
	"github.com/nerrad567/uts-core/internal/pool"
)

// testConfig returns a configuration for a local dev InfluxDB.
func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "uts-dev-token",
		Org:           "uts",
		Bucket:        "lifecycle",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

// skipIfNoInfluxDB skips the test if InfluxDB is not running.
func skipIfNoInfluxDB(t *testing.T) {
	t.Helper()
	if os.Getenv("RUN_INTEGRATION") == "" {
		client, err := Connect(testConfig())
		if err != nil {
			t.Skip("InfluxDB not available, skipping integration test")
		}
		client.Close()
	}
}

func tags(p *write.Point) map[string]string {
	out := make(map[string]string)
	for _, tag := range p.TagList() {
		out[tag.Key] = tag.Value
	}
	return out
}

func fields(p *write.Point) map[string]interface{} {
	out := make(map[string]interface{})
	for _, f := range p.FieldList() {
		out[f.Key] = f.Value
	}
	return out
}

// =============================================================================
// Point Tests
// =============================================================================

func TestLifecyclePoint(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	e := lifecycle.Event{
		Time:     at,
		Op:       lifecycle.OpInit,
		Location: location.MustParse("instrument:SimCamera/cam1"),
		State:    lifecycle.StateInitialized,
		Duration: 1500 * time.Microsecond,
	}

	p := lifecyclePoint(e)
	if p.Name() != MeasurementLifecycle {
		t.Errorf("Name() = %q, want %q", p.Name(), MeasurementLifecycle)
	}
	if !p.Time().Equal(at) {
		t.Errorf("Time() = %v, want %v", p.Time(), at)
	}

	wantTags := map[string]string{
		"kind":  "instrument",
		"class": "SimCamera",
		"name":  "cam1",
		"op":    "init",
		"state": "initialized",
	}
	got := tags(p)
	for k, v := range wantTags {
		if got[k] != v {
			t.Errorf("tag %s = %q, want %q", k, got[k], v)
		}
	}

	f := fields(p)
	if f["duration_ms"] != 1.5 {
		t.Errorf("duration_ms = %v, want 1.5", f["duration_ms"])
	}
	if f["ok"] != true {
		t.Errorf("ok = %v, want true", f["ok"])
	}
	if _, ok := f["error"]; ok {
		t.Error("error field should be absent on success")
	}
}

func TestLifecyclePoint_Failure(t *testing.T) {
	e := lifecycle.Event{
		Op:       lifecycle.OpExit,
		Location: location.MustParse("driver:Ticker/t1"),
		State:    lifecycle.StateFailed,
		Err:      errors.New("tick source closed"),
		TaskID:   "task-7",
	}

	p := lifecyclePoint(e)
	if p.Time().IsZero() {
		t.Error("Time() should default to now")
	}
	f := fields(p)
	if f["ok"] != false {
		t.Errorf("ok = %v, want false", f["ok"])
	}
	if f["error"] != "tick source closed" {
		t.Errorf("error = %v, want tick source closed", f["error"])
	}
	if f["task_id"] != "task-7" {
		t.Errorf("task_id = %v, want task-7", f["task_id"])
	}
	if tags(p)["state"] != "failed" {
		t.Errorf("state tag = %q, want failed", tags(p)["state"])
	}
}

func TestPoolPoint(t *testing.T) {
	p := poolPoint(pool.Stats{Workers: 4, Queued: 2, Active: 3, Submitted: 10, Completed: 6, Failed: 1, Rejected: 1}, time.Now())
	if p.Name() != MeasurementPool {
		t.Errorf("Name() = %q, want %q", p.Name(), MeasurementPool)
	}

	f := fields(p)
	want := map[string]interface{}{
		"workers":   int64(4),
		"queued":    int64(2),
		"active":    int64(3),
		"submitted": uint64(10),
		"completed": uint64(6),
		"failed":    uint64(1),
		"rejected":  uint64(1),
	}
	for k, v := range want {
		if f[k] != v {
			t.Errorf("field %s = %v (%T), want %v (%T)", k, f[k], f[k], v, v)
		}
	}
}

// =============================================================================
// Disconnected Client Tests
// =============================================================================

func TestDisconnectedClient_WritesAreNoops(t *testing.T) {
	c := &Client{}

	// None of these may touch the nil write API.
	c.WriteLifecycleMetric(lifecycle.Event{Op: lifecycle.OpAdd})
	c.Record(lifecycle.Event{Op: lifecycle.OpAdd})
	c.WritePoolStats(pool.Stats{})

	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

type fakePool struct {
	mu    sync.Mutex
	calls int
}

func (f *fakePool) Stats() pool.Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return pool.Stats{Workers: 1}
}

func (f *fakePool) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestSamplePool_StopsOnCancel(t *testing.T) {
	c := &Client{}
	src := &fakePool{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		c.SamplePool(ctx, src, 5*time.Millisecond)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for src.count() < 2 {
		select {
		case <-deadline:
			t.Fatal("SamplePool did not sample")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("SamplePool did not return after cancel")
	}
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	_, err := Connect(cfg)
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_InvalidURL(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:59999"

	_, err := Connect(cfg)
	if err == nil {
		t.Fatal("Connect() should return error for invalid URL")
	}
}

func TestConnect(t *testing.T) {
	skipIfNoInfluxDB(t)

	client, err := Connect(testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestWriteLifecycleMetric(t *testing.T) {
	skipIfNoInfluxDB(t)

	client, err := Connect(testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	var writeErr error
	var mu sync.Mutex
	client.SetOnError(func(err error) {
		mu.Lock()
		writeErr = err
		mu.Unlock()
	})

	client.WriteLifecycleMetric(lifecycle.Event{
		Op:       lifecycle.OpStart,
		Location: location.MustParse("controller:Sequencer/seq1"),
		State:    lifecycle.StateRunning,
	})
	client.WritePoolStats(pool.Stats{Workers: 2})
	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if writeErr != nil {
		t.Errorf("Write error = %v", writeErr)
	}
}

func TestClose(t *testing.T) {
	skipIfNoInfluxDB(t)

	client, err := Connect(testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	client.WriteLifecycleMetric(lifecycle.Event{Op: lifecycle.OpAdd, Location: location.MustParse("driver:Ticker/t1")})

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
}
