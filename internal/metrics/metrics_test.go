package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nerrad567/uts-core/internal/lifecycle"
	"github.com/nerrad567/uts-core/internal/location"
	"github.com/nerrad567/uts-core/internal/manager"
	"github.com/nerrad567/uts-core/internal/pool"
)

type fakeComponents []manager.Status

func (f fakeComponents) List() []manager.Status { return f }

type fakePool pool.Stats

func (f fakePool) Stats() pool.Stats { return pool.Stats(f) }

func TestRecord(t *testing.T) {
	m := New()
	cam := location.MustParse("instrument:SimCamera/cam1")

	m.Record(lifecycle.Event{Op: lifecycle.OpAdd, Location: cam, Duration: time.Millisecond})
	m.Record(lifecycle.Event{Op: lifecycle.OpInit, Location: cam, Err: errors.New("fail")})
	m.Record(lifecycle.Event{Op: lifecycle.OpInit, Location: cam})
	m.Record(lifecycle.Event{Op: lifecycle.OpExit, Location: cam, Duration: time.Minute})

	tests := []struct {
		labels []string
		want   float64
	}{
		{[]string{"instrument", "add", "ok"}, 1},
		{[]string{"instrument", "init", "error"}, 1},
		{[]string{"instrument", "init", "ok"}, 1},
		{[]string{"instrument", "exit", "ok"}, 1},
		{[]string{"driver", "add", "ok"}, 0},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(m.lifecycleOps.WithLabelValues(tt.labels...)); got != tt.want {
			t.Errorf("lifecycle_operations_total%v = %v, want %v", tt.labels, got, tt.want)
		}
	}

	if n := testutil.CollectAndCount(m.lifecycleDuration); n != 2 {
		t.Errorf("duration series = %d, want 2 (add and init)", n)
	}
	if n := testutil.CollectAndCount(m.mainRuntime); n != 1 {
		t.Errorf("main runtime series = %d, want 1", n)
	}
}

func TestWatchComponents(t *testing.T) {
	m := New()
	m.WatchComponents(fakeComponents{
		{Location: location.MustParse("driver:Ticker/a"), State: lifecycle.StateRunning},
		{Location: location.MustParse("driver:Ticker/b"), State: lifecycle.StateRunning},
		{Location: location.MustParse("instrument:SimCamera/c"), State: lifecycle.StateFailed},
	})

	want := `
# HELP uts_components Registered components by kind and lifecycle state.
# TYPE uts_components gauge
uts_components{kind="controller",state="failed"} 0
uts_components{kind="controller",state="initialized"} 0
uts_components{kind="controller",state="registered"} 0
uts_components{kind="controller",state="running"} 0
uts_components{kind="controller",state="stopped"} 0
uts_components{kind="driver",state="failed"} 0
uts_components{kind="driver",state="initialized"} 0
uts_components{kind="driver",state="registered"} 0
uts_components{kind="driver",state="running"} 2
uts_components{kind="driver",state="stopped"} 0
uts_components{kind="instrument",state="failed"} 1
uts_components{kind="instrument",state="initialized"} 0
uts_components{kind="instrument",state="registered"} 0
uts_components{kind="instrument",state="running"} 0
uts_components{kind="instrument",state="stopped"} 0
`
	if err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(want), "uts_components"); err != nil {
		t.Error(err)
	}
}

func TestWatchPool(t *testing.T) {
	m := New()
	m.WatchPool(fakePool{Workers: 4, Queued: 2, Active: 3, Submitted: 10, Failed: 1, Rejected: 5})

	want := `
# HELP uts_pool_active_tasks Tasks currently executing.
# TYPE uts_pool_active_tasks gauge
uts_pool_active_tasks 3
# HELP uts_pool_rejected_tasks_total Tasks refused because the queue was full.
# TYPE uts_pool_rejected_tasks_total counter
uts_pool_rejected_tasks_total 5
# HELP uts_pool_workers Worker goroutines.
# TYPE uts_pool_workers gauge
uts_pool_workers 4
`
	if err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(want),
		"uts_pool_active_tasks", "uts_pool_rejected_tasks_total", "uts_pool_workers"); err != nil {
		t.Error(err)
	}
}

func TestMiddlewareAndHandler(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/v1/components/{kind}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Handle("/metrics", m.Handler())

	for _, kind := range []string{"driver", "instrument"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/components/"+kind, nil))
	}

	got := testutil.ToFloat64(m.httpRequests.WithLabelValues(http.MethodGet, "/api/v1/components/{kind}", "418"))
	if got != 2 {
		t.Errorf("http_requests_total = %v, want 2 under one route label", got)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics status = %d", rec.Code)
	}
	for _, want := range []string{"uts_http_requests_total", "go_goroutines"} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Errorf("/metrics output missing %s", want)
		}
	}
}
