package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/uts-core/internal/lifecycle"
	"github.com/nerrad567/uts-core/internal/location"
	"github.com/nerrad567/uts-core/internal/manager"
	"github.com/nerrad567/uts-core/internal/pool"
)

const namespace = "uts"

// ComponentSource lists registered components. *manager.Manager satisfies it.
type ComponentSource interface {
	List() []manager.Status
}

// PoolSource reports worker pool counters. *pool.Pool satisfies it.
type PoolSource interface {
	Stats() pool.Stats
}

// Metrics holds the process's Prometheus collectors on a private registry.
type Metrics struct {
	reg *prometheus.Registry

	lifecycleOps      *prometheus.CounterVec
	lifecycleDuration *prometheus.HistogramVec
	mainRuntime       *prometheus.HistogramVec

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpInFlight        prometheus.Gauge
}

// New creates the collectors and registers the Go and process collectors
// alongside them.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		lifecycleOps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lifecycle_operations_total",
			Help:      "Component lifecycle operations by kind, operation and result.",
		}, []string{"kind", "op", "result"}),
		lifecycleDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lifecycle_operation_duration_seconds",
			Help:      "Time spent in synchronous lifecycle operations (add, init, shutdown).",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}, []string{"kind", "op"}),
		mainRuntime: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "component_main_runtime_seconds",
			Help:      "How long component mains ran before returning.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}, []string{"kind", "result"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		httpInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Current number of HTTP requests being served.",
		}),
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Record implements lifecycle.Sink.
func (m *Metrics) Record(e lifecycle.Event) {
	kind := e.Location.Kind.String()
	result := "ok"
	if !e.OK() {
		result = "error"
	}
	m.lifecycleOps.WithLabelValues(kind, string(e.Op), result).Inc()

	switch e.Op {
	case lifecycle.OpExit:
		m.mainRuntime.WithLabelValues(kind, result).Observe(e.Duration.Seconds())
	case lifecycle.OpAdd, lifecycle.OpInit, lifecycle.OpShutdown:
		m.lifecycleDuration.WithLabelValues(kind, string(e.Op)).Observe(e.Duration.Seconds())
	}
}

// WatchComponents exports the number of registered components per kind and
// state, read from src at scrape time.
func (m *Metrics) WatchComponents(src ComponentSource) {
	m.reg.MustRegister(&componentCollector{src: src, desc: prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "components"),
		"Registered components by kind and lifecycle state.",
		[]string{"kind", "state"}, nil,
	)})
}

// WatchPool exports worker pool counters, read from src at scrape time.
func (m *Metrics) WatchPool(src PoolSource) {
	gauge := func(name, help string, value func(pool.Stats) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      name,
			Help:      help,
		}, func() float64 { return value(src.Stats()) })
	}
	counter := func(name, help string, value func(pool.Stats) float64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      name,
			Help:      help,
		}, func() float64 { return value(src.Stats()) })
	}

	m.reg.MustRegister(
		gauge("workers", "Worker goroutines.", func(s pool.Stats) float64 { return float64(s.Workers) }),
		gauge("queued_tasks", "Tasks waiting for a worker.", func(s pool.Stats) float64 { return float64(s.Queued) }),
		gauge("active_tasks", "Tasks currently executing.", func(s pool.Stats) float64 { return float64(s.Active) }),
		counter("submitted_tasks_total", "Tasks accepted by Submit.", func(s pool.Stats) float64 { return float64(s.Submitted) }),
		counter("failed_tasks_total", "Tasks that returned an error.", func(s pool.Stats) float64 { return float64(s.Failed) }),
		counter("rejected_tasks_total", "Tasks refused because the queue was full.", func(s pool.Stats) float64 { return float64(s.Rejected) }),
	)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Middleware records request count, latency and in-flight requests. Routes
// are labelled by their chi pattern so path parameters do not explode the
// label space.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type componentCollector struct {
	src  ComponentSource
	desc *prometheus.Desc
}

func (c *componentCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

func (c *componentCollector) Collect(ch chan<- prometheus.Metric) {
	counts := make(map[[2]string]int)
	for _, kind := range location.Kinds() {
		for _, state := range lifecycle.States() {
			counts[[2]string{kind.String(), state.String()}] = 0
		}
	}
	for _, st := range c.src.List() {
		counts[[2]string{st.Location.Kind.String(), st.State.String()}]++
	}
	for k, n := range counts {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(n), k[0], k[1])
	}
}
