// Package metrics exposes lifecycle, worker pool and HTTP metrics in the
// Prometheus format.
//
// Metrics is a lifecycle.Sink: add it to the manager and every transition
// is counted. Component and pool gauges are read at scrape time.
package metrics
