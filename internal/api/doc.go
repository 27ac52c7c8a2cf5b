// Package api implements the HTTP management API for the UTS daemon.
//
// This package provides:
//   - REST endpoints to add, initialise, shut down and remove components
//   - Read access to the class catalog and the lifecycle journal
//   - A WebSocket stream of lifecycle events
//   - Prometheus metrics at /metrics
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Routes
//
//	GET    /api/v1/health
//	GET    /api/v1/system
//	GET    /api/v1/components[?kind=]
//	POST   /api/v1/components                       {"location", "options", "init"}
//	GET    /api/v1/components/stats
//	GET    /api/v1/components/{kind}/{class}/{name}
//	DELETE /api/v1/components/{kind}/{class}/{name}
//	POST   /api/v1/components/{kind}/{class}/{name}/init
//	POST   /api/v1/components/{kind}/{class}/{name}/shutdown
//	GET    /api/v1/classes
//	GET    /api/v1/journal[?op=&kind=&location=&limit=&offset=]
//	GET    /api/v1/events                           (WebSocket)
//	GET    /metrics
//
// # Graceful Degradation
//
// The journal, metrics, MQTT and InfluxDB dependencies are optional. Routes
// backed by a missing dependency return 503 or report it as disabled.
package api
