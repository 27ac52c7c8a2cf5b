package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/system", s.handleSystem)

		r.Route("/components", func(r chi.Router) {
			r.Get("/", s.handleListComponents)
			r.Post("/", s.handleCreateComponent)
			r.Get("/stats", s.handleComponentStats)

			r.Route("/{kind}/{class}/{name}", func(r chi.Router) {
				r.Get("/", s.handleGetComponent)
				r.Delete("/", s.handleRemoveComponent)
				r.Post("/init", s.handleInitComponent)
				r.Post("/shutdown", s.handleShutdownComponent)
			})
		})

		r.Get("/classes", s.handleListClasses)
		r.Get("/journal", s.handleListJournal)

		// Lifecycle event stream
		r.Get("/events", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "ok"
	resp := map[string]any{
		"version":    s.version,
		"components": s.manager.Stats().Total,
	}
	if s.pool != nil {
		stats := s.pool.Stats()
		resp["pool_workers"] = stats.Workers
		if stats.Closed {
			status = "degraded"
		}
	}
	if s.mqtt != nil {
		connected := s.mqtt.IsConnected()
		resp["mqtt_connected"] = connected
		if !connected {
			status = "degraded"
		}
	}
	resp["status"] = status
	writeJSON(w, http.StatusOK, resp)
}
