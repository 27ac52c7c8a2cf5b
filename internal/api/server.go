package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/uts-core/internal/infrastructure/config"
	"github.com/nerrad567/uts-core/internal/infrastructure/logging"
	"github.com/nerrad567/uts-core/internal/journal"
	"github.com/nerrad567/uts-core/internal/manager"
	"github.com/nerrad567/uts-core/internal/metrics"
	"github.com/nerrad567/uts-core/internal/pool"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// PoolSource reports worker pool counters. *pool.Pool satisfies it.
type PoolSource interface {
	Stats() pool.Stats
}

// ConnectionSource reports whether an external connection is up.
// *mqtt.Client and *influxdb.Client satisfy it.
type ConnectionSource interface {
	IsConnected() bool
}

// DBStatsSource reports database connection pool statistics.
// *database.DB satisfies it.
type DBStatsSource interface {
	Stats() sql.DBStats
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	WS      config.WebSocketConfig
	Logger  *logging.Logger
	Manager *manager.Manager

	// Optional. Endpoints backed by a missing dependency report it as unavailable.
	Journal  journal.Repository
	Metrics  *metrics.Metrics
	Pool     PoolSource
	MQTT     ConnectionSource
	InfluxDB ConnectionSource
	DB       DBStatsSource
	Version  string
}

// Server is the HTTP management API.
//
// It manages the HTTP listener, routes, middleware and the WebSocket hub
// that streams lifecycle events. The server is created with New() and
// started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	manager   *manager.Manager
	journal   journal.Repository
	metrics   *metrics.Metrics
	pool      PoolSource
	mqtt      ConnectionSource
	influx    ConnectionSource
	db        DBStatsSource
	version   string
	startTime time.Time
	server    *http.Server
	hub       *Hub
	cancel    context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called. The hub is created
// here so it can be added to the manager's sinks before any component
// starts.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Manager == nil {
		return nil, fmt.Errorf("manager is required")
	}

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		manager:   deps.Manager,
		journal:   deps.Journal,
		metrics:   deps.Metrics,
		pool:      deps.Pool,
		mqtt:      deps.MQTT,
		influx:    deps.InfluxDB,
		db:        deps.DB,
		version:   deps.Version,
		startTime: time.Now(),
		hub:       NewHub(deps.WS, deps.Logger),
	}, nil
}

// Hub returns the WebSocket hub. It is a lifecycle.Sink.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the fully wired router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub and launches the HTTP listener in a
// background goroutine. The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
