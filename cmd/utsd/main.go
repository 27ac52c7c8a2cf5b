// UTS Core - component lifecycle daemon
//
// utsd hosts the instruments, controllers and drivers of a test station.
// It builds components from the compiled-in classes and the manifests in the
// include paths, runs their main loops on a bounded worker pool, and exposes
// their lifecycle over HTTP, WebSocket and MQTT.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/uts-core/internal/api"
	"github.com/nerrad567/uts-core/internal/builtin"
	"github.com/nerrad567/uts-core/internal/catalog"
	"github.com/nerrad567/uts-core/internal/infrastructure/config"
	"github.com/nerrad567/uts-core/internal/infrastructure/database"
	"github.com/nerrad567/uts-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/uts-core/internal/infrastructure/logging"
	"github.com/nerrad567/uts-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/uts-core/internal/journal"
	"github.com/nerrad567/uts-core/internal/location"
	"github.com/nerrad567/uts-core/internal/manager"
	"github.com/nerrad567/uts-core/internal/metrics"
	"github.com/nerrad567/uts-core/internal/pool"
	"github.com/nerrad567/uts-core/internal/remote"
	"github.com/nerrad567/uts-core/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// shutdownTimeout bounds the teardown of components, the pool and the sinks.
const shutdownTimeout = 30 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting UTS core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath, "site", cfg.Site.ID)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Lifecycle journal
	journalRepo := journal.NewSQLiteRepository(db.DB)
	journalSink := journal.NewSink(journalRepo, journal.DefaultBuffer)
	journalSink.SetLogger(log)
	journalSink.Start()
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if closeErr := journalSink.Close(closeCtx); closeErr != nil {
			log.Error("error closing journal", "error", closeErr)
		}
		if n := journalSink.Dropped(); n > 0 {
			log.Warn("journal dropped events", "count", n)
		}
	}()

	// Component catalog, worker pool and manager
	cat := catalog.New()
	if regErr := builtin.Register(cat); regErr != nil {
		return fmt.Errorf("registering built-in classes: %w", regErr)
	}

	workers := pool.New(pool.Config{
		Workers:   cfg.Manager.PoolWorkers,
		QueueSize: cfg.Manager.QueueSize,
	})
	workers.SetLogger(log)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("closing worker pool")
		if closeErr := workers.Close(closeCtx); closeErr != nil {
			log.Error("error closing worker pool", "error", closeErr)
		}
	}()

	mgr := manager.New(cat, manager.Config{
		StopTimeout:  cfg.GetStopTimeout(),
		IncludePaths: cfg.Manager.IncludePaths,
		Logger:       log,
	})
	mgr.SetPool(workers)
	mgr.AddSink(journalSink)
	log.Info("component manager ready",
		"workers", cfg.Manager.PoolWorkers,
		"classes", len(mgr.Classes()),
		"include_paths", mgr.IncludePaths(),
	)

	// Components are shut down before the sinks below are closed, so the
	// final transitions still reach them.
	svc, closeServices, err := connectServices(ctx, cfg, log, mgr, workers)
	if err != nil {
		return err
	}
	defer closeServices()

	m := metrics.New()
	m.WatchComponents(mgr)
	m.WatchPool(workers)
	mgr.AddSink(m)

	// HTTP API
	var apiServer *api.Server
	if cfg.API.Enabled {
		deps := api.Deps{
			Config:  cfg.API,
			WS:      cfg.WebSocket,
			Logger:  log,
			Manager: mgr,
			Journal: journalRepo,
			Metrics: m,
			Pool:    workers,
			DB:      db,
			Version: version,
		}
		if svc.mqtt != nil {
			deps.MQTT = svc.mqtt
		}
		if svc.influx != nil {
			deps.InfluxDB = svc.influx
		}

		apiServer, err = api.New(deps)
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		mgr.AddSink(apiServer.Hub())
		if startErr := apiServer.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API disabled")
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down components")
		if shutdownErr := mgr.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error("errors during component shutdown", "error", shutdownErr)
		}
	}()

	if startErr := startComponents(ctx, mgr, cfg.Components, log); startErr != nil {
		return startErr
	}

	if err := healthCheck(ctx, db, svc.mqtt, svc.influx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal",
		"components", len(mgr.List()),
	)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// 1. Components (controllers, instruments, drivers)
	// 2. API server
	// 3. InfluxDB and MQTT (if enabled)
	// 4. Worker pool
	// 5. Journal
	// 6. Database

	log.Info("UTS core stopped")
	return nil
}

// services holds the optional outward connections.
type services struct {
	mqtt   *mqtt.Client
	influx *influxdb.Client
}

// connectServices connects MQTT and InfluxDB when enabled and subscribes them
// to the manager's lifecycle events. The returned func closes both.
func connectServices(ctx context.Context, cfg *config.Config, log *logging.Logger, mgr *manager.Manager, workers *pool.Pool) (services, func(), error) {
	var (
		svc     services
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.MQTT.Enabled {
		client, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			return svc, func() {}, fmt.Errorf("connecting to MQTT: %w", err)
		}
		client.SetLogger(log)
		client.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		client.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		closers = append(closers, func() {
			log.Info("disconnecting from MQTT")
			if closeErr := client.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		states := mqtt.NewStatePublisher(client, log)
		closers = append(closers, states.Close)
		mgr.AddSink(states)

		dispatcher := remote.New(mgr, client, byte(cfg.MQTT.QoS)) //nolint:gosec // QoS validated to 0-2
		dispatcher.SetLogger(log)
		if err := dispatcher.Start(); err != nil {
			closeAll()
			return svc, func() {}, fmt.Errorf("starting remote dispatcher: %w", err)
		}
		closers = append(closers, func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if stopErr := dispatcher.Stop(stopCtx); stopErr != nil {
				log.Error("error stopping remote dispatcher", "error", stopErr)
			}
		})
		svc.mqtt = client
	} else {
		log.Info("MQTT disabled")
	}

	if cfg.InfluxDB.Enabled {
		client, err := influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			closeAll()
			return svc, func() {}, fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		client.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		closers = append(closers, func() {
			log.Info("closing InfluxDB connection")
			if closeErr := client.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		mgr.AddSink(client)
		go client.SamplePool(ctx, workers, influxdb.DefaultSampleInterval)
		svc.influx = client
	} else {
		log.Info("InfluxDB disabled")
	}

	return svc, closeAll, nil
}

// startComponents adds the configured components, initialising those that
// ask for it. Drivers come first, then instruments, then controllers, so a
// component can find the peers it depends on during Init.
func startComponents(ctx context.Context, mgr *manager.Manager, comps []config.ComponentConfig, log *logging.Logger) error {
	ordered, err := orderComponents(comps)
	if err != nil {
		return err
	}

	for _, c := range ordered {
		if c.init {
			err = mgr.Init(ctx, c.loc, c.opts)
		} else {
			err = mgr.Add(c.loc, c.opts)
		}
		if err != nil {
			return fmt.Errorf("starting component %s: %w", c.loc, err)
		}
	}
	log.Info("configured components started", "count", len(ordered))
	return nil
}

type startupComponent struct {
	loc  location.Location
	opts map[string]any
	init bool
}

// orderComponents parses the configured locations and sorts them by kind,
// keeping file order within a kind.
func orderComponents(comps []config.ComponentConfig) ([]startupComponent, error) {
	byKind := make(map[location.Kind][]startupComponent, 3)
	seen := make(map[location.Location]bool, len(comps))

	for i, c := range comps {
		loc, err := location.Parse(c.Location)
		if err != nil {
			return nil, fmt.Errorf("components[%d]: %w", i, err)
		}
		if seen[loc] {
			return nil, fmt.Errorf("components[%d]: %w: %s", i, manager.ErrDuplicate, loc)
		}
		seen[loc] = true
		byKind[loc.Kind] = append(byKind[loc.Kind], startupComponent{loc: loc, opts: c.Options, init: c.ShouldInit()})
	}

	out := make([]startupComponent, 0, len(comps))
	for _, kind := range []location.Kind{location.Driver, location.Instrument, location.Controller} {
		out = append(out, byKind[kind]...)
	}
	return out, nil
}

// getConfigPath returns the configuration file path.
// Uses UTS_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("UTS_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies the infrastructure connections. mqttClient and
// influxClient may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	var errs []error

	if err := db.HealthCheck(ctx); err != nil {
		errs = append(errs, fmt.Errorf("database: %w", err))
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("mqtt: %w", err))
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("influxdb: %w", err))
		}
	}
	return errors.Join(errs...)
}
