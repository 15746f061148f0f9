// Environment Monitor - sensor reading collection service
//
// This is the main entry point for the environment monitor. It stores
// temperature and humidity readings posted by field base stations, serves
// them over HTTP, and pushes every new reading to connected dashboards over
// a WebSocket channel.
//
// Optional integrations:
//   - MQTT ingest (base stations publishing instead of POSTing) and mirroring
//   - InfluxDB mirroring for long-term time-series storage
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/envmonitor/internal/api"
	"github.com/nerrad567/envmonitor/internal/broadcast"
	"github.com/nerrad567/envmonitor/internal/infrastructure/config"
	"github.com/nerrad567/envmonitor/internal/infrastructure/database"
	"github.com/nerrad567/envmonitor/internal/infrastructure/influxdb"
	"github.com/nerrad567/envmonitor/internal/infrastructure/logging"
	"github.com/nerrad567/envmonitor/internal/infrastructure/mongodb"
	"github.com/nerrad567/envmonitor/internal/infrastructure/mqtt"
	"github.com/nerrad567/envmonitor/internal/ingest"
	"github.com/nerrad567/envmonitor/internal/reading"
	"github.com/nerrad567/envmonitor/migrations"
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

// storeCloseTimeout bounds the final store disconnect during shutdown.
const storeCloseTimeout = 5 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// It blocks until ctx is cancelled and returns nil on clean shutdown.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting environment monitor",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"store", cfg.Store.Backend,
		"level", cfg.Logging.Level,
	)

	// Reading store
	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close(log)

	// Broadcast channel and reading service
	hub := broadcast.NewHub(cfg.Broadcast.BufferSize, cfg.GetDeliveryTimeout())
	svc := reading.NewService(st.repo, hub)
	svc.SetLogger(log.With("component", "readings"))
	svc.SetOperationTimeout(cfg.GetOperationTimeout())

	// Optional integrations. Components are re-checked behind /health.
	checks := []namedCheck{{name: "store", checker: st.health}}
	components := make(map[string]api.HealthChecker)

	var ingester *ingest.Ingester
	if cfg.MQTT.Enabled {
		mqttClient, ingr, mqttErr := startMQTT(cfg, svc, log)
		if mqttErr != nil {
			return mqttErr
		}
		ingester = ingr
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		checks = append(checks, namedCheck{name: "mqtt", checker: mqttClient})
		components["mqtt"] = mqttClient
	} else {
		log.Info("MQTT disabled")
	}

	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(ctx, cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		svc.AddMirror(ingest.NewInfluxMirror(influxClient))
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
		checks = append(checks, namedCheck{name: "influxdb", checker: influxClient})
		components["influxdb"] = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	// Verify all connections are healthy
	if err := healthCheck(ctx, checks); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	// Runs before any mirror client closes.
	var stopper ingestStopper
	if ingester != nil {
		stopper = ingester
	}
	defer drainMirrors(log, stopper, svc)

	deps := api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Logger:     log,
		Readings:   svc,
		Hub:        hub,
		Store:      st.health,
		Components: components,
		Version:    version,
	}
	if ingester != nil {
		deps.Ingest = ingester
	}
	server, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
		// Ends every WebSocket write pump.
		hub.Close()
	}()

	// Log level follows config edits without a restart.
	go func() {
		watchErr := config.Watch(ctx, configPath, log, func(next *config.Config) {
			log.SetLevel(next.Logging.Level)
			log.Info("log level updated", "level", next.Logging.Level)
		})
		if watchErr != nil {
			log.Warn("config watcher stopped", "error", watchErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal", "address", server.Addr())

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// 1. API server, then hub
	// 2. MQTT ingest, then pending mirrors
	// 3. InfluxDB (if enabled)
	// 4. MQTT (if enabled)
	// 5. Reading store

	return nil
}

// getConfigPath returns the configuration file path.
// Uses ENVMON_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("ENVMON_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// namedCheck pairs a dependency with the name used in health errors.
type namedCheck struct {
	name    string
	checker api.HealthChecker
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - checks: Dependencies to verify, in order (store first)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, checks []namedCheck) error {
	for _, c := range checks {
		if err := c.checker.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", c.name, err)
		}
	}
	return nil
}

// ingestStopper is satisfied by *ingest.Ingester.
type ingestStopper interface {
	Stop() error
}

// mirrorWaiter is satisfied by *reading.Service.
type mirrorWaiter interface {
	Wait()
}

// drainMirrors stops MQTT ingest, then waits for in-flight mirrors.
//
// Stopping ingest first means no new Create can start a mirror write after
// the wait returns and the MQTT and InfluxDB clients begin closing.
//
// Parameters:
//   - log: Logger instance
//   - ingester: MQTT ingester (may be nil if MQTT is disabled)
//   - svc: Reading service whose mirrors are awaited
func drainMirrors(log *logging.Logger, ingester ingestStopper, svc mirrorWaiter) {
	if ingester != nil {
		log.Info("stopping MQTT ingest")
		if err := ingester.Stop(); err != nil {
			log.Warn("error stopping MQTT ingest", "error", err)
		}
	}
	svc.Wait()
}

// store bundles the selected reading repository with its lifecycle.
type store struct {
	repo   reading.Repository
	health api.HealthChecker
	closer func(ctx context.Context) error
}

func (s *store) close(log *logging.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), storeCloseTimeout)
	defer cancel()

	log.Info("closing reading store")
	if err := s.closer(ctx); err != nil {
		log.Error("error closing reading store", "error", err)
	}
}

// openStore connects the configured backend and prepares its schema.
func openStore(ctx context.Context, cfg *config.Config, log *logging.Logger) (*store, error) {
	switch cfg.Store.Backend {
	case config.BackendSQLite:
		db, err := database.Open(ctx, database.Config{
			Path:        cfg.Database.Path,
			WALMode:     cfg.Database.WALMode,
			BusyTimeout: cfg.Database.BusyTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		if err := db.Migrate(ctx, migrations.FS); err != nil {
			db.Close() //nolint:errcheck // Already failing
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		log.Info("SQLite store ready", "path", cfg.Database.Path)

		return &store{
			repo:   reading.NewSQLiteRepository(db.DB),
			health: db,
			closer: func(context.Context) error { return db.Close() },
		}, nil

	case config.BackendMongoDB:
		client, err := mongodb.Connect(ctx, cfg.MongoDB, log)
		if err != nil {
			return nil, fmt.Errorf("connecting to MongoDB: %w", err)
		}
		repo := reading.NewMongoRepository(client.Collection())
		if err := repo.EnsureIndexes(ctx); err != nil {
			client.Close(ctx) //nolint:errcheck // Already failing
			return nil, fmt.Errorf("creating MongoDB indexes: %w", err)
		}
		log.Info("MongoDB store ready",
			"database", cfg.MongoDB.Database,
			"collection", cfg.MongoDB.Collection,
		)

		return &store{
			repo:   repo,
			health: client,
			closer: client.Close,
		}, nil

	default:
		return nil, errors.New("unknown store backend: " + cfg.Store.Backend)
	}
}

// startMQTT connects to the broker, subscribes the ingester and registers
// the created-reading mirror.
func startMQTT(cfg *config.Config, svc *reading.Service, log *logging.Logger) (*mqtt.Client, *ingest.Ingester, error) {
	client, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log.With("component", "mqtt"))
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	topics := mqtt.NewTopics(cfg.MQTT.Topics)

	ingester := ingest.NewIngester(client, svc, topics.Ingest(), client.QoS())
	ingester.SetLogger(log.With("component", "ingest"))
	if err := ingester.Start(); err != nil {
		client.Close() //nolint:errcheck // Already failing
		return nil, nil, fmt.Errorf("starting MQTT ingest: %w", err)
	}

	svc.AddMirror(ingest.NewMQTTMirror(client, topics))
	log.Info("MQTT ingest started",
		"ingest_topic", topics.Ingest(),
		"mirror_topics", topics.AllCreated(),
	)

	return client, ingester, nil
}
