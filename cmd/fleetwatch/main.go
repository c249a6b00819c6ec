// FleetWatch Core - device status monitoring and change notification.
//
// This is the main entry point. It loads the unit inventory, builds the
// status engine, attaches the configured listeners (archive, MQTT, InfluxDB,
// WebSocket) and update sources (telemetry, staleness checks, simulation,
// REST), then waits for a shutdown signal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "github.com/nerrad567/fleetwatch-core/migrations"

	"github.com/nerrad567/fleetwatch-core/internal/api"
	"github.com/nerrad567/fleetwatch-core/internal/archive"
	"github.com/nerrad567/fleetwatch-core/internal/auth"
	"github.com/nerrad567/fleetwatch-core/internal/device"
	"github.com/nerrad567/fleetwatch-core/internal/infrastructure/config"
	"github.com/nerrad567/fleetwatch-core/internal/infrastructure/database"
	"github.com/nerrad567/fleetwatch-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/fleetwatch-core/internal/infrastructure/logging"
	"github.com/nerrad567/fleetwatch-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/fleetwatch-core/internal/inventory"
	"github.com/nerrad567/fleetwatch-core/internal/simulation"
	"github.com/nerrad567/fleetwatch-core/internal/sinks"
	"github.com/nerrad567/fleetwatch-core/internal/telemetry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

const (
	// Default configuration file path
	defaultConfigPath = "configs/config.yaml"

	// archivePruneInterval is how often archived events past retention are deleted.
	archivePruneInterval = time.Hour
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // startup wiring is linear
	log := logging.Default()
	log.Info("starting FleetWatch Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	seeds, err := loadInventory(cfg.Monitor.InventoryFile)
	if err != nil {
		return fmt.Errorf("loading inventory: %w", err)
	}
	log.Info("inventory loaded", "devices", len(seeds), "path", cfg.Monitor.InventoryFile)

	operators, err := auth.DirectoryFromConfig(cfg.Security)
	if err != nil {
		return fmt.Errorf("loading operators: %w", err)
	}
	if operators.Len() == 0 {
		log.Warn("no operators configured; the dashboard login will reject everyone")
	}

	// Optional archive. Snapshots from the previous run take precedence over
	// inventory status so a restart does not replay the inventory state.
	var (
		db   *database.DB
		repo *archive.Repository
	)
	if cfg.Archive.Enabled {
		db, err = database.Open(database.ConfigFrom(cfg.Database))
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()

		if migrateErr := db.Migrate(ctx); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("database ready", "path", cfg.Database.Path)

		repo = archive.NewRepository(db.DB)
		repo.SetLogger(log)

		var restored int
		seeds, restored, err = repo.RestoreSeeds(ctx, seeds)
		if err != nil {
			return fmt.Errorf("restoring snapshots: %w", err)
		}
		log.Info("device snapshots restored", "restored", restored)
	} else {
		log.Info("archive disabled")
	}

	engine := device.NewEngine(
		device.WithMaxHistorySize(cfg.Monitor.MaxHistorySize),
		device.WithStrictUnknownDevices(cfg.Monitor.StrictUnknownDevices),
		device.WithLogger(log),
	)
	if initErr := engine.Initialize(seeds); initErr != nil {
		return fmt.Errorf("initialising engine: %w", initErr)
	}
	log.Info("device engine initialised", "devices", engine.Count())

	// Listeners doing disk or network I/O run behind delivery queues.
	var queues []api.QueueStatsProvider

	if repo != nil {
		q, cleanup, subErr := subscribeQueued(engine, repo, "archive", log)
		if subErr != nil {
			return fmt.Errorf("subscribing archive: %w", subErr)
		}
		defer cleanup()
		queues = append(queues, q)
		go pruneArchiveLoop(ctx, repo, cfg.Archive.RetentionDays, log)
	}

	// MQTT: change publication and telemetry ingest.
	var (
		mqttClient *mqtt.Client
		ingestor   *telemetry.Ingestor
	)
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		publisher := sinks.NewMQTTPublisher(mqttClient, log)
		if pubErr := publisher.PublishSnapshot(engine.GetAll()); pubErr != nil {
			log.Warn("publishing initial device states", "error", pubErr)
		}
		q, cleanup, subErr := subscribeQueued(engine, publisher, "mqtt", log)
		if subErr != nil {
			return fmt.Errorf("subscribing MQTT publisher: %w", subErr)
		}
		defer cleanup()
		queues = append(queues, q)

		ingestor, err = telemetry.NewIngestor(telemetry.IngestorOptions{
			Subscriber: mqttClient,
			Engine:     engine,
			QoS:        mqttClient.QoS(),
			Logger:     log,
		})
		if err != nil {
			return fmt.Errorf("creating telemetry ingestor: %w", err)
		}
		if startErr := ingestor.Start(ctx); startErr != nil {
			return fmt.Errorf("starting telemetry ingestor: %w", startErr)
		}
		defer ingestor.Stop()
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB: per-change points and periodic fleet summaries.
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		recorder := sinks.NewMetricsRecorder(influxClient, cfg.Site.ID)
		q, cleanup, subErr := subscribeQueued(engine, recorder, "influxdb", log)
		if subErr != nil {
			return fmt.Errorf("subscribing metrics recorder: %w", subErr)
		}
		defer cleanup()
		queues = append(queues, q)
		go summaryLoop(ctx, engine, recorder, cfg.GetPollInterval())
	} else {
		log.Info("InfluxDB disabled")
	}

	// Prometheus scrape endpoint alongside the JSON /metrics.
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	exporter := sinks.NewPrometheusExporter(engine)
	if regErr := exporter.Register(registry); regErr != nil {
		return fmt.Errorf("registering prometheus exporter: %w", regErr)
	}
	unsubscribeExporter, err := engine.Subscribe(exporter)
	if err != nil {
		return fmt.Errorf("subscribing prometheus exporter: %w", err)
	}
	defer unsubscribeExporter()

	// Staleness checks mark silent units offline.
	if cfg.Monitor.OfflineThreshold > 0 {
		monitor, monErr := telemetry.NewStalenessMonitor(telemetry.StalenessOptions{
			Engine:    engine,
			Interval:  cfg.GetPollInterval(),
			Threshold: cfg.GetOfflineThreshold(),
			Logger:    log,
		})
		if monErr != nil {
			return fmt.Errorf("creating staleness monitor: %w", monErr)
		}
		monitor.Start(ctx)
		defer monitor.Stop()
	}

	if cfg.Monitor.Simulation.Enabled {
		sim, simErr := simulation.New(simulation.Options{
			Engine:   engine,
			Interval: cfg.GetSimulationInterval(),
			Logger:   log,
		})
		if simErr != nil {
			return fmt.Errorf("creating simulator: %w", simErr)
		}
		sim.Start(ctx)
		defer sim.Stop()
	}

	deps := api.Deps{
		Config:             cfg.API,
		WS:                 cfg.WebSocket,
		Security:           cfg.Security,
		Logger:             log,
		Engine:             engine,
		Operators:          operators,
		MQTT:               mqttClient,
		Prometheus:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Queues:             queues,
		NotificationWindow: cfg.Monitor.NotificationWindow,
		HistoryLimit:       cfg.Monitor.HistoryLimit,
		Version:            version,
	}
	if repo != nil {
		deps.Archive = repo
		deps.DB = db.DB
	}
	if ingestor != nil {
		deps.Ingest = ingestor
	}

	server, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	unsubscribeHub, err := engine.Subscribe(server.Hub())
	if err != nil {
		return fmt.Errorf("subscribing websocket hub: %w", err)
	}
	defer unsubscribeHub()

	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal",
		"listeners", engine.SubscriberCount(),
	)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	log.Info("FleetWatch Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses FLEETWATCH_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("FLEETWATCH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// loadInventory reads the inventory file, or returns the demo fleet when no
// file is configured.
func loadInventory(path string) ([]device.Seed, error) {
	if path == "" {
		return inventory.Default(), nil
	}
	return inventory.Load(path)
}

// healthCheck verifies the optional infrastructure connections.
// Nil arguments are skipped.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// subscribeQueued attaches l to engine behind a bounded delivery queue. The
// returned cleanup unsubscribes and then drains the queue.
func subscribeQueued(engine *device.Engine, l device.Listener, name string, log *logging.Logger) (*device.QueuedListener, func(), error) {
	q, err := device.NewQueuedListener(l, device.QueueOptions{
		Name:   name,
		Logger: log,
	})
	if err != nil {
		return nil, nil, err
	}
	unsubscribe, err := engine.Subscribe(q)
	if err != nil {
		q.Stop()
		return nil, nil, err
	}
	return q, func() {
		unsubscribe()
		q.Stop()
	}, nil
}

// pruneArchiveLoop deletes archived events older than retentionDays, once
// at startup and then every archivePruneInterval. retentionDays <= 0 keeps
// everything.
func pruneArchiveLoop(ctx context.Context, repo *archive.Repository, retentionDays int, log *logging.Logger) {
	if retentionDays <= 0 {
		return
	}
	retention := time.Duration(retentionDays) * 24 * time.Hour

	prune := func() {
		n, err := repo.Prune(ctx, retention)
		if err != nil {
			log.Error("pruning archive", "error", err)
			return
		}
		if n > 0 {
			log.Info("archive pruned", "deleted", n, "retention_days", retentionDays)
		}
	}

	prune()
	ticker := time.NewTicker(archivePruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}

// summaryLoop writes a fleet summary point every interval.
func summaryLoop(ctx context.Context, engine *device.Engine, recorder *sinks.MetricsRecorder, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			recorder.RecordSummary(engine.GetAll(), now.UTC())
		}
	}
}
