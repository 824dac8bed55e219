// biobridge - fingerprint sensor serial bridge
//
// biobridge owns the serial link to a fingerprint sensor controller,
// turns its line-oriented output into typed events for browsers (WebSocket),
// MQTT consumers and InfluxDB, and forwards operator commands back to the
// device after checking them against the member directory.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/biobridge/internal/api"
	"github.com/nerrad567/biobridge/internal/audit"
	"github.com/nerrad567/biobridge/internal/bridges/fingerprint"
	"github.com/nerrad567/biobridge/internal/infrastructure/config"
	"github.com/nerrad567/biobridge/internal/infrastructure/database"
	"github.com/nerrad567/biobridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/biobridge/internal/infrastructure/logging"
	"github.com/nerrad567/biobridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/biobridge/internal/member"
	"github.com/nerrad567/biobridge/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application body, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence
	log := logging.Default()
	log.Info("starting biobridge",
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
		"bridge_id", cfg.Bridge.ID,
		"level", cfg.Logging.Level,
	)

	// Member directory
	db, err := database.Open(database.Config{
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

	if migrateErr := db.Migrate(ctx, migrations.Source()); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	members := member.NewSQLiteRepository(db.DB)
	auditRepo := audit.NewSQLiteRepository(db.DB)
	log.Info("database ready", "path", cfg.Database.Path)

	auditWriter := audit.NewWriter(auditRepo, log.Component("audit"))
	auditWriter.Start()
	defer auditWriter.Stop()

	// Sensor bridge
	bridgeLog := log.Component("fingerprint")
	bridge, err := fingerprint.NewBridge(fingerprint.BridgeOptions{
		Link: fingerprint.LinkConfig{
			Path:                  cfg.Serial.Port,
			BaudRate:              cfg.Serial.BaudRate,
			Reconnect:             cfg.Serial.Reconnect.Enabled,
			ReconnectInitialDelay: cfg.Serial.ReconnectInitialDelay(),
			ReconnectMaxDelay:     cfg.Serial.ReconnectMaxDelay(),
		},
		Gateway:          fingerprint.GatewayConfig{MaxFingerID: cfg.Fingerprint.MaxFingerID},
		SubscriberBuffer: cfg.Fingerprint.SubscriberBuffer,
		Bindings:         members,
		Auditor:          auditWriter,
		Logger:           bridgeLog,
	})
	if err != nil {
		return fmt.Errorf("creating fingerprint bridge: %w", err)
	}
	defer func() {
		log.Info("stopping fingerprint bridge")
		if stopErr := bridge.Stop(); stopErr != nil {
			log.Error("error stopping fingerprint bridge", "error", stopErr)
		}
	}()

	// MQTT mirror and health (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		var stopMQTT func()
		mqttClient, stopMQTT, err = startMQTT(ctx, cfg, bridge, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		defer stopMQTT()
	} else {
		log.Info("MQTT disabled")
	}

	// Telemetry (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
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

		recorder := fingerprint.NewRecorder(cfg.Bridge.ID, influxClient, bridge.Bus())
		recorder.Start()
		defer recorder.Stop()
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	// HTTP API and WebSocket
	deps := api.Deps{
		Config:  cfg.API,
		WS:      cfg.WebSocket,
		Logger:  log.Component("api"),
		Bridge:  bridge,
		Members: members,
		Audit:   auditRepo,
		DB:      db.DB,
		Version: version,
	}
	if mqttClient != nil {
		deps.MQTT = mqttClient
	}
	server, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Open the serial link last so the first status reaches every consumer.
	if startErr := bridge.Start(ctx); startErr != nil {
		return fmt.Errorf("starting fingerprint bridge: %w", startErr)
	}
	log.Info("fingerprint bridge started",
		"port", cfg.Serial.Port,
		"baud_rate", cfg.Serial.BaudRate,
		"reconnect", cfg.Serial.Reconnect.Enabled,
	)

	if err := healthCheck(ctx, db, mqttClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order: API server, telemetry, MQTT,
	// bridge, audit writer, database.
	log.Info("biobridge stopped")
	return nil
}

// startMQTT connects to the broker and starts the event mirror and the
// health reporter. The returned stop function must run before the client
// is closed so the final "stopping" health message is delivered.
func startMQTT(ctx context.Context, cfg *config.Config, bridge *fingerprint.Bridge, log *logging.Logger) (*mqtt.Client, func(), error) {
	client, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log.Component("mqtt"))
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", client.ClientID(),
	)

	mirror := fingerprint.NewMirror(fingerprint.MirrorConfig{
		BridgeID: cfg.Bridge.ID,
		QoS:      byte(cfg.MQTT.QoS), // #nosec G115 -- validated 0..2
	}, client, bridge.Bus(), bridge)
	mirror.SetLogger(log.Component("mirror"))
	if err := mirror.Start(ctx); err != nil {
		client.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, nil, fmt.Errorf("starting MQTT mirror: %w", err)
	}

	health := fingerprint.NewHealthReporter(fingerprint.HealthReporterConfig{
		BridgeID:  cfg.Bridge.ID,
		Version:   version,
		Interval:  cfg.Fingerprint.HealthInterval,
		Publisher: client,
		Stats:     bridge,
	})
	health.SetLogger(log.Component("health"))
	if err := health.PublishStarting(); err != nil {
		log.Warn("failed to publish starting health", "error", err)
	}
	health.Start(ctx)

	stop := func() {
		health.Stop()
		mirror.Stop()
	}
	return client, stop, nil
}

// getConfigPath returns the configuration file path.
// Uses BIOBRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("BIOBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies infrastructure connections. mqttClient may be nil.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client) error {
	if db == nil {
		return errors.New("database: not open")
	}
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	return nil
}
