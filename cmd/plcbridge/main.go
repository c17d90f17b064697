// PLC Bridge - MQTT to discrete I/O gateway
//
// This is the main entry point for the plcbridge daemon. It exposes a
// controller's relays, digital outputs, digital inputs and Modbus inputs
// as MQTT topics, announces them for Home Assistant auto-discovery, and
// runs every piece of I/O from a single polling loop.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/plcbridge/migrations"

	"github.com/nerrad567/plcbridge/internal/api"
	"github.com/nerrad567/plcbridge/internal/bridges/plc"
	"github.com/nerrad567/plcbridge/internal/channel"
	"github.com/nerrad567/plcbridge/internal/hardware/gpio"
	"github.com/nerrad567/plcbridge/internal/hardware/network"
	"github.com/nerrad567/plcbridge/internal/infrastructure/config"
	"github.com/nerrad567/plcbridge/internal/infrastructure/database"
	"github.com/nerrad567/plcbridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/plcbridge/internal/infrastructure/logging"
	"github.com/nerrad567/plcbridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/plcbridge/internal/journal"
	"github.com/nerrad567/plcbridge/internal/modbus"
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

// restoreTimeout bounds reading the output journal at startup.
const restoreTimeout = 5 * time.Second

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
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting plcbridge",
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

	mac, err := net.ParseMAC(cfg.Device.MAC)
	if err != nil {
		return fmt.Errorf("parsing device MAC: %w", err)
	}

	table, err := channel.NewTable(cfg)
	if err != nil {
		return fmt.Errorf("building channel table: %w", err)
	}
	log.Info("channel table built",
		"relays", table.RelayCount(),
		"outputs", table.OutputCount(),
		"inputs", len(table.Inputs()),
		"modbus_inputs", len(table.ModbusInputs()),
	)

	// Components reported by the status API health endpoint.
	checks := make(map[string]api.HealthChecker)

	// Output journal (optional)
	var store *journal.Store
	if cfg.Database.Enabled {
		db, openErr := database.Open(cfg.Database)
		if openErr != nil {
			return fmt.Errorf("opening database: %w", openErr)
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
		store = journal.NewStore(db)
		checks["database"] = db
		log.Info("output journal ready", "path", db.Path())
	} else {
		log.Info("output journal disabled")
	}

	// State telemetry (optional)
	var recorder plc.StateRecorder
	influxClient, err := influxdb.Connect(cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
	case err != nil:
		// Telemetry is not worth refusing to drive outputs over.
		log.Warn("InfluxDB unavailable, state telemetry off", "error", err)
	default:
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		recorder = influxClient
		checks["influxdb"] = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	}

	// Local discrete I/O
	chip, err := gpio.Open(cfg.IO.Chip, gpioInputs(table), cfg.GetInputDebounce())
	if err != nil {
		return fmt.Errorf("opening GPIO chip: %w", err)
	}
	defer func() {
		log.Info("releasing GPIO lines")
		if closeErr := chip.Close(); closeErr != nil {
			log.Error("error closing GPIO chip", "error", closeErr)
		}
	}()
	chip.SetLogger(log.Component("gpio"))
	log.Info("GPIO chip opened", "chip", cfg.IO.Chip)

	scanners := []plc.InputScanner{chip}

	// Modbus fieldbus (optional)
	var commander plc.ModbusCommander
	if cfg.Modbus.Enabled {
		transport, dialErr := modbus.Dial(cfg.Modbus)
		if dialErr != nil {
			return fmt.Errorf("opening Modbus transport: %w", dialErr)
		}
		defer func() {
			log.Info("closing Modbus transport")
			if closeErr := transport.Close(); closeErr != nil {
				log.Error("error closing Modbus transport", "error", closeErr)
			}
		}()

		poller := modbus.NewPoller(transport, transport, modbus.PollerConfig{
			Devices:         table.ModbusDevices(),
			InputsPerDevice: table.InputsPerDevice(),
			FirstSlaveID:    cfg.Modbus.FirstSlaveID,
			Interval:        cfg.Modbus.GetPollInterval(),
		}, log.Component("modbus"))

		scanners = append(scanners, poller)
		commander = poller
		log.Info("Modbus enabled",
			"mode", cfg.Modbus.Mode,
			"devices", table.ModbusDevices(),
		)
	}

	// Messaging
	mqttClient := mqtt.New(cfg.MQTT, cfg.Device.ID)
	mqttClient.SetLogger(log.Component("mqtt"))
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	checks["mqtt"] = mqttClient

	// The bridge notices the loss on its next tick; this records paho's reason.
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	var link plc.Link
	if cfg.Network.Interface != "" {
		link = network.NewLink(cfg.Network.Interface)
	}

	bridge, err := plc.NewBridge(plc.Options{
		Table:             table,
		RootTopic:         cfg.Device.RootTopic,
		DeviceID:          cfg.Device.ID,
		MAC:               mac,
		Version:           version,
		ReconnectDebounce: cfg.GetReconnectDebounce(),
		MQTTClient:        mqttClient,
		Pins:              chip,
		Link:              link,
		Modbus:            commander,
		Scanners:          scanners,
		Journal:           journalOrNil(store),
		Recorder:          recorder,
		Logger:            log.Component("bridge"),
	})
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}

	restoreCtx, cancel := context.WithTimeout(ctx, restoreTimeout)
	err = bridge.RestoreOutputs(restoreCtx)
	cancel()
	if err != nil {
		log.Warn("output journal not restored", "error", err)
	}

	// Status API (optional)
	if cfg.API.Enabled {
		apiServer, apiErr := api.New(api.Deps{
			Config: cfg.API,
			Timeouts: api.Timeouts{
				Read:  cfg.GetAPIReadTimeout(),
				Write: cfg.GetAPIWriteTimeout(),
				Idle:  cfg.GetAPIIdleTimeout(),
			},
			Logger:  log.Component("api"),
			Table:   table,
			Status:  bridge,
			History: historyOrNil(store),
			Checks:  checks,
			Version: version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := apiServer.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	log.Info("plcbridge started",
		"device", cfg.Device.ID,
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"loop_interval", cfg.GetLoopInterval(),
	)

	ticker := time.NewTicker(cfg.GetLoopInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down plcbridge")
			if dropped := chip.Dropped(); dropped > 0 {
				log.Info("input edges coalesced during run", "count", dropped)
			}
			return nil
		case now := <-ticker.C:
			bridge.Tick(now)
		}
	}
}

// gpioInputs converts the table's local inputs into line requests.
func gpioInputs(table *channel.Table) []gpio.Input {
	inputs := make([]gpio.Input, 0, len(table.Inputs()))
	for _, ch := range table.Inputs() {
		inputs = append(inputs, gpio.Input{Name: ch.Name, Pin: ch.Address, PullUp: ch.PullUp})
	}
	return inputs
}

// journalOrNil keeps a nil *journal.Store from becoming a non-nil interface.
func journalOrNil(store *journal.Store) plc.StateStore {
	if store == nil {
		return nil
	}
	return store
}

// historyOrNil is journalOrNil for the API's view of the journal.
func historyOrNil(store *journal.Store) api.History {
	if store == nil {
		return nil
	}
	return store
}

// getConfigPath returns the configuration file path.
// Uses PLCBRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("PLCBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
