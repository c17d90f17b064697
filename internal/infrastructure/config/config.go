package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the PLC bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device   DeviceConfig   `yaml:"device"`
	Network  NetworkConfig  `yaml:"network"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	IO       IOConfig       `yaml:"io"`
	Modbus   ModbusConfig   `yaml:"modbus"`
	Database DatabaseConfig `yaml:"database"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DeviceConfig identifies this controller on the bus.
type DeviceConfig struct {
	// RootTopic is the first topic segment, e.g. "plc".
	RootTopic string `yaml:"root_topic"`

	// ID is the second topic segment and the MQTT client ID.
	ID string `yaml:"id"`

	// MAC is the hardware address used to derive discovery unique IDs.
	// Format: "de:ad:be:ef:fe:ed"
	MAC string `yaml:"mac"`
}

// NetworkConfig describes the link that must be up before MQTT is attempted.
type NetworkConfig struct {
	// Interface is the network interface name (e.g. "eth0").
	// Empty disables the link gate.
	Interface string `yaml:"interface"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`

	// ConnectTimeout bounds a single connect attempt (milliseconds).
	ConnectTimeout int `yaml:"connect_timeout"`

	// LoopInterval is the polling loop period (milliseconds).
	LoopInterval int `yaml:"loop_interval"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	// Debounce is the minimum time between connect attempts (milliseconds).
	Debounce int `yaml:"debounce"`
}

// IOConfig describes the local discrete I/O.
type IOConfig struct {
	// Chip is the GPIO character device name (e.g. "gpiochip0").
	Chip string `yaml:"chip"`

	// RelayCount is the number of relay channels R0..R(n-1).
	RelayCount int `yaml:"relay_count"`

	// RelayBasePin is the physical pin of R0. Relays are contiguous.
	RelayBasePin int `yaml:"relay_base_pin"`

	// OutputBanks split digital outputs D0..D(n-1) into physical pin ranges.
	OutputBanks []OutputBankConfig `yaml:"output_banks"`

	// Inputs lists the local digital inputs in announcement order.
	Inputs []InputConfig `yaml:"inputs"`

	// Debounce is the input edge debounce period (milliseconds).
	Debounce int `yaml:"debounce"`
}

// OutputBankConfig maps logical outputs [Start, End) onto pins starting at BasePin.
type OutputBankConfig struct {
	Start   int `yaml:"start"`
	End     int `yaml:"end"`
	BasePin int `yaml:"base_pin"`
}

// InputConfig names one local digital input.
type InputConfig struct {
	Name   string `yaml:"name"`
	Pin    int    `yaml:"pin"`
	PullUp bool   `yaml:"pull_up"`
}

// ModbusConfig contains Modbus fieldbus settings.
type ModbusConfig struct {
	Enabled bool `yaml:"enabled"`

	// Mode is "tcp" or "rtu".
	Mode      string `yaml:"mode"`
	TCPHost   string `yaml:"tcp_host"`
	TCPPort   int    `yaml:"tcp_port"`
	RTUDevice string `yaml:"rtu_device"`
	RTUBaud   int    `yaml:"rtu_baud"`

	// DeviceCount is the number of Modbus devices M0..M(n-1).
	DeviceCount int `yaml:"device_count"`

	// InputsPerDevice is the fixed number of discrete inputs per device.
	InputsPerDevice int `yaml:"inputs_per_device"`

	// FirstSlaveID is the slave address of device M0; devices are consecutive.
	FirstSlaveID int `yaml:"first_slave_id"`

	// PollInterval is the minimum time between polls (milliseconds).
	PollInterval int `yaml:"poll_interval"`

	// Timeout bounds a single bus transaction (milliseconds).
	Timeout int `yaml:"timeout"`
}

// DatabaseConfig contains SQLite journal settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains the read-only status API settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: PLCBRIDGE_SECTION_KEY
// For example: PLCBRIDGE_MQTT_HOST, PLCBRIDGE_DEVICE_ID
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with defaults matching a 16-relay,
// 23-output controller with 19 inputs.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			RootTopic: "plc",
			ID:        "plc-01",
			MAC:       "de:ad:be:ef:fe:ed",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host: "localhost",
				Port: 1883,
			},
			Reconnect: MQTTReconnectConfig{
				Debounce: 2000,
			},
			ConnectTimeout: 1500,
			LoopInterval:   10,
		},
		IO: IOConfig{
			Chip:         "gpiochip0",
			RelayCount:   16,
			RelayBasePin: 22,
			OutputBanks: []OutputBankConfig{
				{Start: 0, End: 12, BasePin: 2},
				{Start: 12, End: 20, BasePin: 42},
				{Start: 20, End: 23, BasePin: 77},
			},
			Inputs:   defaultInputs(),
			Debounce: 10,
		},
		Modbus: ModbusConfig{
			Mode:            "tcp",
			TCPPort:         502,
			RTUBaud:         19200,
			InputsPerDevice: 8,
			FirstSlaveID:    1,
			PollInterval:    100,
			Timeout:         200,
		},
		Database: DatabaseConfig{
			Path:        "./data/plcbridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 10,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// defaultInputs returns A0..A15 on pins 54..69 followed by I16..I18.
func defaultInputs() []InputConfig {
	const analogBase = 54
	inputs := make([]InputConfig, 0, 19)
	for i := 0; i < 16; i++ {
		inputs = append(inputs, InputConfig{Name: "A" + strconv.Itoa(i), Pin: analogBase + i})
	}
	for i, pin := range []int{18, 19, 20} {
		inputs = append(inputs, InputConfig{Name: "I" + strconv.Itoa(16+i), Pin: pin})
	}
	return inputs
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: PLCBRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PLCBRIDGE_DEVICE_ID"); v != "" {
		cfg.Device.ID = v
	}
	if v := os.Getenv("PLCBRIDGE_DEVICE_MAC"); v != "" {
		cfg.Device.MAC = v
	}

	if v := os.Getenv("PLCBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("PLCBRIDGE_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("PLCBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("PLCBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("PLCBRIDGE_MODBUS_TCP_HOST"); v != "" {
		cfg.Modbus.TCPHost = v
	}

	if v := os.Getenv("PLCBRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("PLCBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Device.RootTopic == "" {
		errs = append(errs, "device.root_topic is required")
	}
	if c.Device.ID == "" {
		errs = append(errs, "device.id is required")
	}
	if strings.ContainsAny(c.Device.RootTopic+c.Device.ID, "/#+") {
		errs = append(errs, "device.root_topic and device.id must not contain '/', '#' or '+'")
	}
	if _, err := net.ParseMAC(c.Device.MAC); err != nil {
		errs = append(errs, "device.mac must be a hardware address (e.g. de:ad:be:ef:fe:ed)")
	}

	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.Reconnect.Debounce < 0 {
		errs = append(errs, "mqtt.reconnect.debounce must not be negative")
	}
	if c.MQTT.LoopInterval <= 0 {
		errs = append(errs, "mqtt.loop_interval must be positive")
	}

	if c.IO.RelayCount < 0 {
		errs = append(errs, "io.relay_count must not be negative")
	}
	errs = append(errs, validateBanks(c.IO.OutputBanks)...)
	seen := make(map[string]bool, len(c.IO.Inputs))
	for _, in := range c.IO.Inputs {
		if in.Name == "" {
			errs = append(errs, "io.inputs entries require a name")
			continue
		}
		if msg := checkInputName(in.Name); msg != "" {
			errs = append(errs, fmt.Sprintf("io.inputs name %q %s", in.Name, msg))
		}
		if seen[in.Name] {
			errs = append(errs, fmt.Sprintf("io.inputs name %q is duplicated", in.Name))
		}
		seen[in.Name] = true
	}

	if c.Modbus.Enabled {
		switch c.Modbus.Mode {
		case "tcp":
			if c.Modbus.TCPHost == "" {
				errs = append(errs, "modbus.tcp_host is required in tcp mode")
			}
		case "rtu":
			if c.Modbus.RTUDevice == "" {
				errs = append(errs, "modbus.rtu_device is required in rtu mode")
			}
		default:
			errs = append(errs, "modbus.mode must be tcp or rtu")
		}
		if c.Modbus.DeviceCount < 0 || c.Modbus.InputsPerDevice <= 0 {
			errs = append(errs, "modbus.device_count must be >= 0 and modbus.inputs_per_device > 0")
		}
		if c.Modbus.FirstSlaveID < 1 || c.Modbus.FirstSlaveID+c.Modbus.DeviceCount-1 > 247 {
			errs = append(errs, "modbus slave IDs must lie within 1..247")
		}
	}

	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when the journal is enabled")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// validateBanks requires contiguous banks starting at 0.
// checkInputName rejects input names that would be routed as another
// channel kind (R<n>, D<n>, M<n>I<n>) or that break topic segments.
// It returns a reason, or "" if the name is usable.
func checkInputName(name string) string {
	if strings.ContainsAny(name, "/#+") {
		return "must not contain '/', '#' or '+'"
	}
	switch name[0] {
	case 'R', 'D':
		if isDigits(name[1:]) {
			return "is reserved for outputs"
		}
	case 'M':
		dev, idx, ok := strings.Cut(name[1:], "I")
		if ok && isDigits(dev) && isDigits(idx) {
			return "is reserved for Modbus inputs"
		}
	}
	return ""
}

func isDigits(s string) bool {
	return s != "" && strings.Trim(s, "0123456789") == ""
}

func validateBanks(banks []OutputBankConfig) []string {
	var errs []string
	next := 0
	for i, b := range banks {
		if b.Start != next {
			errs = append(errs, fmt.Sprintf("io.output_banks[%d] must start at %d", i, next))
		}
		if b.End <= b.Start {
			errs = append(errs, fmt.Sprintf("io.output_banks[%d] is empty", i))
		}
		next = b.End
	}
	return errs
}

// OutputCount returns the number of digital output channels across all banks.
func (c IOConfig) OutputCount() int {
	if len(c.OutputBanks) == 0 {
		return 0
	}
	return c.OutputBanks[len(c.OutputBanks)-1].End
}

// GetReconnectDebounce returns the reconnect debounce window as a Duration.
func (c *Config) GetReconnectDebounce() time.Duration {
	return time.Duration(c.MQTT.Reconnect.Debounce) * time.Millisecond
}

// GetConnectTimeout returns the single connect attempt timeout as a Duration.
func (c *Config) GetConnectTimeout() time.Duration {
	return time.Duration(c.MQTT.ConnectTimeout) * time.Millisecond
}

// GetLoopInterval returns the polling loop period as a Duration.
func (c *Config) GetLoopInterval() time.Duration {
	return time.Duration(c.MQTT.LoopInterval) * time.Millisecond
}

// GetInputDebounce returns the input edge debounce period as a Duration.
func (c *Config) GetInputDebounce() time.Duration {
	return time.Duration(c.IO.Debounce) * time.Millisecond
}

// GetPollInterval returns the Modbus poll period as a Duration.
func (c ModbusConfig) GetPollInterval() time.Duration {
	return time.Duration(c.PollInterval) * time.Millisecond
}

// GetTimeout returns the Modbus transaction timeout as a Duration.
func (c ModbusConfig) GetTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}

// GetAPIReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetAPIReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetAPIWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetAPIWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetAPIIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetAPIIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
