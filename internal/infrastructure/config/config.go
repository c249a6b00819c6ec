package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for FleetWatch Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Archive   ArchiveConfig   `yaml:"archive"`
}

// SiteConfig contains fleet/site identification.
type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
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
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
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

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT       JWTConfig        `yaml:"jwt"`
	Operators []OperatorConfig `yaml:"operators"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"`
}

// OperatorConfig is a dashboard login account.
// PasswordHash is an Argon2id PHC string (see auth.HashPassword).
type OperatorConfig struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
	Role         string `yaml:"role"`
}

// MonitorConfig contains settings for the device status engine and the
// update sources that feed it.
type MonitorConfig struct {
	// MaxHistorySize bounds the in-memory change ledger. Default: 1000
	MaxHistorySize int `yaml:"max_history_size"`

	// StrictUnknownDevices makes updates for unknown device IDs return an
	// error instead of a silent not-found result.
	StrictUnknownDevices bool `yaml:"strict_unknown_devices"`

	// NotificationWindow is the number of recent events projected into the
	// notification feed. Default: 20
	NotificationWindow int `yaml:"notification_window"`

	// HistoryLimit is the default page size for history queries. Default: 50
	HistoryLimit int `yaml:"history_limit"`

	// InventoryFile is the YAML device inventory loaded at startup.
	// When empty the built-in demo fleet is used.
	InventoryFile string `yaml:"inventory_file"`

	// PollInterval is how often the staleness monitor runs (seconds). Default: 30
	PollInterval int `yaml:"poll_interval"`

	// OfflineThreshold marks a device offline when it has not reported for
	// this many seconds. 0 disables staleness checks. Default: 60
	OfflineThreshold int `yaml:"offline_threshold"`

	Simulation SimulationConfig `yaml:"simulation"`
}

// SimulationConfig controls the demo update generator.
type SimulationConfig struct {
	Enabled  bool `yaml:"enabled"`
	Interval int  `yaml:"interval"`
}

// ArchiveConfig controls the optional SQLite status-change archive.
type ArchiveConfig struct {
	Enabled       bool `yaml:"enabled"`
	RetentionDays int  `yaml:"retention_days"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: FLEETWATCH_SECTION_KEY
// For example: FLEETWATCH_DATABASE_PATH, FLEETWATCH_API_HOST
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

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "fleet-001",
			Name:     "FleetWatch",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/fleetwatch.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "fleetwatch-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 15,
			},
		},
		Monitor: MonitorConfig{
			MaxHistorySize:     1000,
			NotificationWindow: 20,
			HistoryLimit:       50,
			PollInterval:       30,
			OfflineThreshold:   60,
			Simulation: SimulationConfig{
				Interval: 30,
			},
		},
		Archive: ArchiveConfig{
			RetentionDays: 30,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: FLEETWATCH_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("FLEETWATCH_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("FLEETWATCH_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("FLEETWATCH_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("FLEETWATCH_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("FLEETWATCH_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("FLEETWATCH_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Monitor
	if v := os.Getenv("FLEETWATCH_INVENTORY_FILE"); v != "" {
		cfg.Monitor.InventoryFile = v
	}
	if v := os.Getenv("FLEETWATCH_MAX_HISTORY_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Monitor.MaxHistorySize = n
		}
	}

	// Security - JWT secret (IMPORTANT: always override in production)
	if v := os.Getenv("FLEETWATCH_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	// The database only backs the optional archive.
	if c.Archive.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when archive is enabled")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Monitor.MaxHistorySize < 1 {
		errs = append(errs, "monitor.max_history_size must be at least 1")
	}
	if c.Monitor.NotificationWindow < 0 {
		errs = append(errs, "monitor.notification_window must not be negative")
	}
	if c.Monitor.OfflineThreshold < 0 {
		errs = append(errs, "monitor.offline_threshold must not be negative")
	}
	if c.Monitor.Simulation.Enabled && c.Monitor.Simulation.Interval < 1 {
		errs = append(errs, "monitor.simulation.interval must be at least 1 second")
	}

	// Tokens carry the role that filters the notification feed, so a
	// forgeable token would expose restricted units.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set FLEETWATCH_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
	}

	for i, op := range c.Security.Operators {
		if op.Username == "" || op.PasswordHash == "" {
			errs = append(errs, fmt.Sprintf("security.operators[%d] requires username and password_hash", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetPollInterval returns the staleness check interval as a Duration.
func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.Monitor.PollInterval) * time.Second
}

// GetOfflineThreshold returns the staleness threshold as a Duration.
func (c *Config) GetOfflineThreshold() time.Duration {
	return time.Duration(c.Monitor.OfflineThreshold) * time.Second
}

// GetSimulationInterval returns the simulated update interval as a Duration.
func (c *Config) GetSimulationInterval() time.Duration {
	return time.Duration(c.Monitor.Simulation.Interval) * time.Second
}
