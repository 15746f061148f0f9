package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendMongoDB = "mongodb"
	BackendSQLite  = "sqlite"
)

// Config is the root configuration structure for the environment monitor.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Store     StoreConfig     `yaml:"store"`
	MongoDB   MongoDBConfig   `yaml:"mongodb"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// StoreConfig selects the reading store backend.
type StoreConfig struct {
	// Backend is "mongodb" (default) or "sqlite".
	Backend string `yaml:"backend"`

	// OperationTimeout bounds every single store call (seconds).
	OperationTimeout int `yaml:"operation_timeout"`
}

// MongoDBConfig contains MongoDB connection settings.
type MongoDBConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`

	// ConnectTimeout is the per-attempt connect and ping timeout (seconds).
	ConnectTimeout int `yaml:"connect_timeout"`

	// MaxPoolSize caps the driver's connection pool. 0 keeps the driver default.
	MaxPoolSize uint64 `yaml:"max_pool_size"`

	// ConnectRetries is how many extra attempts are made after the first
	// connection failure. Delay doubles after each attempt.
	ConnectRetries    int `yaml:"connect_retries"`
	RetryInitialDelay int `yaml:"retry_initial_delay"` // milliseconds
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
	Topics    MQTTTopicsConfig    `yaml:"topics"`
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
}

// MQTTTopicsConfig names the topics used for reading ingest and mirroring.
type MQTTTopicsConfig struct {
	// Ingest is subscribed to; payloads are created as readings.
	Ingest string `yaml:"ingest"`

	// CreatedPrefix is where created readings are mirrored, suffixed by sensor id.
	CreatedPrefix string `yaml:"created_prefix"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
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

// BroadcastConfig tunes fan-out to real-time subscribers.
type BroadcastConfig struct {
	// BufferSize is the per-subscriber queue depth.
	BufferSize int `yaml:"buffer_size"`

	// DeliveryTimeoutMS is how long Publish may wait on one full subscriber
	// queue before dropping the message for it. 0 means never wait.
	DeliveryTimeoutMS int `yaml:"delivery_timeout_ms"`
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

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: ENVMON_SECTION_KEY
// For example: ENVMON_MONGODB_URI, ENVMON_API_PORT
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
// The MongoDB names match the collection layout of the deployed system.
func defaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Backend:          BackendMongoDB,
			OperationTimeout: 5,
		},
		MongoDB: MongoDBConfig{
			URI:               "mongodb://localhost:27017",
			Database:          "sensorData",
			Collection:        "readings",
			ConnectTimeout:    10,
			ConnectRetries:    3,
			RetryInitialDelay: 500,
		},
		Database: DatabaseConfig{
			Path:        "./data/envmonitor.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "envmonitor",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			Topics: MQTTTopicsConfig{
				Ingest:        "envmonitor/readings/ingest",
				CreatedPrefix: "envmonitor/readings/created",
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
		Broadcast: BroadcastConfig{
			BufferSize:        256,
			DeliveryTimeoutMS: 0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ENVMON_STORE_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}

	// MongoDB
	if v := os.Getenv("ENVMON_MONGODB_URI"); v != "" {
		cfg.MongoDB.URI = v
	}
	if v := os.Getenv("ENVMON_MONGODB_DATABASE"); v != "" {
		cfg.MongoDB.Database = v
	}

	// SQLite
	if v := os.Getenv("ENVMON_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("ENVMON_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("ENVMON_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("ENVMON_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("ENVMON_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("ENVMON_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("ENVMON_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("ENVMON_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
// All problems are reported together rather than failing on the first.
func (c *Config) Validate() error {
	var errs []string

	switch c.Store.Backend {
	case BackendMongoDB:
		if c.MongoDB.URI == "" {
			errs = append(errs, "mongodb.uri is required")
		}
		if c.MongoDB.Database == "" {
			errs = append(errs, "mongodb.database is required")
		}
		if c.MongoDB.Collection == "" {
			errs = append(errs, "mongodb.collection is required")
		}
		if c.MongoDB.ConnectRetries < 0 {
			errs = append(errs, "mongodb.connect_retries must not be negative")
		}
	case BackendSQLite:
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.backend must be %q or %q", BackendMongoDB, BackendSQLite))
	}

	if c.Store.OperationTimeout <= 0 {
		errs = append(errs, "store.operation_timeout must be positive")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.Topics.Ingest == "" && c.MQTT.Topics.CreatedPrefix == "" {
		errs = append(errs, "mqtt.topics needs an ingest topic or a created_prefix when mqtt is enabled")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if !strings.HasPrefix(c.WebSocket.Path, "/") {
		errs = append(errs, "websocket.path must start with /")
	}

	if c.Broadcast.BufferSize < 1 {
		errs = append(errs, "broadcast.buffer_size must be at least 1")
	}
	if c.Broadcast.DeliveryTimeoutMS < 0 {
		errs = append(errs, "broadcast.delivery_timeout_ms must not be negative")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
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

// GetOperationTimeout returns the per-call store timeout as a Duration.
func (c *Config) GetOperationTimeout() time.Duration {
	return time.Duration(c.Store.OperationTimeout) * time.Second
}

// GetDeliveryTimeout returns the broadcast per-subscriber wait as a Duration.
func (c *Config) GetDeliveryTimeout() time.Duration {
	return time.Duration(c.Broadcast.DeliveryTimeoutMS) * time.Millisecond
}
