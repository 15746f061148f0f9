package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
store:
  backend: "mongodb"
mongodb:
  uri: "mongodb://mongo.local:27017"
  database: "sensorData"
  collection: "SensorReadings20"
mqtt:
  enabled: true
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  host: "0.0.0.0"
  port: 8080
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MongoDB.URI != "mongodb://mongo.local:27017" {
		t.Errorf("MongoDB.URI = %q, want %q", cfg.MongoDB.URI, "mongodb://mongo.local:27017")
	}
	if cfg.MongoDB.Collection != "SensorReadings20" {
		t.Errorf("MongoDB.Collection = %q, want %q", cfg.MongoDB.Collection, "SensorReadings20")
	}
	if !cfg.MQTT.Enabled {
		t.Error("MQTT.Enabled = false, want true")
	}
	// Defaults survive partial files.
	if cfg.MQTT.Topics.Ingest != "envmonitor/readings/ingest" {
		t.Errorf("MQTT.Topics.Ingest = %q, want default", cfg.MQTT.Topics.Ingest)
	}
	if cfg.WebSocket.Path != "/ws" {
		t.Errorf("WebSocket.Path = %q, want /ws", cfg.WebSocket.Path)
	}
}

func TestLoad_SQLiteBackend(t *testing.T) {
	path := writeConfig(t, `
store:
  backend: "sqlite"
database:
  path: "/tmp/readings.db"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Store.Backend != BackendSQLite {
		t.Errorf("Store.Backend = %q, want %q", cfg.Store.Backend, BackendSQLite)
	}
	if cfg.Database.Path != "/tmp/readings.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/readings.db")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "invalid: [yaml: content")

	_, err := Load(path)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
store:
  backend: "cassandra"
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() expected validation error for unknown backend, got nil")
	}
	if !strings.Contains(err.Error(), "store.backend") {
		t.Errorf("error = %v, want mention of store.backend", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config { return defaultConfig() }

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "missing mongodb uri",
			mutate:  func(c *Config) { c.MongoDB.URI = "" },
			wantErr: true,
		},
		{
			name:    "missing mongodb collection",
			mutate:  func(c *Config) { c.MongoDB.Collection = "" },
			wantErr: true,
		},
		{
			name: "sqlite ignores mongodb settings",
			mutate: func(c *Config) {
				c.Store.Backend = BackendSQLite
				c.MongoDB.URI = ""
			},
			wantErr: false,
		},
		{
			name: "sqlite missing path",
			mutate: func(c *Config) {
				c.Store.Backend = BackendSQLite
				c.Database.Path = ""
			},
			wantErr: true,
		},
		{
			name:    "zero operation timeout",
			mutate:  func(c *Config) { c.Store.OperationTimeout = 0 },
			wantErr: true,
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name: "mqtt enabled without topics",
			mutate: func(c *Config) {
				c.MQTT.Enabled = true
				c.MQTT.Topics = MQTTTopicsConfig{}
			},
			wantErr: true,
		},
		{
			name:    "invalid port low",
			mutate:  func(c *Config) { c.API.Port = 0 },
			wantErr: true,
		},
		{
			name:    "invalid port high",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "websocket path without slash",
			mutate:  func(c *Config) { c.WebSocket.Path = "ws" },
			wantErr: true,
		},
		{
			name:    "zero broadcast buffer",
			mutate:  func(c *Config) { c.Broadcast.BufferSize = 0 },
			wantErr: true,
		},
		{
			name: "influxdb enabled without url",
			mutate: func(c *Config) {
				c.InfluxDB.Enabled = true
				c.InfluxDB.URL = ""
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Validate_ReportsAllErrors(t *testing.T) {
	cfg := defaultConfig()
	cfg.API.Port = 0
	cfg.MQTT.QoS = 5

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error")
	}
	if !strings.Contains(err.Error(), "api.port") || !strings.Contains(err.Error(), "mqtt.qos") {
		t.Errorf("error = %v, want both api.port and mqtt.qos", err)
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		Store: StoreConfig{OperationTimeout: 7},
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
		Broadcast: BroadcastConfig{DeliveryTimeoutMS: 250},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
	if got := cfg.GetOperationTimeout(); got != 7*time.Second {
		t.Errorf("GetOperationTimeout() = %v, want 7s", got)
	}
	if got := cfg.GetDeliveryTimeout(); got != 250*time.Millisecond {
		t.Errorf("GetDeliveryTimeout() = %v, want 250ms", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("ENVMON_STORE_BACKEND", "sqlite")
	t.Setenv("ENVMON_MONGODB_URI", "mongodb://db.example.com")
	t.Setenv("ENVMON_DATABASE_PATH", "/custom/path.db")
	t.Setenv("ENVMON_MQTT_HOST", "mqtt.example.com")
	t.Setenv("ENVMON_MQTT_USERNAME", "testuser")
	t.Setenv("ENVMON_MQTT_PASSWORD", "testpass")
	t.Setenv("ENVMON_API_HOST", "192.168.1.1")
	t.Setenv("ENVMON_API_PORT", "9090")
	t.Setenv("ENVMON_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("ENVMON_LOG_LEVEL", "debug")

	applyEnvOverrides(cfg)

	if cfg.Store.Backend != "sqlite" {
		t.Errorf("Store.Backend = %q, want sqlite", cfg.Store.Backend)
	}
	if cfg.MongoDB.URI != "mongodb://db.example.com" {
		t.Errorf("MongoDB.URI = %q, want %q", cfg.MongoDB.URI, "mongodb://db.example.com")
	}
	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}
	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}
	if cfg.API.Host != "192.168.1.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "192.168.1.1")
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestApplyEnvOverrides_BadPortIgnored(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("ENVMON_API_PORT", "not-a-port")

	applyEnvOverrides(cfg)

	if cfg.API.Port != 8080 {
		t.Errorf("API.Port = %d, want default 8080", cfg.API.Port)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Store.Backend != BackendMongoDB {
		t.Errorf("defaultConfig Store.Backend = %q, want %q", cfg.Store.Backend, BackendMongoDB)
	}
	if cfg.MongoDB.Database != "sensorData" {
		t.Errorf("defaultConfig MongoDB.Database = %q, want sensorData", cfg.MongoDB.Database)
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("defaultConfig API.Port = %d, want 8080", cfg.API.Port)
	}
	if cfg.Broadcast.BufferSize != 256 {
		t.Errorf("defaultConfig Broadcast.BufferSize = %d, want 256", cfg.Broadcast.BufferSize)
	}
}

type recordingLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (l *recordingLogger) Info(msg string, _ ...any) {
	l.mu.Lock()
	l.msgs = append(l.msgs, msg)
	l.mu.Unlock()
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.msgs = append(l.msgs, msg)
	l.mu.Unlock()
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: info\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 1)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, &recordingLogger{}, func(c *Config) {
			select {
			case changes <- c:
			default:
			}
		})
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case cfg := <-changes:
		if cfg.Logging.Level != "debug" {
			t.Errorf("reloaded Logging.Level = %q, want debug", cfg.Logging.Level)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Error("Watch did not return after cancel")
	}
}

func TestWatch_MissingFile(t *testing.T) {
	err := Watch(context.Background(), "/nonexistent/config.yaml", &recordingLogger{}, func(*Config) {})
	if err == nil {
		t.Error("Watch() expected error for missing file")
	}
}
