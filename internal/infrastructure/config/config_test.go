package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
bridge:
  id: "test-bridge"
serial:
  port: "/dev/ttyACM0"
  baud_rate: 9600
fingerprint:
  subscriber_buffer: 16
  max_finger_id: 127
  health_interval: 10s
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  enabled: true
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  host: "0.0.0.0"
  port: 3000
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Bridge.ID != "test-bridge" {
		t.Errorf("Bridge.ID = %q, want %q", cfg.Bridge.ID, "test-bridge")
	}
	if cfg.Serial.Port != "/dev/ttyACM0" {
		t.Errorf("Serial.Port = %q, want %q", cfg.Serial.Port, "/dev/ttyACM0")
	}
	if cfg.Serial.BaudRate != 9600 {
		t.Errorf("Serial.BaudRate = %d, want 9600", cfg.Serial.BaudRate)
	}
	if cfg.Fingerprint.SubscriberBuffer != 16 {
		t.Errorf("Fingerprint.SubscriberBuffer = %d, want 16", cfg.Fingerprint.SubscriberBuffer)
	}
	if cfg.Fingerprint.MaxFingerID != 127 {
		t.Errorf("Fingerprint.MaxFingerID = %d, want 127", cfg.Fingerprint.MaxFingerID)
	}
	if cfg.Fingerprint.HealthInterval != 10*time.Second {
		t.Errorf("Fingerprint.HealthInterval = %v, want 10s", cfg.Fingerprint.HealthInterval)
	}
	if !cfg.MQTT.Enabled {
		t.Error("MQTT.Enabled = false, want true")
	}
	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "localhost")
	}
}

func TestLoad_KeepsDefaultsForOmittedSections(t *testing.T) {
	cfg, err := Load(writeConfig(t, "bridge:\n  id: \"b\"\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Serial.BaudRate != 57600 {
		t.Errorf("Serial.BaudRate = %d, want 57600", cfg.Serial.BaudRate)
	}
	if cfg.Serial.Reconnect.Enabled {
		t.Error("Serial.Reconnect.Enabled should default to false")
	}
	if cfg.Fingerprint.SubscriberBuffer != 64 {
		t.Errorf("Fingerprint.SubscriberBuffer = %d, want 64", cfg.Fingerprint.SubscriberBuffer)
	}
	if cfg.API.Port != 3000 {
		t.Errorf("API.Port = %d, want 3000", cfg.API.Port)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
serial:
  port: ""
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Error("Load() expected validation error for empty serial.port, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Bridge:      BridgeConfig{ID: "fingerprint-01"},
			Serial:      SerialConfig{Port: "/dev/ttyUSB0", BaudRate: 57600},
			Fingerprint: FingerprintConfig{SubscriberBuffer: 64},
			Database:    DatabaseConfig{Path: "/data/biobridge.db"},
			MQTT:        MQTTConfig{QoS: 1},
			API:         APIConfig{Port: 3000},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(*Config) {}, wantErr: false},
		{name: "missing bridge ID", mutate: func(c *Config) { c.Bridge.ID = "" }, wantErr: true},
		{name: "missing serial port", mutate: func(c *Config) { c.Serial.Port = "" }, wantErr: true},
		{name: "zero baud rate", mutate: func(c *Config) { c.Serial.BaudRate = 0 }, wantErr: true},
		{
			name: "reconnect enabled without delay",
			mutate: func(c *Config) {
				c.Serial.Reconnect = SerialReconnectConfig{Enabled: true}
			},
			wantErr: true,
		},
		{name: "zero subscriber buffer", mutate: func(c *Config) { c.Fingerprint.SubscriberBuffer = 0 }, wantErr: true},
		{name: "negative max finger id", mutate: func(c *Config) { c.Fingerprint.MaxFingerID = -1 }, wantErr: true},
		{name: "missing database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{name: "invalid QoS", mutate: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: true},
		{name: "invalid port low", mutate: func(c *Config) { c.API.Port = 0 }, wantErr: true},
		{name: "invalid port high", mutate: func(c *Config) { c.API.Port = 70000 }, wantErr: true},
		{
			name: "influxdb enabled without URL",
			mutate: func(c *Config) {
				c.InfluxDB = InfluxDBConfig{Enabled: true}
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

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
		Serial: SerialConfig{
			Reconnect: SerialReconnectConfig{InitialDelay: 2, MaxDelay: 90},
		},
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
	if got := cfg.Serial.ReconnectInitialDelay(); got != 2*time.Second {
		t.Errorf("ReconnectInitialDelay() = %v, want 2s", got)
	}
	if got := cfg.Serial.ReconnectMaxDelay(); got != 90*time.Second {
		t.Errorf("ReconnectMaxDelay() = %v, want 90s", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("BIOBRIDGE_SERIAL_PORT", "COM4")
	t.Setenv("BIOBRIDGE_SERIAL_BAUD_RATE", "115200")
	t.Setenv("BIOBRIDGE_DATABASE_PATH", "/custom/path.db")
	t.Setenv("BIOBRIDGE_MQTT_HOST", "mqtt.example.com")
	t.Setenv("BIOBRIDGE_MQTT_USERNAME", "testuser")
	t.Setenv("BIOBRIDGE_MQTT_PASSWORD", "testpass")
	t.Setenv("BIOBRIDGE_API_HOST", "192.168.1.1")
	t.Setenv("BIOBRIDGE_API_PORT", "8081")
	t.Setenv("BIOBRIDGE_INFLUXDB_TOKEN", "secret-token")

	applyEnvOverrides(cfg)

	if cfg.Serial.Port != "COM4" {
		t.Errorf("Serial.Port = %q, want %q", cfg.Serial.Port, "COM4")
	}
	if cfg.Serial.BaudRate != 115200 {
		t.Errorf("Serial.BaudRate = %d, want 115200", cfg.Serial.BaudRate)
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
	if cfg.API.Port != 8081 {
		t.Errorf("API.Port = %d, want 8081", cfg.API.Port)
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
}

func TestApplyEnvOverrides_IgnoresMalformedNumbers(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("BIOBRIDGE_SERIAL_BAUD_RATE", "fast")

	applyEnvOverrides(cfg)

	if cfg.Serial.BaudRate != 57600 {
		t.Errorf("Serial.BaudRate = %d, want default 57600", cfg.Serial.BaudRate)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Bridge.ID == "" {
		t.Error("defaultConfig should have non-empty Bridge.ID")
	}
	if cfg.Database.Path == "" {
		t.Error("defaultConfig should have non-empty Database.Path")
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.Serial.BaudRate != 57600 {
		t.Errorf("defaultConfig Serial.BaudRate = %d, want 57600", cfg.Serial.BaudRate)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaultConfig should validate, got %v", err)
	}
}
