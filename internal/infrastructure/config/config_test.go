package config

import (
	"os"
	"path/filepath"
	"strings"
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
api:
  host: "127.0.0.1"
  port: 9100
discovery:
  timeout: 3
  callback_url: "http://monitor.lab:9100"
mqtt:
  enabled: true
  broker:
    host: "broker.lab"
    port: 1883
    client_id: "test-client"
  qos: 1
  topic_prefix: "lab1"
  ingest: true
websocket:
  send_buffer: 8
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.Port != 9100 {
		t.Errorf("API.Port = %d, want 9100", cfg.API.Port)
	}
	if cfg.Discovery.CallbackURL != "http://monitor.lab:9100" {
		t.Errorf("Discovery.CallbackURL = %q", cfg.Discovery.CallbackURL)
	}
	if cfg.GetDiscoveryTimeout() != 3*time.Second {
		t.Errorf("GetDiscoveryTimeout() = %v, want 3s", cfg.GetDiscoveryTimeout())
	}
	if !cfg.MQTT.Enabled || !cfg.MQTT.Ingest || cfg.MQTT.TopicPrefix != "lab1" {
		t.Errorf("MQTT = %+v", cfg.MQTT)
	}
	if cfg.WebSocket.SendBuffer != 8 {
		t.Errorf("WebSocket.SendBuffer = %d, want 8", cfg.WebSocket.SendBuffer)
	}
	// Unset fields keep their defaults
	if cfg.WebSocket.Path != "/ws/spectral-data" {
		t.Errorf("WebSocket.Path = %q, want default", cfg.WebSocket.Path)
	}
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if cfg.API.Port != 8200 {
		t.Errorf("API.Port = %d, want 8200", cfg.API.Port)
	}
	if cfg.Discovery.Timeout != 5 {
		t.Errorf("Discovery.Timeout = %d, want 5", cfg.Discovery.Timeout)
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
api:
  port: 0
discovery:
  timeout: 0
  callback_url: "not a url"
logging:
  level: "verbose"
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}
	for _, want := range []string{"api.port", "discovery.timeout", "discovery.callback_url", "logging.level"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("OPTIMONITOR_API_HOST", "10.1.1.1")
	t.Setenv("OPTIMONITOR_API_PORT", "9300")
	t.Setenv("OPTIMONITOR_DISCOVERY_CALLBACK_URL", "https://monitor.example")
	t.Setenv("OPTIMONITOR_MQTT_HOST", "mqtt.example")
	t.Setenv("OPTIMONITOR_MQTT_USERNAME", "core")
	t.Setenv("OPTIMONITOR_MQTT_PASSWORD", "s3cret")
	t.Setenv("OPTIMONITOR_LOG_LEVEL", "debug")

	cfg, err := Load(writeConfig(t, "api:\n  port: 8200\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.Host != "10.1.1.1" || cfg.API.Port != 9300 {
		t.Errorf("API = %s:%d", cfg.API.Host, cfg.API.Port)
	}
	if cfg.Discovery.CallbackURL != "https://monitor.example" {
		t.Errorf("CallbackURL = %q", cfg.Discovery.CallbackURL)
	}
	if cfg.MQTT.Broker.Host != "mqtt.example" || cfg.MQTT.Auth.Username != "core" || cfg.MQTT.Auth.Password != "s3cret" {
		t.Errorf("MQTT = %+v", cfg.MQTT)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}
}

func TestLoad_BadPortEnv(t *testing.T) {
	t.Setenv("OPTIMONITOR_API_PORT", "eighty")
	if _, err := Load(""); err == nil {
		t.Error("Load() expected error for non-numeric port")
	}
}

func TestValidate_MQTTEnabled(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults disabled", mutate: func(*Config) {}, wantErr: false},
		{name: "enabled with host", mutate: func(c *Config) { c.MQTT.Enabled = true }, wantErr: false},
		{name: "enabled without host", mutate: func(c *Config) { c.MQTT.Enabled = true; c.MQTT.Broker.Host = "" }, wantErr: true},
		{name: "wildcard prefix", mutate: func(c *Config) { c.MQTT.Enabled = true; c.MQTT.TopicPrefix = "lab/#" }, wantErr: true},
		{name: "bad qos", mutate: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDiscoveryTimeoutDefault(t *testing.T) {
	if got := Default().GetDiscoveryTimeout(); got != 5*time.Second {
		t.Errorf("GetDiscoveryTimeout() = %v, want 5s", got)
	}
}
