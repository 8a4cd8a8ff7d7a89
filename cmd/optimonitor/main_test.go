package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/optimonitor-core/internal/broadcast"
	"github.com/nerrad567/optimonitor-core/internal/control"
	"github.com/nerrad567/optimonitor-core/internal/device"
	"github.com/nerrad567/optimonitor-core/internal/discovery"
	"github.com/nerrad567/optimonitor-core/internal/infrastructure/logging"
	"github.com/nerrad567/optimonitor-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/optimonitor-core/internal/spectral"
)

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, "/nonexistent/path/config.yaml"); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_InvalidValues verifies run rejects a config that fails validation.
func TestRun_InvalidValues(t *testing.T) {
	configPath := writeConfig(t, `
api:
  port: 0
logging:
  level: verbose
`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, configPath)
	if err == nil {
		t.Fatal("run() should fail with invalid config values")
	}
	if !strings.Contains(err.Error(), "api.port") {
		t.Errorf("error = %v, want api.port complaint", err)
	}
}

// TestRun_ServesUntilCancelled starts the full service on a free port and
// shuts it down through the context.
func TestRun_ServesUntilCancelled(t *testing.T) {
	port := freePort(t)
	configPath := writeConfig(t, `
api:
  host: "127.0.0.1"
  port: `+strconv.Itoa(port)+`
mqtt:
  enabled: false
logging:
  level: error
  format: text
  output: stdout
`)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, configPath) }()

	url := "http://127.0.0.1:" + strconv.Itoa(port)
	deadline := time.Now().Add(5 * time.Second)
	var healthy bool
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			healthy = resp.StatusCode == http.StatusOK
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if !healthy {
		cancel()
		t.Fatal("service did not become healthy")
	}

	resp, err := http.Get(url + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("metrics status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run() error = %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return after cancel")
	}
}

func TestProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/device/info" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"type":"spectrometer","name":"Probe","capabilities":{"has_spectrometer":true}}`))
	}))
	defer srv.Close()

	host, portStr, _ := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	port, _ := strconv.Atoi(portStr)

	var out bytes.Buffer
	if err := probe(context.Background(), &out, time.Second, host, port); err != nil {
		t.Fatalf("probe() error = %v", err)
	}

	var info discovery.Info
	if err := json.Unmarshal(out.Bytes(), &info); err != nil {
		t.Fatalf("probe output %q: %v", out.String(), err)
	}
	if info.Type != device.DeviceTypeSpectrometer || info.Name != "Probe" {
		t.Errorf("info = %+v", info)
	}

	if err := probe(context.Background(), &out, time.Second, host, 0); err == nil {
		t.Error("probe() with port 0 should fail validation")
	}
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.HasPrefix(out.String(), "optimonitor "+version) {
		t.Errorf("output = %q", out.String())
	}
}

func TestProbeCommand_RequiresPort(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"probe", "--address", "127.0.0.1"})

	if err := cmd.Execute(); err == nil {
		t.Error("probe without --port should fail")
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv(configEnv, "")
	if got := getConfigPath(); got != "" {
		t.Errorf("getConfigPath() = %q, want empty", got)
	}

	t.Setenv(configEnv, "/etc/optimonitor/config.yaml")
	if got := getConfigPath(); got != "/etc/optimonitor/config.yaml" {
		t.Errorf("getConfigPath() = %q", got)
	}
}

func TestIngestHandler(t *testing.T) {
	registry := device.NewRegistry(spectral.NewStore())
	dev := &device.Device{
		ID:      device.GenerateID(),
		Type:    device.DeviceTypeSpectrometer,
		Name:    "Bench",
		Address: "127.0.0.1",
		Port:    9000,
		Status:  device.StatusConnected,
	}
	spec := &device.Spectrometer{ID: device.GenerateID(), DeviceID: dev.ID, Name: "Bench - Spectrometer"}
	if err := registry.Provision(dev, spec, nil); err != nil {
		t.Fatalf("Provision() error = %v", err)
	}

	ctrl := control.New(registry, discovery.NewPeripheralClient(time.Second), broadcast.NewHub(), logging.Discard())
	topics := mqtt.NewTopics("lab")
	handler := ingestHandler(topics, ctrl)

	payload := []byte(`{"calibrated_readings":[1.5,2.5],"timestamp":"2026-05-01T08:00:00Z"}`)
	if err := handler(topics.IngestSample(spec.ID), payload); err != nil {
		t.Fatalf("handler() error = %v", err)
	}

	sample, ok, err := registry.LatestSample(spec.ID)
	if err != nil || !ok {
		t.Fatalf("LatestSample() = %v, %v", ok, err)
	}
	if len(sample.Readings) != 2 || !sample.Timestamp.Equal(time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)) {
		t.Errorf("sample = %+v", sample)
	}

	tests := []struct {
		name    string
		topic   string
		payload string
	}{
		{"unknown spectrometer", topics.IngestSample("missing"), `{"calibrated_readings":[1]}`},
		{"bad payload", topics.IngestSample(spec.ID), `not json`},
		{"missing readings", topics.IngestSample(spec.ID), `{}`},
		{"wrong topic", "lab/spectral/" + spec.ID, `{"calibrated_readings":[1]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := handler(tt.topic, []byte(tt.payload)); err == nil {
				t.Error("handler() should fail")
			}
		})
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}
