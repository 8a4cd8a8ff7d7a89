package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/optimonitor-core/internal/device"
)

// SystemStats is the JSON snapshot served at /stats. Prometheus collectors
// are served separately at the configured metrics path.
type SystemStats struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeStats   `json:"runtime"`
	Streaming     StreamingStats `json:"streaming"`
	MQTT          MQTTStats      `json:"mqtt"`
	Registry      RegistryStats  `json:"registry"`
}

// RuntimeStats contains Go runtime statistics.
type RuntimeStats struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// StreamingStats contains broadcast fan-out statistics.
type StreamingStats struct {
	Subscribers int `json:"subscribers"`
}

// MQTTStats contains MQTT client statistics.
type MQTTStats struct {
	Enabled   bool `json:"enabled"`
	Connected bool `json:"connected"`
}

// RegistryStats contains device registry statistics.
type RegistryStats struct {
	Devices        int            `json:"devices"`
	Spectrometers  int            `json:"spectrometers"`
	VacuumChambers int            `json:"vacuum_chambers"`
	ByType         map[string]int `json:"by_type"`
	ByStatus       map[string]int `json:"by_status"`
	ActiveSpec     string         `json:"active_spectrometer,omitempty"`
	ActiveChamber  string         `json:"active_vacuum_chamber,omitempty"`
}

// handleStats returns a point-in-time system snapshot.
func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	stats := SystemStats{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeStats{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		Streaming: StreamingStats{
			Subscribers: s.hub.Len(),
		},
	}

	if s.mqtt != nil {
		stats.MQTT = MQTTStats{
			Enabled:   true,
			Connected: s.mqtt.IsConnected(),
		}
	}

	registry := s.ctrl.Registry()
	regStats := registry.GetStats()
	stats.Registry = RegistryStats{
		Devices:        regStats.TotalDevices,
		Spectrometers:  regStats.Spectrometers,
		VacuumChambers: regStats.VacuumChambers,
		ByType:         make(map[string]int),
		ByStatus:       make(map[string]int),
		ActiveSpec:     registry.ActiveID(device.KindSpectrometer),
		ActiveChamber:  registry.ActiveID(device.KindVacuumChamber),
	}
	for t, count := range regStats.ByType {
		stats.Registry.ByType[string(t)] = count
	}
	for st, count := range regStats.ByStatus {
		stats.Registry.ByStatus[string(st)] = count
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleActiveMonitoring returns the active spectrometer (with its latest
// sample) and the active vacuum chamber.
func (s *Server) handleActiveMonitoring(w http.ResponseWriter, r *http.Request) {
	active, err := s.ctrl.Active()
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, active)
}
