package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "optimonitor"

// Topics provides builders for OptiMonitor MQTT topics under one prefix.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.NewTopics("lab1")
//	topics.SpectralSample("spec-42")
//	// Returns: "lab1/spectral/spec-42"
type Topics struct {
	prefix string
}

// NewTopics returns builders rooted at prefix, or DefaultTopicPrefix if empty.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the topic root.
func (t Topics) Prefix() string {
	if t.prefix == "" {
		return DefaultTopicPrefix
	}
	return t.prefix
}

// =============================================================================
// Spectral Topics
// =============================================================================

// SpectralSample returns the topic every accepted sample is republished on.
//
// Example: optimonitor/spectral/spec-42
func (t Topics) SpectralSample(spectrometerID string) string {
	return fmt.Sprintf("%s/spectral/%s", t.Prefix(), spectrometerID)
}

// IngestSample returns the topic peripherals may publish samples to instead
// of POSTing them.
//
// Example: optimonitor/ingest/spectral/spec-42
func (t Topics) IngestSample(spectrometerID string) string {
	return fmt.Sprintf("%s/ingest/spectral/%s", t.Prefix(), spectrometerID)
}

// ActiveResource returns the retained topic carrying the active resource id
// for a kind.
//
// Example: optimonitor/active/spectrometer
func (t Topics) ActiveResource(kind string) string {
	return fmt.Sprintf("%s/active/%s", t.Prefix(), kind)
}

// =============================================================================
// System Topics
// =============================================================================

// SystemStatus returns the system status topic.
//
// Example: optimonitor/system/status
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", t.Prefix())
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllIngestSamples returns a pattern matching every ingest topic.
//
// Pattern: optimonitor/ingest/spectral/+
func (t Topics) AllIngestSamples() string {
	return t.IngestSample("+")
}

// SpectrometerFromIngest extracts the spectrometer id from an ingest topic.
func (t Topics) SpectrometerFromIngest(topic string) (string, bool) {
	id, ok := strings.CutPrefix(topic, t.IngestSample(""))
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
