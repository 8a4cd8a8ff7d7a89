package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/optimonitor-core/internal/spectral"
)

// publisher is the subset of *Client used by SamplePublisher.
type publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// SampleMessage is the JSON carried on spectral topics, both directions.
type SampleMessage struct {
	SpectrometerID     string    `json:"spectrometer_id,omitempty"`
	Timestamp          time.Time `json:"timestamp"`
	CalibratedReadings []float64 `json:"calibrated_readings"`
	Wavelengths        []float64 `json:"wavelengths,omitempty"`
}

// SamplePublisher republishes accepted samples to {prefix}/spectral/{id}.
type SamplePublisher struct {
	pub    publisher
	topics Topics
	qos    byte
}

// NewSamplePublisher binds a publisher to the client's topics and QoS.
func NewSamplePublisher(c *Client) *SamplePublisher {
	return &SamplePublisher{pub: c, topics: c.Topics(), qos: c.QoS()}
}

// PublishSample sends one sample. Samples are not retained; the latest value
// is always available over HTTP.
func (p *SamplePublisher) PublishSample(spectrometerID string, sample spectral.Sample) error {
	payload, err := json.Marshal(SampleMessage{
		SpectrometerID:     spectrometerID,
		Timestamp:          sample.Timestamp.UTC(),
		CalibratedReadings: sample.Readings,
		Wavelengths:        sample.Wavelengths,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return p.pub.Publish(p.topics.SpectralSample(spectrometerID), payload, p.qos, false)
}

// PublishActive publishes the active resource id for kind as a retained message.
func (p *SamplePublisher) PublishActive(kind, id string) error {
	payload, err := json.Marshal(map[string]string{"id": id})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return p.pub.Publish(p.topics.ActiveResource(kind), payload, p.qos, true)
}

// DecodeIngest parses a message received on an ingest topic. The
// spectrometer id comes from the topic; a zero timestamp means "now".
func DecodeIngest(topics Topics, topic string, payload []byte, now time.Time) (string, spectral.Sample, error) {
	id, ok := topics.SpectrometerFromIngest(topic)
	if !ok {
		return "", spectral.Sample{}, fmt.Errorf("%w: unexpected topic %q", ErrInvalidTopic, topic)
	}

	var msg SampleMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return "", spectral.Sample{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if msg.CalibratedReadings == nil {
		return "", spectral.Sample{}, fmt.Errorf("%w: calibrated_readings is required", ErrInvalidPayload)
	}

	ts := msg.Timestamp
	if ts.IsZero() {
		ts = now
	}
	return id, spectral.Sample{
		Timestamp:   ts,
		Readings:    msg.CalibratedReadings,
		Wavelengths: msg.Wavelengths,
	}, nil
}
