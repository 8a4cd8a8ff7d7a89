package mqtt

import "errors"

// Sentinel errors; match with errors.Is.
var (
	ErrDisabled         = errors.New("mqtt: disabled in configuration")
	ErrConnectionFailed = errors.New("mqtt: connection failed")
	ErrNotConnected     = errors.New("mqtt: client not connected")
	ErrPublishFailed    = errors.New("mqtt: publish failed")
	ErrSubscribeFailed  = errors.New("mqtt: subscribe failed")

	// ErrInvalidQoS is returned for a QoS level other than 0, 1 or 2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level")

	// ErrInvalidTopic is returned for an empty topic, or an ingest message
	// on a topic that does not name a spectrometer.
	ErrInvalidTopic = errors.New("mqtt: invalid topic")

	// ErrInvalidPayload is returned when an ingest message cannot be decoded.
	ErrInvalidPayload = errors.New("mqtt: invalid payload")
)
