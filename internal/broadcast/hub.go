// Package broadcast fans spectral samples out to live subscribers.
//
// A Hub holds an unordered set of subscriptions, each identified by the
// Handle that Subscribe returns. Broadcast serializes the message once and
// attempts delivery to every subscriber. A subscriber whose Send fails is
// removed after the pass; the others are unaffected and the caller never
// sees the failure.
package broadcast

import (
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"
)

// ErrSubscriberClosed is returned by Send on a subscriber that has gone away.
var ErrSubscriberClosed = errors.New("broadcast: subscriber closed")

// Subscriber is one live streaming connection.
//
// Send must not block for long; implementations that queue should fail
// fast when their queue is full. If the subscriber also implements io.Closer,
// Close is called when the hub drops it after a failed send.
type Subscriber interface {
	Send(data []byte) error
}

// Message is the fixed-shape payload pushed to subscribers.
type Message struct {
	SpectrometerID     string    `json:"spectrometer_id"`
	Timestamp          string    `json:"timestamp"`
	CalibratedReadings []float64 `json:"calibrated_readings"`
}

// NewMessage builds a Message with an ISO-8601 UTC timestamp.
func NewMessage(spectrometerID string, ts time.Time, readings []float64) Message {
	if readings == nil {
		readings = []float64{}
	}
	return Message{
		SpectrometerID:     spectrometerID,
		Timestamp:          ts.UTC().Format(time.RFC3339Nano),
		CalibratedReadings: readings,
	}
}

// Logger defines the logging interface used by the Hub.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Recorder receives fan-out statistics.
type Recorder interface {
	SetSubscribers(n int)
	ObserveBroadcast(delivered, failed int)
}

// Handle identifies one subscription.
type Handle uint64

// Report summarises one broadcast pass.
type Report struct {
	Delivered int
	Failed    int
}

// Hub is the subscriber set.
//
// The lock guards set mutation only and is never held across Send, so a
// slow subscriber cannot block new subscriptions.
type Hub struct {
	mu          sync.Mutex
	subscribers map[Handle]Subscriber
	next        Handle
	logger      Logger
	recorder    Recorder
}

type subscription struct {
	handle Handle
	sub    Subscriber
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[Handle]Subscriber),
		logger:      noopLogger{},
	}
}

// SetLogger sets the logger for the hub.
func (h *Hub) SetLogger(logger Logger) {
	h.logger = logger
}

// SetRecorder installs a recorder for fan-out statistics.
func (h *Hub) SetRecorder(r Recorder) {
	h.recorder = r
}

// Subscribe adds s and returns the handle that removes it. Any Subscriber
// value is accepted; subscribing the same value twice yields two
// subscriptions.
func (h *Hub) Subscribe(s Subscriber) Handle {
	h.mu.Lock()
	h.next++
	id := h.next
	h.subscribers[id] = s
	n := len(h.subscribers)
	h.mu.Unlock()

	h.setGauge(n)
	h.logger.Debug("subscriber added", "handle", id, "subscribers", n)
	return id
}

// Unsubscribe removes the subscription id. Removing an absent subscription
// is a no-op. It reports whether id was present.
func (h *Hub) Unsubscribe(id Handle) bool {
	_, existed := h.remove(id)
	return existed
}

func (h *Hub) remove(id Handle) (Subscriber, bool) {
	h.mu.Lock()
	s, existed := h.subscribers[id]
	delete(h.subscribers, id)
	n := len(h.subscribers)
	h.mu.Unlock()

	if existed {
		h.setGauge(n)
		h.logger.Debug("subscriber removed", "handle", id, "subscribers", n)
	}
	return s, existed
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Broadcast pushes a sample for spectrometerID to every subscriber.
func (h *Hub) Broadcast(spectrometerID string, ts time.Time, readings []float64) Report {
	return h.Publish(NewMessage(spectrometerID, ts, readings))
}

// Publish serializes msg once and delivers it to every subscriber.
// Subscribers whose Send fails are removed once the pass completes.
// A subscriber added concurrently may or may not receive this message.
func (h *Hub) Publish(msg Message) Report {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "error", err)
		return Report{}
	}

	// Snapshot under lock, then release before sending
	h.mu.Lock()
	targets := make([]subscription, 0, len(h.subscribers))
	for id, s := range h.subscribers {
		targets = append(targets, subscription{handle: id, sub: s})
	}
	h.mu.Unlock()

	if len(targets) == 0 {
		h.logger.Warn("no subscribers for broadcast", "spectrometer_id", msg.SpectrometerID)
		h.observe(Report{})
		return Report{}
	}

	var failed []Handle
	for _, t := range targets {
		if err := safeSend(t.sub, data); err != nil {
			h.logger.Warn("subscriber send failed", "spectrometer_id", msg.SpectrometerID, "handle", t.handle, "error", err)
			failed = append(failed, t.handle)
		}
	}

	for _, id := range failed {
		if s, ok := h.remove(id); ok {
			closeSubscriber(s)
		}
	}

	report := Report{Delivered: len(targets) - len(failed), Failed: len(failed)}
	h.observe(report)
	h.logger.Debug("broadcast sent", "spectrometer_id", msg.SpectrometerID, "recipients", report.Delivered, "failed", report.Failed)
	return report
}

// CloseAll drops every subscriber, closing those that implement io.Closer.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	subs := make([]Subscriber, 0, len(h.subscribers))
	for _, s := range h.subscribers {
		subs = append(subs, s)
	}
	h.subscribers = make(map[Handle]Subscriber)
	h.mu.Unlock()

	for _, s := range subs {
		closeSubscriber(s)
	}
	h.setGauge(0)
}

func closeSubscriber(s Subscriber) {
	if c, ok := s.(io.Closer); ok {
		_ = c.Close()
	}
}

// safeSend converts a panicking Send into an error so one bad subscriber cannot
// abort the pass.
func safeSend(s Subscriber, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrSubscriberClosed
		}
	}()
	return s.Send(data)
}

func (h *Hub) setGauge(n int) {
	if h.recorder != nil {
		h.recorder.SetSubscribers(n)
	}
}

func (h *Hub) observe(r Report) {
	if h.recorder != nil {
		h.recorder.ObserveBroadcast(r.Delivered, r.Failed)
	}
}
