package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "optimonitor"

// Upstream error classes, see ClassifyUpstream.
const (
	upstreamOK    = "ok"
	upstreamError = "error"
)

// Metrics contains all service collectors.
type Metrics struct {
	registry *prometheus.Registry

	DiscoveryAttempts *prometheus.CounterVec
	DiscoveryDuration prometheus.Histogram
	Registrations     *prometheus.CounterVec

	UpstreamCalls    *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec

	Subscribers         prometheus.Gauge
	BroadcastDeliveries *prometheus.CounterVec
	Broadcasts          prometheus.Counter

	SamplesReceived *prometheus.CounterVec
	MQTTPublished   *prometheus.CounterVec
}

// StatsFunc reports registry sizes for the inventory gauges.
type StatsFunc func() (devices, spectrometers, chambers int)

// New creates a Metrics instance with all collectors registered on a fresh
// registry, plus the Go runtime and process collectors.
func New() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		DiscoveryAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "discovery",
				Name:      "attempts_total",
				Help:      "Discovery handshakes by outcome",
			},
			[]string{"outcome"},
		),

		DiscoveryDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "discovery",
				Name:      "duration_seconds",
				Help:      "Discovery handshake duration in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),

		Registrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "discovery",
				Name:      "registrations_total",
				Help:      "Peripheral registration callbacks by result",
			},
			[]string{"result"},
		),

		UpstreamCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "upstream",
				Name:      "calls_total",
				Help:      "Outbound peripheral calls by operation and result",
			},
			[]string{"op", "result"},
		),

		UpstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "upstream",
				Name:      "duration_seconds",
				Help:      "Outbound peripheral call duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op"},
		),

		Subscribers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "broadcast",
				Name:      "subscribers",
				Help:      "Live streaming subscribers",
			},
		),

		BroadcastDeliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "broadcast",
				Name:      "deliveries_total",
				Help:      "Per-subscriber deliveries by result",
			},
			[]string{"result"},
		),

		Broadcasts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "broadcast",
				Name:      "passes_total",
				Help:      "Broadcast passes, including those with no subscribers",
			},
		),

		SamplesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "spectral",
				Name:      "samples_total",
				Help:      "Spectral samples accepted by source",
			},
			[]string{"source"},
		),

		MQTTPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "mqtt",
				Name:      "published_total",
				Help:      "Samples republished to MQTT by result",
			},
			[]string{"result"},
		),
	}

	toRegister := []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.DiscoveryAttempts,
		m.DiscoveryDuration,
		m.Registrations,
		m.UpstreamCalls,
		m.UpstreamDuration,
		m.Subscribers,
		m.BroadcastDeliveries,
		m.Broadcasts,
		m.SamplesReceived,
		m.MQTTPublished,
	}
	var errs []error
	for _, c := range toRegister {
		if err := m.registry.Register(c); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return m, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// WatchInventory registers gauges that read registry sizes at scrape time.
func (m *Metrics) WatchInventory(stats StatsFunc) error {
	if m == nil {
		return nil
	}
	gauge := func(name, help string, pick func(d, s, c int) int) prometheus.Collector {
		return prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Namespace: namespace, Subsystem: "registry", Name: name, Help: help},
			func() float64 {
				d, s, c := stats()
				return float64(pick(d, s, c))
			},
		)
	}
	var errs []error
	for _, c := range []prometheus.Collector{
		gauge("devices", "Registered devices", func(d, _, _ int) int { return d }),
		gauge("spectrometers", "Registered spectrometers", func(_, s, _ int) int { return s }),
		gauge("vacuum_chambers", "Registered vacuum chambers", func(_, _, c int) int { return c }),
	} {
		if err := m.registry.Register(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ObserveDiscovery records one discovery handshake.
func (m *Metrics) ObserveDiscovery(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.DiscoveryAttempts.WithLabelValues(outcome).Inc()
	m.DiscoveryDuration.Observe(elapsed.Seconds())
}

// ObserveRegistration records one registration callback.
func (m *Metrics) ObserveRegistration(ok bool) {
	if m == nil {
		return
	}
	m.Registrations.WithLabelValues(result(ok)).Inc()
}

// ObserveUpstream records one outbound peripheral call.
func (m *Metrics) ObserveUpstream(op string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	res := upstreamOK
	if err != nil {
		res = upstreamError
	}
	m.UpstreamCalls.WithLabelValues(op, res).Inc()
	m.UpstreamDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// SetSubscribers sets the live subscriber gauge.
func (m *Metrics) SetSubscribers(n int) {
	if m == nil {
		return
	}
	m.Subscribers.Set(float64(n))
}

// ObserveBroadcast records one fan-out pass.
func (m *Metrics) ObserveBroadcast(delivered, failed int) {
	if m == nil {
		return
	}
	m.Broadcasts.Inc()
	m.BroadcastDeliveries.WithLabelValues("ok").Add(float64(delivered))
	m.BroadcastDeliveries.WithLabelValues("failed").Add(float64(failed))
}

// ObserveSample records one accepted spectral sample by source label,
// such as control.SourceHTTP.
func (m *Metrics) ObserveSample(source string) {
	if m == nil {
		return
	}
	m.SamplesReceived.WithLabelValues(source).Inc()
}

// ObserveMQTTPublish records one MQTT republication.
func (m *Metrics) ObserveMQTTPublish(err error) {
	if m == nil {
		return
	}
	m.MQTTPublished.WithLabelValues(result(err == nil)).Inc()
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}
