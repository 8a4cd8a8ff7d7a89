package discovery

import (
	"context"
	"errors"
	"time"

	"github.com/nerrad567/optimonitor-core/internal/device"
)

// Discovery outcomes reported to the Recorder.
const (
	OutcomeFound       = "found"
	OutcomeUnreachable = "unreachable"
	OutcomeTimeout     = "timeout"
	OutcomeBadStatus   = "bad_status"
	OutcomeInvalid     = "invalid"
	OutcomeRejected    = "rejected"
)

// Logger defines the logging interface used by the Discoverer.
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

// Recorder receives discovery and registration outcomes.
type Recorder interface {
	ObserveDiscovery(outcome string, elapsed time.Duration)
	ObserveRegistration(ok bool)
}

// Result is the outcome of a successful discovery.
// Resource ids are nil when the device did not declare that capability.
type Result struct {
	Device          *device.Device
	SpectrometerID  *string
	VacuumChamberID *string
}

// Discoverer brings unknown peripherals under management.
//
// Discover queries the peripheral, provisions a Device plus the resources its
// capabilities declare, then tells the peripheral where to push samples. The
// registry is only touched once the peripheral has answered, and the
// registration callback runs after the registry write, so a peripheral that
// cannot be reached for registration stays registered.
type Discoverer struct {
	registry *device.Registry
	client   *PeripheralClient
	logger   Logger
	recorder Recorder
}

// New creates a Discoverer that stores results in registry.
func New(registry *device.Registry, client *PeripheralClient) *Discoverer {
	return &Discoverer{
		registry: registry,
		client:   client,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the discoverer.
func (d *Discoverer) SetLogger(logger Logger) {
	d.logger = logger
}

// SetRecorder installs a recorder for discovery outcomes.
func (d *Discoverer) SetRecorder(r Recorder) {
	d.recorder = r
}

// Discover probes address:port. The bool is false when no device was found;
// the cause is logged and nothing is stored. callbackBaseURL is the
// monitoring service URL handed to the peripheral's /register endpoint.
func (d *Discoverer) Discover(ctx context.Context, address string, port int, callbackBaseURL string) (*Result, bool) {
	start := time.Now()
	log := d.logger

	log.Debug("probing peripheral", "address", address, "port", port)

	if err := device.ValidateEndpoint(address, port); err != nil {
		log.Warn("discovery skipped: invalid endpoint", "address", address, "port", port, "error", err)
		d.observe(OutcomeInvalid, start)
		return nil, false
	}

	info, err := d.client.Info(ctx, address, port)
	if err != nil {
		outcome := classify(err)
		switch outcome {
		case OutcomeBadStatus, OutcomeInvalid:
			log.Warn("no device found", "address", address, "port", port, "outcome", outcome, "error", err)
		default:
			log.Error("no device found", "address", address, "port", port, "outcome", outcome, "error", err)
		}
		d.observe(outcome, start)
		return nil, false
	}

	dev, spec, chamber := provisionPlan(address, port, info)
	if err := d.registry.Provision(dev, spec, chamber); err != nil {
		log.Warn("device info rejected", "address", address, "port", port, "error", err)
		d.observe(OutcomeRejected, start)
		return nil, false
	}

	result := &Result{Device: dev}
	if spec != nil {
		id := spec.ID
		result.SpectrometerID = &id
		log.Info("spectrometer auto-provisioned", "id", spec.ID, "device_id", dev.ID, "monochromatic", spec.IsMonochromatic)
	}
	if chamber != nil {
		id := chamber.ID
		result.VacuumChamberID = &id
		log.Info("vacuum chamber auto-provisioned", "id", chamber.ID, "device_id", dev.ID, "process_type", chamber.ProcessType)
	}
	d.observe(OutcomeFound, start)

	d.register(ctx, dev, callbackBaseURL, result)

	return result, true
}

// provisionPlan derives the device and its resources from /device/info.
// An empty name is treated the same as a missing one.
func provisionPlan(address string, port int, info *Info) (*device.Device, *device.Spectrometer, *device.VacuumChamber) {
	name := info.Name
	if name == "" {
		name = device.DefaultDeviceName
	}

	dev := &device.Device{
		ID:           device.GenerateID(),
		Type:         info.Type,
		Name:         name,
		Address:      address,
		Port:         port,
		Status:       device.StatusConnected,
		Capabilities: info.Capabilities,
	}

	var spec *device.Spectrometer
	if info.Capabilities.HasSpectrometer {
		spec = &device.Spectrometer{
			ID:              device.GenerateID(),
			DeviceID:        dev.ID,
			Name:            name + " - Spectrometer",
			IsMonochromatic: info.Capabilities.IsMonochromatic,
		}
	}

	var chamber *device.VacuumChamber
	if info.Capabilities.HasVacuumChamber {
		material := device.DefaultMaterial
		chamber = &device.VacuumChamber{
			ID:              device.GenerateID(),
			DeviceID:        dev.ID,
			Name:            name + " - Vacuum Chamber",
			ProcessType:     info.Capabilities.ResolvedProcessType(),
			CurrentMaterial: &material,
			Status:          device.ChamberStopped,
		}
	}

	return dev, spec, chamber
}

// register performs the best-effort callback. Failures are logged only.
func (d *Discoverer) register(ctx context.Context, dev *device.Device, callbackBaseURL string, result *Result) {
	reg := Registration{
		MonitoringAPIURL: callbackBaseURL,
		SpectrometerID:   result.SpectrometerID,
		VacuumChamberID:  result.VacuumChamberID,
	}

	err := d.client.Register(ctx, dev.BaseURL(), reg)
	if d.recorder != nil {
		d.recorder.ObserveRegistration(err == nil)
	}
	if err != nil {
		d.logger.Warn("peripheral registration failed", "device_id", dev.ID, "url", dev.BaseURL(), "error", err)
		return
	}
	d.logger.Info("peripheral registered", "device_id", dev.ID, "callback", callbackBaseURL)
}

func (d *Discoverer) observe(outcome string, start time.Time) {
	if d.recorder != nil {
		d.recorder.ObserveDiscovery(outcome, time.Since(start))
	}
}

func classify(err error) string {
	switch {
	case errors.Is(err, ErrUpstreamTimeout):
		return OutcomeTimeout
	case errors.Is(err, ErrUpstreamStatus):
		return OutcomeBadStatus
	case errors.Is(err, ErrInvalidInfo), errors.Is(err, device.ErrInvalidCapabilities):
		return OutcomeInvalid
	default:
		return OutcomeUnreachable
	}
}
