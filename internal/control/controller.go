package control

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/optimonitor-core/internal/broadcast"
	"github.com/nerrad567/optimonitor-core/internal/device"
	"github.com/nerrad567/optimonitor-core/internal/spectral"
)

// DefaultMaterialFraction is applied when a material update omits the fraction.
const DefaultMaterialFraction = 100.0

// Sample sources reported to the Recorder.
const (
	SourceHTTP = "http"
	SourceMQTT = "mqtt"
)

// Logger is the logging interface used by the controller.
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

// Peripheral is the set of control calls forwarded to a device.
// *discovery.PeripheralClient satisfies it.
type Peripheral interface {
	SetControlWavelength(ctx context.Context, baseURL string, wavelength float64) error
	StartChamber(ctx context.Context, baseURL string) error
	StopChamber(ctx context.Context, baseURL string) error
	SetMaterial(ctx context.Context, baseURL, material string, fraction float64) error
}

// Broadcaster pushes samples to live subscribers.
type Broadcaster interface {
	Broadcast(spectrometerID string, ts time.Time, readings []float64) broadcast.Report
}

// SamplePublisher republishes accepted samples and active selections,
// typically over MQTT. It may be nil.
type SamplePublisher interface {
	PublishSample(spectrometerID string, sample spectral.Sample) error
	PublishActive(kind, id string) error
}

// Recorder receives sample and republication counts. It may be nil.
type Recorder interface {
	ObserveSample(source string)
	ObserveMQTTPublish(err error)
}

// Controller carries out operator actions that span the registry, the
// peripheral HTTP servers and the broadcast fan-out.
//
// Thread Safety: all methods are safe for concurrent use. Registry
// mutations are never held across a device call.
type Controller struct {
	registry  *device.Registry
	devices   Peripheral
	hub       Broadcaster
	publisher SamplePublisher
	recorder  Recorder
	logger    Logger
	now       func() time.Time
}

// New creates a controller.
//
// Parameters:
//   - registry: Authoritative device and resource store
//   - devices: Client for peripheral control endpoints
//   - hub: Fan-out for accepted samples
//   - logger: Logger instance (may be nil)
func New(registry *device.Registry, devices Peripheral, hub Broadcaster, logger Logger) *Controller {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Controller{
		registry: registry,
		devices:  devices,
		hub:      hub,
		logger:   logger,
		now:      time.Now,
	}
}

// SetPublisher attaches an optional republication sink.
func (c *Controller) SetPublisher(p SamplePublisher) {
	c.publisher = p
}

// SetRecorder attaches optional metrics.
func (c *Controller) SetRecorder(r Recorder) {
	c.recorder = r
}

// Registry returns the underlying registry for read-only queries.
func (c *Controller) Registry() *device.Registry {
	return c.registry
}

// ─── Resource creation ─────────────────────────────────────────────

// CreateSpectrometer provisions a spectrometer on an existing spectrometer
// device. The monochromatic flag is taken from the device capabilities.
func (c *Controller) CreateSpectrometer(deviceID, name string) (*device.Spectrometer, error) {
	d, err := c.registry.GetDevice(deviceID)
	if err != nil {
		return nil, err
	}
	if d.Type != device.DeviceTypeSpectrometer {
		return nil, fmt.Errorf("%w: device %s is not a spectrometer", device.ErrTypeMismatch, deviceID)
	}

	s := &device.Spectrometer{
		DeviceID:        d.ID,
		Name:            name,
		IsMonochromatic: d.Capabilities.IsMonochromatic,
	}
	if err := c.registry.AddSpectrometer(s); err != nil {
		return nil, err
	}
	return s.DeepCopy(), nil
}

// CreateVacuumChamber provisions a vacuum chamber on an existing
// vacuum-chamber device. Material and fraction start unset.
func (c *Controller) CreateVacuumChamber(deviceID, name string, processType device.ProcessType) (*device.VacuumChamber, error) {
	if err := device.ValidateProcessType(processType); err != nil {
		return nil, err
	}
	d, err := c.registry.GetDevice(deviceID)
	if err != nil {
		return nil, err
	}
	if d.Type != device.DeviceTypeVacuumChamber {
		return nil, fmt.Errorf("%w: device %s is not a vacuum chamber", device.ErrTypeMismatch, deviceID)
	}

	vc := &device.VacuumChamber{
		DeviceID:    d.ID,
		Name:        name,
		ProcessType: processType,
		Status:      device.ChamberStopped,
	}
	if err := c.registry.AddVacuumChamber(vc); err != nil {
		return nil, err
	}
	return vc.DeepCopy(), nil
}

// ─── Spectrometer control ──────────────────────────────────────────

// SetControlWavelength forwards a control wavelength to the device and, once
// the device accepts it, stores it on the spectrometer. A non-monochromatic
// spectrometer is rejected before any device call.
func (c *Controller) SetControlWavelength(ctx context.Context, id string, wavelength float64) (*device.Spectrometer, error) {
	if err := device.ValidateWavelength(wavelength); err != nil {
		return nil, err
	}
	s, err := c.registry.GetSpectrometer(id)
	if err != nil {
		return nil, err
	}
	if !s.IsMonochromatic {
		return nil, fmt.Errorf("%w: %s", device.ErrNotMonochromatic, id)
	}
	d, err := c.registry.GetDevice(s.DeviceID)
	if err != nil {
		return nil, err
	}

	err = c.devices.SetControlWavelength(ctx, d.BaseURL(), wavelength)
	c.trackDevice(d.ID, err)
	if err != nil {
		c.logger.Error("set control wavelength failed", "spectrometer_id", id, "device_id", d.ID, "error", err)
		return nil, err
	}

	updated, err := c.registry.UpdateSpectrometer(id, device.SpectrometerPatch{ControlWavelength: &wavelength})
	if err != nil {
		return nil, c.internal("update spectrometer", id, err)
	}
	c.logger.Info("control wavelength set", "spectrometer_id", id, "wavelength", wavelength)
	return updated, nil
}

// SampleInput is an incoming spectral sample. A zero Timestamp means the
// time of receipt.
type SampleInput struct {
	Readings    []float64
	Wavelengths []float64
	Timestamp   time.Time
}

// PostSample stores the sample as the spectrometer's latest value, pushes it
// to all subscribers and republishes it when a publisher is attached.
// Subscriber and republication failures never fail the post.
func (c *Controller) PostSample(id string, in SampleInput, source string) (spectral.Sample, error) {
	if in.Readings == nil {
		return spectral.Sample{}, ErrMissingReadings
	}
	ts := in.Timestamp
	if ts.IsZero() {
		ts = c.now()
	}
	sample := spectral.Sample{
		Timestamp:   ts.UTC(),
		Readings:    in.Readings,
		Wavelengths: in.Wavelengths,
	}
	if sample.Wavelengths == nil {
		sample.Wavelengths = []float64{}
	}

	if err := c.registry.RecordSample(id, sample); err != nil {
		return spectral.Sample{}, err
	}
	if c.recorder != nil {
		c.recorder.ObserveSample(source)
	}
	c.logger.Debug("spectral sample received", "spectrometer_id", id, "points", len(sample.Readings), "source", source)

	if c.hub != nil {
		c.hub.Broadcast(id, sample.Timestamp, sample.Readings)
	}
	if c.publisher != nil {
		err := c.publisher.PublishSample(id, sample)
		if c.recorder != nil {
			c.recorder.ObserveMQTTPublish(err)
		}
		if err != nil {
			c.logger.Warn("sample republication failed", "spectrometer_id", id, "error", err)
		}
	}
	return sample.Clone(), nil
}

// ─── Vacuum chamber control ────────────────────────────────────────

// StartDeposition starts the chamber on its device and marks it running.
func (c *Controller) StartDeposition(ctx context.Context, id string) (*device.VacuumChamber, error) {
	return c.setRunState(ctx, id, device.ChamberRunning)
}

// StopDeposition stops the chamber on its device and marks it stopped.
func (c *Controller) StopDeposition(ctx context.Context, id string) (*device.VacuumChamber, error) {
	return c.setRunState(ctx, id, device.ChamberStopped)
}

func (c *Controller) setRunState(ctx context.Context, id string, status device.ChamberStatus) (*device.VacuumChamber, error) {
	_, d, err := c.chamberDevice(id)
	if err != nil {
		return nil, err
	}

	call := c.devices.StartChamber
	if status == device.ChamberStopped {
		call = c.devices.StopChamber
	}
	err = call(ctx, d.BaseURL())
	c.trackDevice(d.ID, err)
	if err != nil {
		c.logger.Error("chamber run state change failed", "chamber_id", id, "status", status, "error", err)
		return nil, err
	}

	updated, err := c.registry.UpdateVacuumChamber(id, device.VacuumChamberPatch{Status: &status})
	if err != nil {
		return nil, c.internal("update chamber status", id, err)
	}
	c.logger.Info("chamber run state changed", "chamber_id", id, "status", status)
	return updated, nil
}

// SetMaterial forwards a material and fraction (0-100, default 100) to the
// device and stores both once the device accepts them.
func (c *Controller) SetMaterial(ctx context.Context, id, material string, fraction *float64) (*device.VacuumChamber, error) {
	f := DefaultMaterialFraction
	if fraction != nil {
		f = *fraction
	}
	if err := device.ValidateMaterial(material); err != nil {
		return nil, err
	}
	if err := device.ValidateFractionPercent(f); err != nil {
		return nil, err
	}

	_, d, err := c.chamberDevice(id)
	if err != nil {
		return nil, err
	}
	err = c.devices.SetMaterial(ctx, d.BaseURL(), material, f)
	c.trackDevice(d.ID, err)
	if err != nil {
		c.logger.Error("set material failed", "chamber_id", id, "material", material, "error", err)
		return nil, err
	}

	updated, err := c.registry.UpdateVacuumChamber(id, device.VacuumChamberPatch{Material: &material, Fraction: &f})
	if err != nil {
		return nil, c.internal("update chamber material", id, err)
	}
	c.logger.Info("chamber material set", "chamber_id", id, "material", material, "fraction", f)
	return updated, nil
}

// SetFraction stores a normalised (0-1) fraction on the chamber without
// contacting the device. SetMaterial stores the same field on a 0-100 scale.
func (c *Controller) SetFraction(id string, fraction float64) (*device.VacuumChamber, error) {
	if err := device.ValidateFractionNormalised(fraction); err != nil {
		return nil, err
	}
	updated, err := c.registry.UpdateVacuumChamber(id, device.VacuumChamberPatch{Fraction: &fraction})
	if err != nil {
		return nil, err
	}
	c.logger.Info("chamber fraction set", "chamber_id", id, "fraction", fraction)
	return updated, nil
}

// chamberDevice resolves a chamber and the device it references.
func (c *Controller) chamberDevice(id string) (*device.VacuumChamber, *device.Device, error) {
	vc, err := c.registry.GetVacuumChamber(id)
	if err != nil {
		return nil, nil, err
	}
	d, err := c.registry.GetDevice(vc.DeviceID)
	if err != nil {
		return nil, nil, err
	}
	return vc, d, nil
}

// trackDevice marks the device connected after a successful control call
// and in error after a failed one.
func (c *Controller) trackDevice(deviceID string, callErr error) {
	status := device.StatusConnected
	if callErr != nil {
		status = device.StatusError
	}
	changed, err := c.registry.SetDeviceStatus(deviceID, status)
	if err != nil {
		c.logger.Debug("device status not updated", "device_id", deviceID, "error", err)
		return
	}
	if changed {
		c.logger.Info("device status changed", "device_id", deviceID, "status", status)
	}
}

// ─── Active selection ──────────────────────────────────────────────

// ActivateSpectrometer makes spectrometer id the only active spectrometer.
func (c *Controller) ActivateSpectrometer(id string) (*device.Spectrometer, error) {
	s, err := c.registry.ActivateSpectrometer(id)
	if err != nil {
		return nil, err
	}
	c.announceActive(device.KindSpectrometer, id)
	return s, nil
}

// ActivateVacuumChamber makes chamber id the only active vacuum chamber.
func (c *Controller) ActivateVacuumChamber(id string) (*device.VacuumChamber, error) {
	vc, err := c.registry.ActivateVacuumChamber(id)
	if err != nil {
		return nil, err
	}
	c.announceActive(device.KindVacuumChamber, id)
	return vc, nil
}

func (c *Controller) announceActive(kind device.ResourceKind, id string) {
	if c.publisher == nil {
		return
	}
	err := c.publisher.PublishActive(string(kind), id)
	if c.recorder != nil {
		c.recorder.ObserveMQTTPublish(err)
	}
	if err != nil {
		c.logger.Warn("active selection republication failed", "kind", kind, "id", id, "error", err)
	}
}

func (c *Controller) internal(op, id string, err error) error {
	c.logger.Error("registry write failed after validation", "op", op, "id", id, "error", err)
	if errors.Is(err, device.ErrNotFound) {
		return fmt.Errorf("%w: %s %s: resource removed concurrently", ErrInternal, op, id)
	}
	return fmt.Errorf("%w: %s %s: %v", ErrInternal, op, id, err)
}
