package device

import "time"

// Device represents a discovered peripheral under management.
//
// A Device is only ever created by a successful discovery handshake and is
// never mutated afterwards except for its connection status.
type Device struct {
	// Identity
	ID   string     `json:"id"`
	Type DeviceType `json:"type"`
	Name string     `json:"name"`

	// Network location of the peripheral's HTTP server
	Address string `json:"address"`
	Port    int    `json:"port"`

	Status       Status       `json:"status"`
	Capabilities Capabilities `json:"capabilities"`
}

// DeepCopy creates a complete independent copy of the Device.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}
	cpy := *d
	cpy.Capabilities = d.Capabilities.clone()
	return &cpy
}

// BaseURL returns the root URL of the peripheral's HTTP server.
func (d *Device) BaseURL() string {
	return PeripheralURL(d.Address, d.Port)
}

// Spectrometer is a logical spectrometer resource provisioned on a Device.
//
// DeviceID is a non-owning back-reference. The referenced device may have
// been removed, in which case the spectrometer points at a dangling id.
type Spectrometer struct {
	ID       string `json:"id"`
	DeviceID string `json:"device_id"`
	Name     string `json:"name"`

	// IsMonochromatic is fixed at creation from the device capability.
	IsMonochromatic bool `json:"is_monochromatic"`

	// ControlWavelength in nm. Only meaningful when IsMonochromatic.
	ControlWavelength *float64 `json:"control_wavelength"`

	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// DeepCopy creates an independent copy of the Spectrometer.
func (s *Spectrometer) DeepCopy() *Spectrometer {
	if s == nil {
		return nil
	}
	cpy := *s
	if s.ControlWavelength != nil {
		wl := *s.ControlWavelength
		cpy.ControlWavelength = &wl
	}
	return &cpy
}

// VacuumChamber is a logical deposition chamber resource provisioned on a Device.
type VacuumChamber struct {
	ID       string `json:"id"`
	DeviceID string `json:"device_id"`
	Name     string `json:"name"`

	// ProcessType is fixed at creation.
	ProcessType ProcessType `json:"process_type"`

	CurrentMaterial *string `json:"current_material"`

	// CurrentFraction is the deposition fraction. Depending on the entry
	// point that last wrote it, it is on a 0-100 or a 0-1 scale.
	CurrentFraction *float64 `json:"current_fraction"`

	Status    ChamberStatus `json:"status"`
	IsActive  bool          `json:"is_active"`
	CreatedAt time.Time     `json:"created_at"`
}

// DeepCopy creates an independent copy of the VacuumChamber.
func (c *VacuumChamber) DeepCopy() *VacuumChamber {
	if c == nil {
		return nil
	}
	cpy := *c
	if c.CurrentMaterial != nil {
		m := *c.CurrentMaterial
		cpy.CurrentMaterial = &m
	}
	if c.CurrentFraction != nil {
		f := *c.CurrentFraction
		cpy.CurrentFraction = &f
	}
	return &cpy
}

// DeviceType is the kind of peripheral declared in /device/info.
type DeviceType string //nolint:revive // device.DeviceType is clearer than device.Type in calling code

// DeviceType constants.
const (
	DeviceTypeSpectrometer  DeviceType = "spectrometer"
	DeviceTypeVacuumChamber DeviceType = "vacuum-chamber"
)

// AllDeviceTypes returns all valid device type values.
func AllDeviceTypes() []DeviceType {
	return []DeviceType{DeviceTypeSpectrometer, DeviceTypeVacuumChamber}
}

// Status is the connection status of a Device.
type Status string

// Status constants.
const (
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusError        Status = "error"
)

// ProcessType is the deposition process a vacuum chamber runs.
type ProcessType string

// ProcessType constants.
const (
	ProcessTwoComponent          ProcessType = "two-component"
	ProcessThreeComponent        ProcessType = "three-component"
	ProcessCompositeTwoComponent ProcessType = "composite-two-component"
)

// AllProcessTypes returns all valid process type values.
func AllProcessTypes() []ProcessType {
	return []ProcessType{ProcessTwoComponent, ProcessThreeComponent, ProcessCompositeTwoComponent}
}

// ChamberStatus is the run status of a vacuum chamber.
type ChamberStatus string

// ChamberStatus constants.
const (
	ChamberRunning ChamberStatus = "running"
	ChamberStopped ChamberStatus = "stopped"
)

// ResourceKind distinguishes the two resource families held by the Registry.
// Active selection is tracked independently per kind.
type ResourceKind string

// ResourceKind constants.
const (
	KindSpectrometer  ResourceKind = "spectrometer"
	KindVacuumChamber ResourceKind = "vacuum_chamber"
)

// Default values applied when provisioning resources from capabilities.
const (
	DefaultDeviceName  = "Unknown Device"
	DefaultMaterial    = "H"
	DefaultProcessType = ProcessTwoComponent
)

// SpectrometerPatch enumerates the spectrometer fields that may change after
// creation. Nil fields are left untouched.
type SpectrometerPatch struct {
	ControlWavelength *float64
}

// VacuumChamberPatch enumerates the vacuum chamber fields that may change after
// creation. Nil fields are left untouched.
type VacuumChamberPatch struct {
	Status   *ChamberStatus
	Material *string
	Fraction *float64
}
