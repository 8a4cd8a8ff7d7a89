package device

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/optimonitor-core/internal/spectral"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// SampleStore is the latest-value sample cache the Registry keeps in step
// with its spectrometers. *spectral.Store satisfies it.
type SampleStore interface {
	Put(spectrometerID string, sample spectral.Sample)
	Get(spectrometerID string) (spectral.Sample, bool)
	Delete(spectrometerID string)
}

// Registry is the authoritative in-memory store of devices and resources.
//
// A single mutex guards devices, spectrometers, vacuum chambers and writes
// to the sample store, so every mutation (including the active-flag sweep)
// is one indivisible step for readers. Returned values are deep copies.
//
// All public methods are thread-safe.
type Registry struct {
	mu            sync.RWMutex
	devices       map[string]*Device
	spectrometers map[string]*Spectrometer
	chambers      map[string]*VacuumChamber
	samples       SampleStore
	logger        Logger
	now           func() time.Time
}

// NewRegistry creates an empty registry backed by the given sample store.
func NewRegistry(samples SampleStore) *Registry {
	return &Registry{
		devices:       make(map[string]*Device),
		spectrometers: make(map[string]*Spectrometer),
		chambers:      make(map[string]*VacuumChamber),
		samples:       samples,
		logger:        noopLogger{},
		now:           time.Now,
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// ─── Devices ───────────────────────────────────────────────────────

// AddDevice stores a new device. An ID is generated if the device has none.
// Returns ErrDeviceExists if the ID is already registered.
func (r *Registry) AddDevice(d *Device) error {
	if err := prepareDevice(d); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.devices[d.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDeviceExists, d.ID)
	}
	r.devices[d.ID] = d.DeepCopy()

	r.logger.Info("device added", "id", d.ID, "name", d.Name, "type", d.Type)
	return nil
}

// GetDevice retrieves a device by ID.
// Returns ErrDeviceNotFound if the device does not exist.
func (r *Registry) GetDevice(id string) (*Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	return d.DeepCopy(), nil
}

// ListDevices returns all devices ordered by name, then ID.
func (r *Registry) ListDevices() []Device {
	r.mu.RLock()
	out := make([]Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, *d.DeepCopy())
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b Device) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// RemoveDevice deletes a device. Resources referencing it are not touched
// and keep a dangling DeviceID.
func (r *Registry) RemoveDevice(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.devices[id]; !ok {
		r.logger.Warn("remove of unknown device", "id", id)
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	delete(r.devices, id)

	r.logger.Info("device removed", "id", id)
	return nil
}

// SetDeviceStatus updates the connection status of a device and reports
// whether it changed.
func (r *Registry) SetDeviceStatus(id string, status Status) (bool, error) {
	switch status {
	case StatusConnected, StatusDisconnected, StatusError:
	default:
		return false, fmt.Errorf("device: invalid status %q", status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[id]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	if d.Status == status {
		return false, nil
	}
	d.Status = status
	return true, nil
}

// Provision stores a freshly discovered device together with the resources
// derived from its capabilities. Either resource may be nil. Everything is
// validated before anything is stored, so a failure leaves no partial state.
// Resource names are derived from the device name and only need to be
// non-empty; the length limit applies to operator-supplied names.
func (r *Registry) Provision(d *Device, spec *Spectrometer, chamber *VacuumChamber) error {
	if err := prepareDevice(d); err != nil {
		return err
	}
	if spec != nil {
		spec.DeviceID = d.ID
		if err := r.prepareSpectrometer(spec, false); err != nil {
			return err
		}
	}
	if chamber != nil {
		chamber.DeviceID = d.ID
		if err := r.prepareChamber(chamber, false); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.devices[d.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDeviceExists, d.ID)
	}
	if spec != nil {
		if _, ok := r.spectrometers[spec.ID]; ok {
			return fmt.Errorf("%w: spectrometer %s", ErrResourceExists, spec.ID)
		}
	}
	if chamber != nil {
		if _, ok := r.chambers[chamber.ID]; ok {
			return fmt.Errorf("%w: vacuum chamber %s", ErrResourceExists, chamber.ID)
		}
	}

	r.devices[d.ID] = d.DeepCopy()
	if spec != nil {
		r.spectrometers[spec.ID] = spec.DeepCopy()
	}
	if chamber != nil {
		r.chambers[chamber.ID] = chamber.DeepCopy()
	}

	r.logger.Info("device provisioned",
		"id", d.ID,
		"name", d.Name,
		"spectrometer", spec != nil,
		"vacuum_chamber", chamber != nil,
	)
	return nil
}

func prepareDevice(d *Device) error {
	if d.ID == "" {
		d.ID = GenerateID()
	}
	if d.Name == "" {
		d.Name = DefaultDeviceName
	}
	if d.Status == "" {
		d.Status = StatusConnected
	}
	if err := ValidateDeviceType(d.Type); err != nil {
		return err
	}
	return ValidateEndpoint(d.Address, d.Port)
}

// ─── Spectrometers ─────────────────────────────────────────────────

// AddSpectrometer stores a new spectrometer resource. The referenced device
// is not checked; callers that need a type check do it beforehand.
func (r *Registry) AddSpectrometer(s *Spectrometer) error {
	if err := r.prepareSpectrometer(s, true); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.spectrometers[s.ID]; ok {
		return fmt.Errorf("%w: spectrometer %s", ErrResourceExists, s.ID)
	}
	r.spectrometers[s.ID] = s.DeepCopy()

	r.logger.Info("spectrometer added", "id", s.ID, "device_id", s.DeviceID, "name", s.Name)
	return nil
}

func (r *Registry) prepareSpectrometer(s *Spectrometer, operatorNamed bool) error {
	if s.ID == "" {
		s.ID = GenerateID()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = r.now().UTC()
	}
	if err := checkName(s.Name, operatorNamed); err != nil {
		return err
	}
	if s.ControlWavelength != nil {
		if !s.IsMonochromatic {
			return ErrNotMonochromatic
		}
		if err := ValidateWavelength(*s.ControlWavelength); err != nil {
			return err
		}
	}
	return nil
}

// GetSpectrometer retrieves a spectrometer by ID.
// Returns ErrSpectrometerNotFound if it does not exist.
func (r *Registry) GetSpectrometer(id string) (*Spectrometer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.spectrometers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSpectrometerNotFound, id)
	}
	return s.DeepCopy(), nil
}

// ListSpectrometers returns all spectrometers ordered by creation time.
func (r *Registry) ListSpectrometers() []Spectrometer {
	r.mu.RLock()
	out := make([]Spectrometer, 0, len(r.spectrometers))
	for _, s := range r.spectrometers {
		out = append(out, *s.DeepCopy())
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b Spectrometer) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// UpdateSpectrometer applies patch and returns the updated resource.
// Setting a control wavelength on a non-monochromatic spectrometer returns
// ErrNotMonochromatic and leaves the resource unchanged.
func (r *Registry) UpdateSpectrometer(id string, patch SpectrometerPatch) (*Spectrometer, error) {
	if patch.ControlWavelength != nil {
		if err := ValidateWavelength(*patch.ControlWavelength); err != nil {
			return nil, err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.spectrometers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSpectrometerNotFound, id)
	}
	if patch.ControlWavelength != nil {
		if !s.IsMonochromatic {
			return nil, fmt.Errorf("%w: %s", ErrNotMonochromatic, id)
		}
		wl := *patch.ControlWavelength
		s.ControlWavelength = &wl
	}
	return s.DeepCopy(), nil
}

// RemoveSpectrometer deletes a spectrometer and its latest sample.
func (r *Registry) RemoveSpectrometer(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.spectrometers[id]; !ok {
		r.logger.Warn("remove of unknown spectrometer", "id", id)
		return fmt.Errorf("%w: %s", ErrSpectrometerNotFound, id)
	}
	delete(r.spectrometers, id)
	r.samples.Delete(id)

	r.logger.Info("spectrometer removed", "id", id)
	return nil
}

// RecordSample stores sample as the latest for spectrometer id.
func (r *Registry) RecordSample(id string, sample spectral.Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.spectrometers[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSpectrometerNotFound, id)
	}
	r.samples.Put(id, sample)
	return nil
}

// LatestSample returns the latest sample for spectrometer id. The bool is
// false if the spectrometer exists but has no sample yet.
func (r *Registry) LatestSample(id string) (spectral.Sample, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.spectrometers[id]; !ok {
		return spectral.Sample{}, false, fmt.Errorf("%w: %s", ErrSpectrometerNotFound, id)
	}
	sample, ok := r.samples.Get(id)
	return sample, ok, nil
}

// ─── Vacuum chambers ───────────────────────────────────────────────

// AddVacuumChamber stores a new vacuum chamber resource.
func (r *Registry) AddVacuumChamber(c *VacuumChamber) error {
	if err := r.prepareChamber(c, true); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.chambers[c.ID]; ok {
		return fmt.Errorf("%w: vacuum chamber %s", ErrResourceExists, c.ID)
	}
	r.chambers[c.ID] = c.DeepCopy()

	r.logger.Info("vacuum chamber added", "id", c.ID, "device_id", c.DeviceID, "name", c.Name)
	return nil
}

func (r *Registry) prepareChamber(c *VacuumChamber, operatorNamed bool) error {
	if c.ID == "" {
		c.ID = GenerateID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = r.now().UTC()
	}
	if c.ProcessType == "" {
		c.ProcessType = DefaultProcessType
	}
	if c.Status == "" {
		c.Status = ChamberStopped
	}
	if err := checkName(c.Name, operatorNamed); err != nil {
		return err
	}
	if err := ValidateProcessType(c.ProcessType); err != nil {
		return err
	}
	return validateChamberPatch(VacuumChamberPatch{
		Status:   &c.Status,
		Material: c.CurrentMaterial,
		Fraction: c.CurrentFraction,
	})
}

func validateChamberPatch(p VacuumChamberPatch) error {
	if p.Status != nil && *p.Status != ChamberRunning && *p.Status != ChamberStopped {
		return fmt.Errorf("device: invalid chamber status %q", *p.Status)
	}
	if p.Material != nil {
		if err := ValidateMaterial(*p.Material); err != nil {
			return err
		}
	}
	if p.Fraction != nil {
		// Either scale may be stored here; see ValidateFractionNormalised.
		if err := ValidateFractionPercent(*p.Fraction); err != nil {
			return err
		}
	}
	return nil
}

// GetVacuumChamber retrieves a vacuum chamber by ID.
// Returns ErrChamberNotFound if it does not exist.
func (r *Registry) GetVacuumChamber(id string) (*VacuumChamber, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.chambers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrChamberNotFound, id)
	}
	return c.DeepCopy(), nil
}

// ListVacuumChambers returns all vacuum chambers ordered by creation time.
func (r *Registry) ListVacuumChambers() []VacuumChamber {
	r.mu.RLock()
	out := make([]VacuumChamber, 0, len(r.chambers))
	for _, c := range r.chambers {
		out = append(out, *c.DeepCopy())
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b VacuumChamber) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// UpdateVacuumChamber applies patch and returns the updated resource.
func (r *Registry) UpdateVacuumChamber(id string, patch VacuumChamberPatch) (*VacuumChamber, error) {
	if err := validateChamberPatch(patch); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.chambers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrChamberNotFound, id)
	}
	if patch.Status != nil {
		c.Status = *patch.Status
	}
	if patch.Material != nil {
		m := *patch.Material
		c.CurrentMaterial = &m
	}
	if patch.Fraction != nil {
		f := *patch.Fraction
		c.CurrentFraction = &f
	}
	return c.DeepCopy(), nil
}

// RemoveVacuumChamber deletes a vacuum chamber.
func (r *Registry) RemoveVacuumChamber(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.chambers[id]; !ok {
		r.logger.Warn("remove of unknown vacuum chamber", "id", id)
		return fmt.Errorf("%w: %s", ErrChamberNotFound, id)
	}
	delete(r.chambers, id)

	r.logger.Info("vacuum chamber removed", "id", id)
	return nil
}

// ─── Active selection ──────────────────────────────────────────────

// SetActive marks resource id of the given kind active and clears the flag
// on every other resource of that kind. On an unknown id nothing changes.
func (r *Registry) SetActive(kind ResourceKind, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch kind {
	case KindSpectrometer:
		if _, ok := r.spectrometers[id]; !ok {
			return fmt.Errorf("%w: %s", ErrSpectrometerNotFound, id)
		}
		for sid, s := range r.spectrometers {
			s.IsActive = sid == id
		}
	case KindVacuumChamber:
		if _, ok := r.chambers[id]; !ok {
			return fmt.Errorf("%w: %s", ErrChamberNotFound, id)
		}
		for cid, c := range r.chambers {
			c.IsActive = cid == id
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}

	r.logger.Info("active resource changed", "kind", kind, "id", id)
	return nil
}

// ActivateSpectrometer makes spectrometer id the active one and returns it.
func (r *Registry) ActivateSpectrometer(id string) (*Spectrometer, error) {
	if err := r.SetActive(KindSpectrometer, id); err != nil {
		return nil, err
	}
	return r.GetSpectrometer(id)
}

// ActivateVacuumChamber makes vacuum chamber id the active one and returns it.
func (r *Registry) ActivateVacuumChamber(id string) (*VacuumChamber, error) {
	if err := r.SetActive(KindVacuumChamber, id); err != nil {
		return nil, err
	}
	return r.GetVacuumChamber(id)
}

// ActiveSpectrometer returns the active spectrometer, if any.
func (r *Registry) ActiveSpectrometer() (*Spectrometer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.spectrometers {
		if s.IsActive {
			return s.DeepCopy(), true
		}
	}
	return nil, false
}

// ActiveVacuumChamber returns the active vacuum chamber, if any.
func (r *Registry) ActiveVacuumChamber() (*VacuumChamber, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.chambers {
		if c.IsActive {
			return c.DeepCopy(), true
		}
	}
	return nil, false
}

// ActiveID returns the id of the active resource of kind, or "" if none.
func (r *Registry) ActiveID(kind ResourceKind) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	switch kind {
	case KindSpectrometer:
		for id, s := range r.spectrometers {
			if s.IsActive {
				return id
			}
		}
	case KindVacuumChamber:
		for id, c := range r.chambers {
			if c.IsActive {
				return id
			}
		}
	}
	return ""
}

// ─── Stats ─────────────────────────────────────────────────────────

// Stats returns registry statistics for monitoring.
type Stats struct {
	TotalDevices   int
	Spectrometers  int
	VacuumChambers int
	ByType         map[DeviceType]int
	ByStatus       map[Status]int
}

// GetStats returns current registry statistics.
func (r *Registry) GetStats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{
		TotalDevices:   len(r.devices),
		Spectrometers:  len(r.spectrometers),
		VacuumChambers: len(r.chambers),
		ByType:         make(map[DeviceType]int),
		ByStatus:       make(map[Status]int),
	}
	for _, d := range r.devices {
		stats.ByType[d.Type]++
		stats.ByStatus[d.Status]++
	}
	return stats
}
