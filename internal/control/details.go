package control

import (
	"errors"

	"github.com/nerrad567/optimonitor-core/internal/device"
	"github.com/nerrad567/optimonitor-core/internal/spectral"
)

// SpectrometerDetails is a spectrometer joined with its device and latest sample.
type SpectrometerDetails struct {
	device.Spectrometer
	LatestData *spectral.Sample `json:"latest_data"`
	DeviceInfo *device.Device   `json:"device_info"`
}

// VacuumChamberDetails is a vacuum chamber joined with its device.
type VacuumChamberDetails struct {
	ID          string               `json:"id"`
	DeviceID    string               `json:"device_id"`
	Name        string               `json:"name"`
	ProcessType device.ProcessType   `json:"process_type"`
	Status      device.ChamberStatus `json:"status"`
	Material    *string              `json:"material"`
	Fraction    *float64             `json:"fraction"`
	IsActive    bool                 `json:"is_active"`
	DeviceInfo  *device.Device       `json:"device_info"`
}

// ActiveStatus is the currently active resource of each kind. A field is nil
// when nothing of that kind is active or its device has been removed.
type ActiveStatus struct {
	Spectrometer  *SpectrometerDetails  `json:"spectrometer"`
	VacuumChamber *VacuumChamberDetails `json:"vacuum_chamber"`
}

// SpectrometerDetails returns spectrometer id with its device record and
// latest sample. A dangling device reference is reported as not found.
func (c *Controller) SpectrometerDetails(id string) (*SpectrometerDetails, error) {
	s, err := c.registry.GetSpectrometer(id)
	if err != nil {
		return nil, err
	}
	return c.spectrometerDetails(s)
}

func (c *Controller) spectrometerDetails(s *device.Spectrometer) (*SpectrometerDetails, error) {
	d, err := c.registry.GetDevice(s.DeviceID)
	if err != nil {
		return nil, err
	}
	out := &SpectrometerDetails{Spectrometer: *s, DeviceInfo: d}

	sample, ok, err := c.registry.LatestSample(s.ID)
	if err != nil {
		return nil, err
	}
	if ok {
		out.LatestData = &sample
	}
	return out, nil
}

// VacuumChamberDetails returns chamber id with its device record.
// A dangling device reference is reported as not found.
func (c *Controller) VacuumChamberDetails(id string) (*VacuumChamberDetails, error) {
	vc, d, err := c.chamberDevice(id)
	if err != nil {
		return nil, err
	}
	return chamberDetails(vc, d), nil
}

func chamberDetails(vc *device.VacuumChamber, d *device.Device) *VacuumChamberDetails {
	return &VacuumChamberDetails{
		ID:          vc.ID,
		DeviceID:    vc.DeviceID,
		Name:        vc.Name,
		ProcessType: vc.ProcessType,
		Status:      vc.Status,
		Material:    vc.CurrentMaterial,
		Fraction:    vc.CurrentFraction,
		IsActive:    vc.IsActive,
		DeviceInfo:  d,
	}
}

// Active returns the active spectrometer and vacuum chamber. Resources whose
// device has been removed, or that are removed while the snapshot is being
// taken, are reported as absent.
func (c *Controller) Active() (ActiveStatus, error) {
	var out ActiveStatus

	if s, ok := c.registry.ActiveSpectrometer(); ok {
		details, err := c.spectrometerDetails(s)
		switch {
		case err == nil:
			out.Spectrometer = details
		case !errors.Is(err, device.ErrNotFound):
			return ActiveStatus{}, err
		}
	}

	if vc, ok := c.registry.ActiveVacuumChamber(); ok {
		d, err := c.registry.GetDevice(vc.DeviceID)
		switch {
		case err == nil:
			out.VacuumChamber = chamberDetails(vc, d)
		case !errors.Is(err, device.ErrNotFound):
			return ActiveStatus{}, err
		}
	}

	return out, nil
}
