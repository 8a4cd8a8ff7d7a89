package device

import (
	"errors"
	"fmt"
)

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrNotFound) {
//	    // handle any unknown device or resource id
//	}
var (
	// ErrNotFound is the umbrella for every unknown-id condition.
	ErrNotFound = errors.New("device: not found")

	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = fmt.Errorf("%w: device", ErrNotFound)

	// ErrSpectrometerNotFound is returned when a spectrometer ID does not exist.
	ErrSpectrometerNotFound = fmt.Errorf("%w: spectrometer", ErrNotFound)

	// ErrChamberNotFound is returned when a vacuum chamber ID does not exist.
	ErrChamberNotFound = fmt.Errorf("%w: vacuum chamber", ErrNotFound)

	// ErrDeviceExists is returned when adding a device whose ID is already registered.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrResourceExists is returned when adding a resource whose ID is already registered.
	ErrResourceExists = errors.New("device: resource already exists")

	// ErrTypeMismatch is returned when a resource is created on a device of the wrong kind.
	ErrTypeMismatch = errors.New("device: type mismatch")

	// ErrNotMonochromatic is returned when a control wavelength is set on a
	// spectrometer that does not support one.
	ErrNotMonochromatic = errors.New("device: spectrometer is not monochromatic")

	// ErrInvalidDeviceType is returned when a device type is not recognised.
	ErrInvalidDeviceType = errors.New("device: invalid type")

	// ErrInvalidProcessType is returned when a process type is not recognised.
	ErrInvalidProcessType = errors.New("device: invalid process type")

	// ErrInvalidCapabilities is returned when a known capability flag has the wrong JSON type.
	ErrInvalidCapabilities = errors.New("device: invalid capabilities")

	// ErrInvalidName is returned when a name is empty or too long.
	ErrInvalidName = errors.New("device: invalid name")

	// ErrInvalidAddress is returned when a peripheral address or port is unusable.
	ErrInvalidAddress = errors.New("device: invalid address")

	// ErrInvalidWavelength is returned when a control wavelength is not positive.
	ErrInvalidWavelength = errors.New("device: invalid wavelength")

	// ErrInvalidFraction is returned when a deposition fraction is out of range.
	ErrInvalidFraction = errors.New("device: invalid fraction")

	// ErrInvalidMaterial is returned when a material label is empty or too long.
	ErrInvalidMaterial = errors.New("device: invalid material")

	// ErrInvalidKind is returned when a resource kind is not recognised.
	ErrInvalidKind = errors.New("device: invalid resource kind")
)
