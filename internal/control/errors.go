package control

import "errors"

// Domain errors for the control package.
var (
	// ErrInternal is returned when a registry mutation fails after every
	// precondition was checked. It indicates a logic bug or a concurrent
	// removal between the device call and the registry write.
	ErrInternal = errors.New("control: internal error")

	// ErrMissingReadings is returned when a sample carries no readings.
	ErrMissingReadings = errors.New("control: calibrated_readings is required")
)
