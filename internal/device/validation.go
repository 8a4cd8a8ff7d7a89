package device

import (
	"fmt"
	"math"
	"net"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Validation constants.
const (
	maxNameLength     = 100
	maxMaterialLength = 32
	maxAddressLength  = 253
	maxPort           = 65535

	// Deposition fraction bounds. The material endpoint speaks percent,
	// the fraction endpoint speaks a normalised ratio. Both are kept.
	maxFractionPercent    = 100.0
	maxFractionNormalised = 1.0
)

// ValidateDeviceType checks that t is a known peripheral kind.
func ValidateDeviceType(t DeviceType) error {
	for _, known := range AllDeviceTypes() {
		if t == known {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrInvalidDeviceType, t)
}

// ValidateProcessType checks that p is a known deposition process.
func ValidateProcessType(p ProcessType) error {
	for _, known := range AllProcessTypes() {
		if p == known {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrInvalidProcessType, p)
}

// ValidateName checks a display name. The limit counts characters, not bytes.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// checkName applies ValidateName to operator-supplied names and only the
// non-empty check to derived ones.
func checkName(name string, operatorNamed bool) error {
	if operatorNamed {
		return ValidateName(name)
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	return nil
}

// ValidateEndpoint checks a peripheral address and port.
func ValidateEndpoint(address string, port int) error {
	if strings.TrimSpace(address) == "" {
		return fmt.Errorf("%w: address is required", ErrInvalidAddress)
	}
	if len(address) > maxAddressLength || strings.ContainsAny(address, "/?#@ ") {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	if port < 1 || port > maxPort {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidAddress, port)
	}
	return nil
}

// ValidateWavelength checks a control wavelength in nm.
func ValidateWavelength(wl float64) error {
	if math.IsNaN(wl) || math.IsInf(wl, 0) || wl <= 0 {
		return fmt.Errorf("%w: must be greater than 0", ErrInvalidWavelength)
	}
	return nil
}

// ValidateMaterial checks a material label such as "H" or "L".
func ValidateMaterial(material string) error {
	if strings.TrimSpace(material) == "" {
		return fmt.Errorf("%w: material is required", ErrInvalidMaterial)
	}
	if len(material) > maxMaterialLength {
		return fmt.Errorf("%w: material exceeds %d characters", ErrInvalidMaterial, maxMaterialLength)
	}
	return nil
}

// ValidateFractionPercent checks a deposition fraction on the 0-100 scale
// used when setting material.
func ValidateFractionPercent(f float64) error {
	return validateFraction(f, maxFractionPercent)
}

// ValidateFractionNormalised checks a deposition fraction on the 0-1 scale
// used by the standalone fraction update. This overlaps the percent scale for
// the same quantity; the two entry points are deliberately not reconciled.
func ValidateFractionNormalised(f float64) error {
	return validateFraction(f, maxFractionNormalised)
}

func validateFraction(f, upper float64) error {
	if math.IsNaN(f) || f < 0 || f > upper {
		return fmt.Errorf("%w: %v not in [0, %v]", ErrInvalidFraction, f, upper)
	}
	return nil
}

// GenerateID generates a new unique identifier for devices and resources.
func GenerateID() string {
	return uuid.New().String()
}

// PeripheralURL builds the base URL for a peripheral HTTP server.
func PeripheralURL(address string, port int) string {
	return "http://" + net.JoinHostPort(address, strconv.Itoa(port))
}
