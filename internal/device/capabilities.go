package device

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Capability keys understood by the registry.
const (
	capHasSpectrometer  = "has_spectrometer"
	capIsMonochromatic  = "is_monochromatic"
	capHasVacuumChamber = "has_vacuum_chamber"
	capProcessType      = "process_type"
)

// Capabilities is the set of flags a peripheral declares about itself.
//
// Known flags are decoded into typed fields by truthiness. Anything else
// the peripheral sends, including a process type that is not a string, is
// preserved verbatim in Unrecognized.
type Capabilities struct {
	HasSpectrometer  bool
	IsMonochromatic  bool
	HasVacuumChamber bool

	// ProcessType is empty when the peripheral did not declare one.
	ProcessType ProcessType

	Unrecognized map[string]json.RawMessage
}

// UnmarshalJSON decodes the open-ended capability map.
func (c *Capabilities) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*c = Capabilities{}
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCapabilities, err)
	}

	var out Capabilities
	for key, value := range raw {
		switch key {
		case capHasSpectrometer:
			out.HasSpectrometer = truthy(value)
		case capIsMonochromatic:
			out.IsMonochromatic = truthy(value)
		case capHasVacuumChamber:
			out.HasVacuumChamber = truthy(value)
		case capProcessType:
			var pt string
			if err := json.Unmarshal(value, &pt); err == nil {
				out.ProcessType = ProcessType(pt)
				continue
			}
			// A non-string process type is kept as-is. It only matters
			// once a chamber is provisioned, which then uses the default.
			out.keep(key, value)
		default:
			out.keep(key, value)
		}
	}

	*c = out
	return nil
}

func (c *Capabilities) keep(key string, value json.RawMessage) {
	if c.Unrecognized == nil {
		c.Unrecognized = make(map[string]json.RawMessage)
	}
	c.Unrecognized[key] = append(json.RawMessage(nil), value...)
}

// truthy reports whether a flag value is set. Peripherals are loose about
// flag types, so null, false, 0, "" and empty arrays or objects are unset
// and anything else is set.
func truthy(value json.RawMessage) bool {
	var v any
	if err := json.Unmarshal(value, &v); err != nil {
		return false
	}
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}

// MarshalJSON encodes the capabilities back into a flat map, omitting known
// flags that are unset.
func (c Capabilities) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(c.Unrecognized)+4)
	for k, v := range c.Unrecognized {
		m[k] = v
	}
	if c.HasSpectrometer {
		m[capHasSpectrometer] = true
	}
	if c.IsMonochromatic {
		m[capIsMonochromatic] = true
	}
	if c.HasVacuumChamber {
		m[capHasVacuumChamber] = true
	}
	if c.ProcessType != "" {
		m[capProcessType] = c.ProcessType
	}
	return json.Marshal(m)
}

// ResolvedProcessType returns the declared process type, or the default when
// the peripheral did not declare one.
func (c Capabilities) ResolvedProcessType() ProcessType {
	if c.ProcessType == "" {
		return DefaultProcessType
	}
	return c.ProcessType
}

func (c Capabilities) clone() Capabilities {
	cpy := c
	if c.Unrecognized != nil {
		cpy.Unrecognized = make(map[string]json.RawMessage, len(c.Unrecognized))
		for k, v := range c.Unrecognized {
			cpy.Unrecognized[k] = append(json.RawMessage(nil), v...)
		}
	}
	return cpy
}
