// Package device provides the Device Registry for OptiMonitor Core.
//
// The registry is the authoritative catalogue of discovered peripherals and
// the logical resources provisioned on them: spectrometers and vacuum
// deposition chambers. It enforces identity and active-selection rules and
// keeps the spectral sample store in step with spectrometer lifecycle.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────────┐
//	│                         Device Registry                          │
//	│                                                                  │
//	│  ┌──────────────────┐   ┌──────────────────┐   ┌──────────────┐  │
//	│  │     Registry     │   │   Capabilities   │   │  Validation  │  │
//	│  │  (registry.go)   │   │(capabilities.go) │   │(validation.go│  │
//	│  │                  │   │                  │   │              │  │
//	│  │ • devices        │   │ • known flags    │   │ • ranges     │  │
//	│  │ • resources      │   │ • unrecognized   │   │ • ids        │  │
//	│  │ • active flags   │   │   passthrough    │   │              │  │
//	│  └────────┬─────────┘   └──────────────────┘   └──────────────┘  │
//	└───────────│──────────────────────────────────────────────────────┘
//	            ▼
//	┌──────────────────────┐
//	│   spectral.Store     │
//	│ (latest sample/id)   │
//	└──────────────────────┘
//
// # Key Types
//
//   - Device: a discovered peripheral (address, port, declared capabilities)
//   - Spectrometer: spectrometer resource, optionally monochromatic
//   - VacuumChamber: deposition chamber resource with process type and run status
//   - SpectrometerPatch, VacuumChamberPatch: the fields that may change after creation
//
// # Invariants
//
// Device IDs are unique. At most one spectrometer and at most one vacuum
// chamber are active at any time, tracked independently. Resources keep a
// non-owning DeviceID; removing a device does not cascade, so readers must
// tolerate dangling references. Removing a spectrometer also deletes its
// latest sample.
//
// # Usage
//
//	reg := device.NewRegistry(spectral.NewStore())
//	reg.SetLogger(log)
//
//	dev := &device.Device{Type: device.DeviceTypeSpectrometer, Address: "10.0.0.7", Port: 8000}
//	spec := &device.Spectrometer{Name: "Bench - Spectrometer", IsMonochromatic: true}
//	if err := reg.Provision(dev, spec, nil); err != nil {
//	    return err
//	}
//
//	if err := reg.SetActive(device.KindSpectrometer, spec.ID); err != nil {
//	    return err
//	}
//
// # Thread Safety
//
// The Registry is safe for concurrent use. One read-write mutex protects
// all maps, so the active-flag sweep is never observed half done.
package device
