// Package control carries out operator actions on discovered peripherals.
//
// Each action validates against the device registry first, then calls the
// peripheral's HTTP server, and only writes the registry once the device has
// accepted the change. Upstream failures surface to the caller unchanged so
// the gateway can map them to 502/504.
//
// Posting a spectral sample records it as the spectrometer's latest value,
// broadcasts it to every live subscriber and, when MQTT is enabled,
// republishes it on {prefix}/spectral/{id}.
//
// The two chamber fraction entry points use different scales: SetMaterial
// takes 0-100 and forwards it to the device, SetFraction takes 0-1 and only
// updates the registry. Both write the same field.
package control
