// Package discovery implements the peripheral discovery handshake and the
// client side of the peripheral control protocol.
//
// # Handshake
//
//  1. GET http://address:port/device/info (bounded by the client timeout)
//  2. Store a Device and the resources its capabilities declare
//  3. POST http://address:port/register with the monitoring callback URL
//
// Any failure in step 1, or a body the registry rejects, is a soft failure:
// Discover returns false and creates nothing. A failure in step 3 is logged
// and never undoes step 2.
//
// # Control calls
//
// PeripheralClient also forwards operator intent to a device:
// control wavelength, chamber start/stop and material. These return
// ErrUpstreamUnavailable (or ErrUpstreamTimeout) so callers can surface them.
package discovery
