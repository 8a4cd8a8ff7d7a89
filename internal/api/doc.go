// Package api implements the HTTP REST API and WebSocket server for OptiMonitor Core.
//
// This package provides:
//   - Device discovery (POST /devices/connect) and device inventory
//   - Spectrometer and vacuum chamber resources, control and activation
//   - Spectral sample ingest and latest-value reads
//   - A WebSocket stream of every accepted sample
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//   - /health, /stats and Prometheus /metrics
//
// # Error Mapping
//
// Domain errors map onto status codes in one place (writeDomainError):
// unknown ids are 404, type conflicts 409, validation failures 400, and
// failed peripheral calls 502 (504 on timeout). Discovery failures are
// always a plain 404 "no device found".
//
// # Streaming
//
// Clients connect to the configured WebSocket path and receive
// {spectrometer_id, timestamp, calibrated_readings} frames. Inbound frames
// are read and discarded. A client whose send buffer fills is dropped.
package api
