// Package metrics exposes Prometheus collectors for OptiMonitor Core.
//
// A Metrics value owns its own prometheus.Registry so tests and multiple
// servers in one process never collide on the default registerer. The
// methods satisfy the small Observer/Recorder interfaces declared by the
// discovery and broadcast packages, and every method is safe on a nil
// receiver so callers can run without metrics.
package metrics
