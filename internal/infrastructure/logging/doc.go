// Package logging builds the service's structured logger on log/slog.
//
// Every entry carries service=optimonitor and the build version; Component
// adds a component field for per-package loggers. Output is JSON unless
// logging.format is "text", and timestamps are UTC.
//
//	log := logging.New(cfg.Logging, version)
//	hub.SetLogger(log.Component("broadcast"))
//
// Never log MQTT passwords or other credentials.
package logging
