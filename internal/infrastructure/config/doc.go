// Package config loads OptiMonitor Core settings.
//
// Values are layered: built-in defaults (Default), then an optional YAML
// file, then OPTIMONITOR_* environment variables. Load validates the result
// and reports every problem in a single error.
//
// Keep MQTT credentials in OPTIMONITOR_MQTT_USERNAME and
// OPTIMONITOR_MQTT_PASSWORD rather than in the file.
//
//	cfg, err := config.Load(os.Getenv("OPTIMONITOR_CONFIG"))
//	if err != nil {
//	    return err
//	}
//	timeout := cfg.GetDiscoveryTimeout()
package config
