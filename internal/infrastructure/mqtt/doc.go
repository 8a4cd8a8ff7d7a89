// Package mqtt provides MQTT client connectivity for OptiMonitor Core.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Republication of every accepted spectral sample
//   - Optional sample ingest from peripherals that publish instead of POST
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Topics
//
//	{prefix}/spectral/{spectrometer_id}          samples out (not retained)
//	{prefix}/ingest/spectral/{spectrometer_id}   samples in
//	{prefix}/active/{kind}                       active resource id (retained)
//	{prefix}/system/status                       online/offline (retained, LWT)
//
// # Security Considerations
//
//   - Enable TLS for any broker outside the lab network (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	pub := mqtt.NewSamplePublisher(client)
//	pub.PublishSample(spectrometerID, sample)
package mqtt
