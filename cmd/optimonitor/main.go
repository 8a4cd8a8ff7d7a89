// OptiMonitor Core - optical coating process monitoring.
//
// This is the main entry point for the OptiMonitor Core service. It discovers
// lab peripherals over HTTP, keeps the registry of spectrometers and vacuum
// chambers, stores the latest spectral sample per spectrometer, and streams
// every accepted sample to WebSocket subscribers.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/optimonitor-core/internal/api"
	"github.com/nerrad567/optimonitor-core/internal/broadcast"
	"github.com/nerrad567/optimonitor-core/internal/control"
	"github.com/nerrad567/optimonitor-core/internal/device"
	"github.com/nerrad567/optimonitor-core/internal/discovery"
	"github.com/nerrad567/optimonitor-core/internal/infrastructure/config"
	"github.com/nerrad567/optimonitor-core/internal/infrastructure/logging"
	"github.com/nerrad567/optimonitor-core/internal/infrastructure/metrics"
	"github.com/nerrad567/optimonitor-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/optimonitor-core/internal/spectral"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// configEnv names the environment variable holding the config file path.
const configEnv = "OPTIMONITOR_CONFIG"

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1) //nolint:gocritic // cancel called explicitly above
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "optimonitor",
		Short:         "Optical monitoring core: device discovery, spectral store and live streaming",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(commandContext(cmd), configPath)
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", getConfigPath(),
		"Path to the YAML config file (env "+configEnv+"); defaults and environment overrides apply when empty")

	cmd.AddCommand(newServeCommand(&configPath))
	cmd.AddCommand(newProbeCommand(&configPath))
	cmd.AddCommand(newVersionCommand())
	return cmd
}

func newServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the monitoring API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(commandContext(cmd), *configPath)
		},
	}
}

func newProbeCommand(configPath *string) *cobra.Command {
	var (
		address string
		port    int
	)

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Fetch /device/info from a peripheral without registering it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return probe(commandContext(cmd), cmd.OutOrStdout(), cfg.GetDiscoveryTimeout(), address, port)
		},
	}

	cmd.Flags().StringVar(&address, "address", "localhost", "Peripheral host name or IP")
	cmd.Flags().IntVar(&port, "port", 0, "Peripheral HTTP port")
	_ = cmd.MarkFlagRequired("port")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "optimonitor %s (commit %s, built %s)\n", version, commit, date)
			return err
		},
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// getConfigPath returns the configuration file path from OPTIMONITOR_CONFIG.
// An empty result means built-in defaults plus environment overrides.
func getConfigPath() string {
	return os.Getenv(configEnv)
}

// probe prints the peripheral's self-description as indented JSON.
func probe(ctx context.Context, out io.Writer, timeout time.Duration, address string, port int) error {
	if err := device.ValidateEndpoint(address, port); err != nil {
		return err
	}
	info, err := discovery.NewPeripheralClient(timeout).Info(ctx, address, port)
	if err != nil {
		return fmt.Errorf("probing %s:%d: %w", address, port, err)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(info)
}

// run is the service lifecycle, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context, configPath string) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting OptiMonitor Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if configPath != "" {
		log.Info("configuration loaded", "path", configPath)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	var collectors *metrics.Metrics
	if cfg.Metrics.Enabled {
		collectors, err = metrics.New()
		if err != nil {
			return fmt.Errorf("creating metrics: %w", err)
		}
	}

	registry := device.NewRegistry(spectral.NewStore())
	if collectors != nil {
		if watchErr := collectors.WatchInventory(func() (int, int, int) {
			s := registry.GetStats()
			return s.TotalDevices, s.Spectrometers, s.VacuumChambers
		}); watchErr != nil {
			return fmt.Errorf("registering inventory metrics: %w", watchErr)
		}
	}

	peripherals := discovery.NewPeripheralClient(cfg.GetDiscoveryTimeout())
	discoverer := discovery.New(registry, peripherals)
	discoverer.SetLogger(log.Component("discovery"))

	hub := broadcast.NewHub()
	hub.SetLogger(log.Component("broadcast"))

	ctrl := control.New(registry, peripherals, hub, log.Component("control"))

	if collectors != nil {
		peripherals.SetObserver(collectors)
		discoverer.SetRecorder(collectors)
		hub.SetRecorder(collectors)
		ctrl.SetRecorder(collectors)
	}

	mqttClient, err := connectMQTT(cfg.MQTT, log)
	if err != nil {
		return err
	}
	if mqttClient != nil {
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		ctrl.SetPublisher(mqtt.NewSamplePublisher(mqttClient))

		if cfg.MQTT.Ingest {
			if subErr := subscribeIngest(mqttClient, ctrl, log); subErr != nil {
				return subErr
			}
		}
	}

	server, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Discovery:  cfg.Discovery,
		Metrics:    cfg.Metrics,
		Logger:     log,
		Controller: ctrl,
		Discoverer: discoverer,
		Hub:        hub,
		Collectors: collectors,
		MQTT:       mqttClient,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal", "addr", server.Addr())

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server (closes WebSocket subscribers)
	// 2. MQTT (if enabled)

	log.Info("OptiMonitor Core stopped")
	return nil
}

// connectMQTT connects to the broker when MQTT is enabled. A nil client
// with a nil error means MQTT is disabled.
func connectMQTT(cfg config.MQTTConfig, log *logging.Logger) (*mqtt.Client, error) {
	client, err := mqtt.Connect(cfg)
	if errors.Is(err, mqtt.ErrDisabled) {
		log.Info("MQTT disabled")
		return nil, nil //nolint:nilnil // disabled is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log.Component("mqtt"))
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
		"client_id", cfg.Broker.ClientID,
		"prefix", client.Topics().Prefix(),
	)
	return client, nil
}

// subscribeIngest accepts samples published to {prefix}/ingest/spectral/+
// exactly as if they had been POSTed to the API.
func subscribeIngest(client *mqtt.Client, ctrl *control.Controller, log *logging.Logger) error {
	topics := client.Topics()
	topic := topics.AllIngestSamples()

	err := client.Subscribe(topic, client.QoS(), ingestHandler(topics, ctrl))
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	log.Info("MQTT sample ingest enabled", "topic", topic)
	return nil
}

// ingestHandler decodes an ingest message and posts it through the
// controller. Rejected messages are dropped; the client logs the error.
func ingestHandler(topics mqtt.Topics, ctrl *control.Controller) mqtt.MessageHandler {
	return func(topic string, payload []byte) error {
		id, sample, err := mqtt.DecodeIngest(topics, topic, payload, time.Now().UTC())
		if err != nil {
			return err
		}
		_, err = ctrl.PostSample(id, control.SampleInput{
			Readings:    sample.Readings,
			Wavelengths: sample.Wavelengths,
			Timestamp:   sample.Timestamp,
		}, control.SourceMQTT)
		if err != nil {
			return fmt.Errorf("spectrometer %s: %w", id, err)
		}
		return nil
	}
}
