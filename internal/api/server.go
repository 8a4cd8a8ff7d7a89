// Package api provides the HTTP REST API and WebSocket server for OptiMonitor Core.
//
// It exposes discovery, registry, peripheral control and live spectral data
// to operator dashboards and automation scripts.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/optimonitor-core/internal/broadcast"
	"github.com/nerrad567/optimonitor-core/internal/control"
	"github.com/nerrad567/optimonitor-core/internal/discovery"
	"github.com/nerrad567/optimonitor-core/internal/infrastructure/config"
	"github.com/nerrad567/optimonitor-core/internal/infrastructure/logging"
	"github.com/nerrad567/optimonitor-core/internal/infrastructure/metrics"
	"github.com/nerrad567/optimonitor-core/internal/infrastructure/mqtt"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	WS         config.WebSocketConfig
	Discovery  config.DiscoveryConfig
	Metrics    config.MetricsConfig
	Logger     *logging.Logger
	Controller *control.Controller
	Discoverer *discovery.Discoverer
	Hub        *broadcast.Hub
	Collectors *metrics.Metrics // optional; /metrics is not mounted without it
	MQTT       *mqtt.Client     // optional; reported in /health and /stats
	Version    string
}

// Server is the HTTP API server for OptiMonitor Core.
//
// It manages the HTTP listener, routes, middleware, and the streaming
// endpoint. The server is created with New() and started with Start().
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	discCfg    config.DiscoveryConfig
	metricsCfg config.MetricsConfig
	logger     *logging.Logger
	ctrl       *control.Controller
	discoverer *discovery.Discoverer
	hub        *broadcast.Hub
	collectors *metrics.Metrics
	mqtt       *mqtt.Client
	version    string
	startTime  time.Time
	server     *http.Server
	listener   net.Listener
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Controller == nil {
		return nil, fmt.Errorf("controller is required")
	}
	if deps.Discoverer == nil {
		return nil, fmt.Errorf("discoverer is required")
	}
	if deps.Hub == nil {
		return nil, fmt.Errorf("broadcast hub is required")
	}

	return &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		discCfg:    deps.Discovery,
		metricsCfg: deps.Metrics,
		logger:     deps.Logger,
		ctrl:       deps.Controller,
		discoverer: deps.Discoverer,
		hub:        deps.Hub,
		collectors: deps.Collectors,
		mqtt:       deps.MQTT,
		version:    deps.Version,
		startTime:  time.Now(),
	}, nil
}

// Start begins listening for HTTP connections.
//
// The listener is bound synchronously so a port conflict is reported here;
// requests are then served in a background goroutine until Close().
func (s *Server) Start(_ context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.logger.Info("API server starting", "address", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// Streaming subscribers are disconnected first since hijacked connections
// are not tracked by http.Server. It then waits up to 10 seconds for
// in-flight requests to complete.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	s.hub.CloseAll()

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
