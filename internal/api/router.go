package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// corsMaxAge is how long browsers may cache a preflight response, in seconds.
const corsMaxAge = 86400

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(cors.Handler(s.corsOptions()))
	r.Use(s.bodySizeLimitMiddleware)

	r.Get("/health", s.handleHealth)
	r.Get("/stats", s.handleStats)
	if s.collectors != nil && s.metricsCfg.Enabled {
		r.Method(http.MethodGet, s.metricsPath(), s.collectors.Handler())
	}

	r.Route("/devices", func(r chi.Router) {
		r.Post("/connect", s.handleConnectDevice)
		r.Get("/", s.handleListDevices)
		r.Get("/{id}", s.handleGetDevice)
		r.Delete("/{id}", s.handleDeleteDevice)
	})

	r.Route("/spectrometers", func(r chi.Router) {
		r.Post("/", s.handleCreateSpectrometer)
		r.Get("/", s.handleListSpectrometers)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSpectrometer)
			r.Delete("/", s.handleDeleteSpectrometer)
			r.Put("/control_wavelength", s.handleSetControlWavelength)
			r.Post("/data", s.handlePostSpectralData)
			r.Get("/data", s.handleGetSpectralData)
			r.Post("/activate", s.handleActivateSpectrometer)
		})
	})

	r.Route("/vacuum-chambers", func(r chi.Router) {
		r.Post("/", s.handleCreateVacuumChamber)
		r.Get("/", s.handleListVacuumChambers)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetVacuumChamber)
			r.Delete("/", s.handleDeleteVacuumChamber)
			r.Post("/start", s.handleStartDeposition)
			r.Post("/stop", s.handleStopDeposition)
			r.Put("/material", s.handleSetMaterial)
			r.Put("/fraction", s.handleSetFraction)
			r.Post("/activate", s.handleActivateVacuumChamber)
		})
	})

	r.Get("/monitoring/active", s.handleActiveMonitoring)

	// Streaming subscription
	r.Get(s.wsPath(), s.handleWebSocket)

	return r
}

func (s *Server) corsOptions() cors.Options {
	origins := s.cfg.CORS.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	methods := s.cfg.CORS.AllowedMethods
	if len(methods) == 0 {
		methods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	headers := s.cfg.CORS.AllowedHeaders
	if len(headers) == 0 {
		headers = []string{"Accept", "Content-Type", "X-Request-ID"}
	}
	return cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: methods,
		AllowedHeaders: headers,
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         corsMaxAge,
	}
}

func (s *Server) wsPath() string {
	if s.wsCfg.Path == "" {
		return "/ws/spectral-data"
	}
	return s.wsCfg.Path
}

func (s *Server) metricsPath() string {
	if s.metricsCfg.Path == "" {
		return "/metrics"
	}
	return s.metricsCfg.Path
}

// handleHealth returns the server health status. MQTT is optional, so a
// lost broker session reports "degraded" rather than failing the check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":  "ok",
		"version": s.version,
	}
	if s.mqtt != nil {
		resp["mqtt"] = "connected"
		if err := s.mqtt.HealthCheck(r.Context()); err != nil {
			resp["status"] = "degraded"
			resp["mqtt"] = "disconnected"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
