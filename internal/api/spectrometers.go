package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/optimonitor-core/internal/control"
)

type createSpectrometerRequest struct {
	DeviceID string `json:"device_id"`
	Name     string `json:"name"`
}

type setControlWavelengthRequest struct {
	Wavelength *float64 `json:"wavelength"`
}

// postSpectralDataRequest is a sample pushed by a peripheral. Wavelengths may
// be omitted by monochromatic devices; a missing timestamp means "now".
type postSpectralDataRequest struct {
	CalibratedReadings []float64  `json:"calibrated_readings"`
	Wavelengths        []float64  `json:"wavelengths"`
	Timestamp          *time.Time `json:"timestamp"`
}

// handleCreateSpectrometer provisions a spectrometer on a spectrometer device.
func (s *Server) handleCreateSpectrometer(w http.ResponseWriter, r *http.Request) {
	var req createSpectrometerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.DeviceID == "" {
		writeBadRequest(w, "device_id is required")
		return
	}

	spec, err := s.ctrl.CreateSpectrometer(req.DeviceID, req.Name)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, spec)
}

// handleListSpectrometers returns all spectrometers.
func (s *Server) handleListSpectrometers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Registry().ListSpectrometers())
}

// handleGetSpectrometer returns a spectrometer with its device and latest sample.
func (s *Server) handleGetSpectrometer(w http.ResponseWriter, r *http.Request) {
	details, err := s.ctrl.SpectrometerDetails(chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

// handleSetControlWavelength forwards a control wavelength to the device.
func (s *Server) handleSetControlWavelength(w http.ResponseWriter, r *http.Request) {
	var req setControlWavelengthRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Wavelength == nil {
		writeBadRequest(w, "wavelength is required")
		return
	}

	spec, err := s.ctrl.SetControlWavelength(r.Context(), chi.URLParam(r, "id"), *req.Wavelength)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, spec)
}

// handlePostSpectralData stores a sample and fans it out to subscribers.
func (s *Server) handlePostSpectralData(w http.ResponseWriter, r *http.Request) {
	var req postSpectralDataRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	in := control.SampleInput{
		Readings:    req.CalibratedReadings,
		Wavelengths: req.Wavelengths,
	}
	if req.Timestamp != nil {
		in.Timestamp = *req.Timestamp
	}

	sample, err := s.ctrl.PostSample(chi.URLParam(r, "id"), in, control.SourceHTTP)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sample)
}

// handleGetSpectralData returns the latest sample, or null if none was posted.
func (s *Server) handleGetSpectralData(w http.ResponseWriter, r *http.Request) {
	sample, ok, err := s.ctrl.Registry().LatestSample(chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, json.RawMessage("null"))
		return
	}
	writeJSON(w, http.StatusOK, sample)
}

// handleActivateSpectrometer makes a spectrometer the active one.
func (s *Server) handleActivateSpectrometer(w http.ResponseWriter, r *http.Request) {
	spec, err := s.ctrl.ActivateSpectrometer(chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, spec)
}

// handleDeleteSpectrometer removes a spectrometer and its latest sample.
func (s *Server) handleDeleteSpectrometer(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Registry().RemoveSpectrometer(chi.URLParam(r, "id")); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
