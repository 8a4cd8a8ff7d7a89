package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/optimonitor-core/internal/device"
)

type createVacuumChamberRequest struct {
	DeviceID    string             `json:"device_id"`
	Name        string             `json:"name"`
	ProcessType device.ProcessType `json:"process_type"`
}

// setMaterialRequest carries a fraction on the 0-100 scale, default 100.
type setMaterialRequest struct {
	Material string   `json:"material"`
	Fraction *float64 `json:"fraction"`
}

// setFractionRequest carries a fraction on the 0-1 scale.
type setFractionRequest struct {
	Fraction *float64 `json:"fraction"`
}

// handleCreateVacuumChamber provisions a chamber on a vacuum-chamber device.
func (s *Server) handleCreateVacuumChamber(w http.ResponseWriter, r *http.Request) {
	var req createVacuumChamberRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.DeviceID == "" {
		writeBadRequest(w, "device_id is required")
		return
	}

	vc, err := s.ctrl.CreateVacuumChamber(req.DeviceID, req.Name, req.ProcessType)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, vc)
}

// handleListVacuumChambers returns all vacuum chambers.
func (s *Server) handleListVacuumChambers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Registry().ListVacuumChambers())
}

// handleGetVacuumChamber returns a chamber with its device.
func (s *Server) handleGetVacuumChamber(w http.ResponseWriter, r *http.Request) {
	details, err := s.ctrl.VacuumChamberDetails(chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

// handleStartDeposition starts a deposition run on the device.
func (s *Server) handleStartDeposition(w http.ResponseWriter, r *http.Request) {
	vc, err := s.ctrl.StartDeposition(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vc)
}

// handleStopDeposition stops a deposition run on the device.
func (s *Server) handleStopDeposition(w http.ResponseWriter, r *http.Request) {
	vc, err := s.ctrl.StopDeposition(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vc)
}

// handleSetMaterial forwards material and fraction (0-100) to the device.
func (s *Server) handleSetMaterial(w http.ResponseWriter, r *http.Request) {
	var req setMaterialRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	vc, err := s.ctrl.SetMaterial(r.Context(), chi.URLParam(r, "id"), req.Material, req.Fraction)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vc)
}

// handleSetFraction stores a 0-1 fraction without contacting the device.
func (s *Server) handleSetFraction(w http.ResponseWriter, r *http.Request) {
	var req setFractionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Fraction == nil {
		writeBadRequest(w, "fraction is required")
		return
	}

	vc, err := s.ctrl.SetFraction(chi.URLParam(r, "id"), *req.Fraction)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vc)
}

// handleActivateVacuumChamber makes a chamber the active one.
func (s *Server) handleActivateVacuumChamber(w http.ResponseWriter, r *http.Request) {
	vc, err := s.ctrl.ActivateVacuumChamber(chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vc)
}

// handleDeleteVacuumChamber removes a chamber.
func (s *Server) handleDeleteVacuumChamber(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Registry().RemoveVacuumChamber(chi.URLParam(r, "id")); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
