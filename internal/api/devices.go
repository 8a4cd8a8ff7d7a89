package api

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/optimonitor-core/internal/device"
)

// defaultConnectAddress is used when a connect request omits the address.
const defaultConnectAddress = "localhost"

// connectDeviceRequest is the body of POST /devices/connect.
type connectDeviceRequest struct {
	Address string `json:"address"`
	Port    int    `json:"port"`
}

// connectDeviceResponse reports the discovered device and any resources
// provisioned from its capabilities.
type connectDeviceResponse struct {
	DeviceID        string  `json:"device_id"`
	DeviceName      string  `json:"device_name"`
	SpectrometerID  *string `json:"spectrometer_id"`
	VacuumChamberID *string `json:"vacuum_chamber_id"`
}

// handleConnectDevice runs the discovery handshake against address:port.
// Any discovery failure is a soft "no device found" (404).
func (s *Server) handleConnectDevice(w http.ResponseWriter, r *http.Request) {
	var req connectDeviceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Address == "" {
		req.Address = defaultConnectAddress
	}
	if err := device.ValidateEndpoint(req.Address, req.Port); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	result, ok := s.discoverer.Discover(r.Context(), req.Address, req.Port, s.callbackURL(r))
	if !ok {
		writeNotFound(w, "no device found at "+net.JoinHostPort(req.Address, strconv.Itoa(req.Port)))
		return
	}

	writeJSON(w, http.StatusOK, connectDeviceResponse{
		DeviceID:        result.Device.ID,
		DeviceName:      result.Device.Name,
		SpectrometerID:  result.SpectrometerID,
		VacuumChamberID: result.VacuumChamberID,
	})
}

// callbackURL is the monitoring API URL handed to peripherals. The
// configured value wins; otherwise it is derived from the request.
func (s *Server) callbackURL(r *http.Request) string {
	if s.discCfg.CallbackURL != "" {
		return strings.TrimRight(s.discCfg.CallbackURL, "/")
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}

// handleListDevices returns all devices.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Registry().ListDevices())
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	dev, err := s.ctrl.Registry().GetDevice(chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dev)
}

// handleDeleteDevice removes a device. Resources that reference it are kept.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Registry().RemoveDevice(chi.URLParam(r, "id")); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
