package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/optimonitor-core/internal/control"
	"github.com/nerrad567/optimonitor-core/internal/device"
	"github.com/nerrad567/optimonitor-core/internal/discovery"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest      = "bad_request"
	ErrCodeNotFound        = "not_found"
	ErrCodeConflict        = "conflict"
	ErrCodeUpstream        = "upstream_error"
	ErrCodeUpstreamTimeout = "upstream_timeout"
	ErrCodeInternal        = "internal_error"
	ErrCodePayloadTooLarge = "payload_too_large"
)

// validationErrors are domain errors reported as 400.
var validationErrors = []error{
	device.ErrInvalidWavelength,
	device.ErrInvalidFraction,
	device.ErrInvalidMaterial,
	device.ErrInvalidProcessType,
	device.ErrInvalidDeviceType,
	device.ErrInvalidName,
	device.ErrInvalidAddress,
	device.ErrInvalidKind,
	control.ErrMissingReadings,
}

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeDomainError maps an error from the device, discovery or control
// packages onto a status code. Unrecognised errors are logged and reported
// as 500 without their message.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, device.ErrNotFound):
		writeNotFound(w, err.Error())
	case errors.Is(err, device.ErrNotMonochromatic),
		errors.Is(err, device.ErrTypeMismatch),
		errors.Is(err, device.ErrDeviceExists),
		errors.Is(err, device.ErrResourceExists):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, discovery.ErrUpstreamTimeout):
		writeError(w, http.StatusGatewayTimeout, ErrCodeUpstreamTimeout, err.Error())
	case errors.Is(err, discovery.ErrUpstreamUnavailable):
		writeError(w, http.StatusBadGateway, ErrCodeUpstream, err.Error())
	case isValidation(err):
		writeBadRequest(w, err.Error())
	default:
		s.requestLogger(r).Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		writeInternalError(w, "internal server error")
	}
}

func isValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// decodeJSON decodes the request body into v. It writes 413 when the body
// limit was hit and 400 for anything else that fails to decode.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "request body too large")
		return false
	}
	writeBadRequest(w, "invalid JSON body")
	return false
}
