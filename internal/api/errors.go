package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/biobridge/internal/bridges/fingerprint"
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
	ErrCodeInternal        = "internal_error"
	ErrCodeInvalidArgument = "invalid_argument"
	ErrCodeLinkUnavailable = "link_unavailable"
	ErrCodeWriteFailed     = "write_failed"
)

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

// writeCommandError maps a gateway rejection onto an HTTP status.
func writeCommandError(w http.ResponseWriter, err error) {
	message := fingerprint.RejectionMessage(err)
	switch {
	case errors.Is(err, fingerprint.ErrLinkUnavailable):
		writeError(w, http.StatusServiceUnavailable, ErrCodeLinkUnavailable, message)
	case errors.Is(err, fingerprint.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, ErrCodeInvalidArgument, message)
	case errors.Is(err, fingerprint.ErrIDAlreadyBound):
		writeError(w, http.StatusConflict, ErrCodeConflict, message)
	case errors.Is(err, fingerprint.ErrWriteFailed):
		writeError(w, http.StatusBadGateway, ErrCodeWriteFailed, message)
	default:
		writeInternalError(w, message)
	}
}
