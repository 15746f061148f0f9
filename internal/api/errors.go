package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/envmonitor/internal/reading"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeInternal         = "internal_error"
	ErrCodeStoreUnavailable = "store_unavailable"
	ErrCodeMethodNotAllow   = "method_not_allowed"
	ErrCodeTooLarge         = "request_too_large"
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

// writeReadingError maps reading domain errors onto HTTP responses.
// Internal details are logged by the caller, never sent to the client.
func writeReadingError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, "request body too large")
	case errors.Is(err, reading.ErrInvalidReading):
		writeBadRequest(w, err.Error())
	case errors.Is(err, reading.ErrNotFound):
		writeNotFound(w, "reading not found")
	case errors.Is(err, reading.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, ErrCodeStoreUnavailable, "reading store unavailable")
	default:
		writeInternalError(w, "internal server error")
	}
}
