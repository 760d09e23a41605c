package api

import (
	"encoding/json"
	"net/http"
	"time"
)

const (
	ErrNameValidation      = "validation_error"
	ErrNameUnauthorized    = "unauthorized"
	ErrNameForbidden       = "forbidden"
	ErrNameNotFound        = "resource_not_found"
	ErrNameConflict        = "resource_conflict"
	ErrNameTooManyRequests = "too_many_requests"
	ErrNameInternal        = "internal_server_error"
)

// ErrorResponse is the error envelope returned on every failure path.
// Internal causes are logged server-side; Message carries only what the
// client is allowed to see.
type ErrorResponse struct {
	Name      string `json:"name"`
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	Timestamp string `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, name, message string) {
	writeJSON(w, status, ErrorResponse{
		Name:      name,
		Code:      status,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func badRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrNameValidation, message)
}

func unauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrNameUnauthorized, message)
}

func forbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, ErrNameForbidden, message)
}

func notFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrNameNotFound, message)
}

func conflict(w http.ResponseWriter, message string) {
	writeError(w, http.StatusConflict, ErrNameConflict, message)
}

func internalError(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, ErrNameInternal, "An internal error occurred")
}
