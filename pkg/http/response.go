package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coverdeskhq/coverdesk/internal/models"
)

// Envelope is the standard API response shape. Every response carries
// Success; failures carry Message and successes carry Data (or Message for
// operations with no payload).
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// WriteData writes a success envelope with a payload.
func WriteData(w http.ResponseWriter, statusCode int, data interface{}) {
	writeEnvelope(w, statusCode, Envelope{Success: true, Data: data})
}

// WriteMessage writes a success envelope with a message and no payload.
func WriteMessage(w http.ResponseWriter, statusCode int, message string) {
	writeEnvelope(w, statusCode, Envelope{Success: true, Message: message})
}

// WriteError writes a failure envelope with the given status code.
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	writeEnvelope(w, statusCode, Envelope{Success: false, Message: message})
}

func writeEnvelope(w http.ResponseWriter, statusCode int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	// Log encoding errors but don't expose them to the client
	_ = json.NewEncoder(w).Encode(env)
}

// Common error writers for consistency
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message)
}

func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, message)
}

func WriteForbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, message)
}

func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, message)
}

func WriteMethodNotAllowed(w http.ResponseWriter) {
	WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
}

func WriteConflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, message)
}

func WriteTooManyRequests(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, message)
}

func WriteInternalError(w http.ResponseWriter) {
	// Detail stays server-side; the caller always gets a generic message.
	WriteError(w, http.StatusInternalServerError, "Internal server error")
}

// WriteDomainError maps a sentinel error from the models package onto the
// status codes of the error taxonomy. This is the single boundary where
// service errors become HTTP responses.
func WriteDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrUnauthorized):
		WriteUnauthorized(w, "Unauthorized")
	case errors.Is(err, models.ErrSessionExpired):
		WriteUnauthorized(w, "Session expired")
	case errors.Is(err, models.ErrAccountInactive):
		WriteForbidden(w, "Account is inactive")
	case errors.Is(err, models.ErrAccountLocked):
		WriteForbidden(w, "Account is temporarily locked")
	case errors.Is(err, models.ErrInvalidCSRF):
		WriteForbidden(w, "Invalid CSRF token")
	case errors.Is(err, models.ErrForbidden):
		WriteForbidden(w, "Forbidden")
	case errors.Is(err, models.ErrTooManyAttempts):
		WriteTooManyRequests(w, "Too many login attempts. Please try again later.")
	case errors.Is(err, models.ErrRateLimitExceeded):
		WriteTooManyRequests(w, "Rate limit exceeded. Please try again later.")
	case errors.Is(err, models.ErrNotFound):
		WriteNotFound(w, "Resource not found")
	case errors.Is(err, models.ErrConflict):
		WriteConflict(w, "Resource already exists")
	case errors.Is(err, models.ErrBadRequest):
		WriteBadRequest(w, "Bad request")
	default:
		WriteInternalError(w)
	}
}
