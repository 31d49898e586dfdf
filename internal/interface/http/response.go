package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/alem-hub/curriculum-progress/internal/domain/shared"
	"github.com/alem-hub/curriculum-progress/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE ENVELOPE
// ══════════════════════════════════════════════════════════════════════════════

// APIVersion is reported in every response envelope.
const APIVersion = "v1"

// Error codes returned in the envelope.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeNotFound     = "NOT_FOUND"
	CodeRateLimited  = "RATE_LIMITED"
	CodeStorage      = "STORAGE_ERROR"
	CodeInternal     = "INTERNAL_ERROR"
)

// JSONResponse represents a standard JSON response.
type JSONResponse struct {
	Success   bool          `json:"success"`
	Data      any           `json:"data,omitempty"`
	Error     *APIError     `json:"error,omitempty"`
	Meta      *ResponseMeta `json:"meta,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ResponseMeta contains response metadata.
type ResponseMeta struct {
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

func newMeta() *ResponseMeta {
	return &ResponseMeta{Timestamp: time.Now().UTC(), Version: APIVersion}
}

// writeJSON writes a successful envelope around data.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeEnvelope(w, status, JSONResponse{
		Success:   status >= 200 && status < 300,
		Data:      data,
		Meta:      newMeta(),
		RequestID: RequestIDFrom(r.Context()),
	})
}

// writeError writes an error envelope.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]any) {
	writeEnvelope(w, status, JSONResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
		Meta:      newMeta(),
		RequestID: RequestIDFrom(r.Context()),
	})
}

func writeEnvelope(w http.ResponseWriter, status int, body JSONResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// writeDomainError maps an error kind onto its HTTP status and code. Server
// side failures are logged with the request's logger.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	details := map[string]any{}

	var de *shared.DomainError
	if errors.As(err, &de) {
		if de.Field != "" {
			details["field"] = de.Field
		}
		details["operation"] = de.Domain + "." + de.Op
	}

	switch {
	case shared.IsValidation(err):
		writeError(w, r, http.StatusBadRequest, CodeValidation, messageOf(err, "invalid request"), details)

	case shared.IsUnauthorized(err):
		writeError(w, r, http.StatusUnauthorized, CodeUnauthorized, "authentication required", nil)

	case shared.IsNotFound(err):
		writeError(w, r, http.StatusNotFound, CodeNotFound, messageOf(err, "not found"), details)

	case errors.Is(err, shared.ErrRateLimited):
		writeError(w, r, http.StatusTooManyRequests, CodeRateLimited, "too many requests", nil)

	case shared.IsStorage(err):
		logger.FromContext(r.Context()).Error("storage failure", logger.Err(err))
		writeError(w, r, http.StatusInternalServerError, CodeStorage, "storage operation failed", details)

	default:
		logger.FromContext(r.Context()).Error("unhandled error", logger.Err(err))
		writeError(w, r, http.StatusInternalServerError, CodeInternal, "an unexpected error occurred", nil)
	}
}

// messageOf returns the domain message of err, or fallback.
func messageOf(err error, fallback string) string {
	var de *shared.DomainError
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return fallback
}
