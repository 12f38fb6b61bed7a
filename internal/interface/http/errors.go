package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/studypets/studypets-core/internal/domain/shared"
	"github.com/studypets/studypets-core/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrForbidden):
		return http.StatusForbidden
	case shared.IsNotFound(err):
		return http.StatusNotFound
	case shared.IsConflict(err):
		return http.StatusConflict
	case shared.IsInsufficient(err):
		return http.StatusUnprocessableEntity
	case shared.IsInvalidInput(err):
		return http.StatusBadRequest
	case shared.IsRetryable(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// toAPIError builds the client-facing body. Internal failures never expose
// their message.
func toAPIError(err error, status int) *APIError {
	if status == http.StatusInternalServerError || status == http.StatusGatewayTimeout {
		return errInternalBody
	}
	if de, ok := shared.AsDomainError(err); ok && de.Code != "" && de.Code != "internal" {
		return &APIError{Code: de.Code, Message: de.Message, Details: de.Details}
	}
	return &APIError{Code: shared.KindOf(err), Message: http.StatusText(status)}
}

// writeError logs and writes err. Server faults log at error, caller
// mistakes at warn, expected business outcomes at debug.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	log := logger.FromContext(r.Context())

	switch {
	case status >= 500 && status != http.StatusServiceUnavailable:
		log.Error("request failed", "path", r.URL.Path, "error", err)
	case status == http.StatusBadRequest:
		log.Warn("rejected invalid request", "path", r.URL.Path, "error", err)
	default:
		log.Debug("request refused", "path", r.URL.Path, "status", status, "error", err)
	}

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "5")
	}
	writeJSONError(w, r, status, toAPIError(err, status))
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE ENVELOPE
// ══════════════════════════════════════════════════════════════════════════════

// JSONResponse wraps every body the API writes.
type JSONResponse struct {
	Success   bool          `json:"success"`
	Data      any           `json:"data,omitempty"`
	Error     *APIError     `json:"error,omitempty"`
	Meta      *ResponseMeta `json:"meta,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// APIError is the client-facing error. Code is stable; Message is for humans.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type ResponseMeta struct {
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
}

var errInternalBody = &APIError{Code: "internal", Message: "an unexpected error occurred"}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeEnvelope(w, r, status, JSONResponse{Success: status >= 200 && status < 300, Data: data})
}

func writeJSONError(w http.ResponseWriter, r *http.Request, status int, apiErr *APIError) {
	writeEnvelope(w, r, status, JSONResponse{Error: apiErr})
}

func writeEnvelope(w http.ResponseWriter, r *http.Request, status int, body JSONResponse) {
	body.Meta = &ResponseMeta{Timestamp: time.Now().UTC(), Version: "v1"}
	body.RequestID = requestID(r.Context())

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
