package web

// errors.go maps import and webhook errors to HTTP responses.
//
// Every error is logged with its technical detail and request id, and the
// client receives the mapped user message and code from etl.MapError.

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/charterops/internal/etl"
	"github.com/JonMunkholm/charterops/internal/logging"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Action    string `json:"action,omitempty"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
	// Summary carries partial progress when an import stopped mid-batch.
	Summary *etl.ImportSummary `json:"summary,omitempty"`
}

// statusFor picks the HTTP status for err.
func statusFor(err error) int {
	switch {
	case errors.Is(err, etl.ErrEmptyInput),
		errors.Is(err, etl.ErrUnknownSource),
		errors.Is(err, etl.ErrInvalidPayload),
		errors.Is(err, http.ErrMissingFile):
		return http.StatusBadRequest
	case errors.Is(err, etl.ErrInvalidSignature):
		return http.StatusUnauthorized
	case errors.Is(err, etl.ErrInputTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, etl.ErrImportBusy):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusInternalServerError
}

// rejectRequest adapts respondError for middleware rejections.
func rejectRequest(w http.ResponseWriter, r *http.Request, err error) {
	respondError(w, r, err, nil)
}

// respondError logs err and writes the mapped user message.
func respondError(w http.ResponseWriter, r *http.Request, err error, summary *etl.ImportSummary) {
	status := statusFor(err)
	userMsg := etl.MapError(err)
	requestID := middleware.GetReqID(r.Context())

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request rejected", attrs...)
	}

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "30")
	}
	writeJSON(w, status, ErrorResponse{
		Error:     userMsg.Message,
		Message:   userMsg.Message,
		Action:    userMsg.Action,
		Code:      userMsg.Code,
		RequestID: requestID,
		Summary:   summary,
	})
}
