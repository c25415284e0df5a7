package web

// errors.go provides unified error response handling for the web layer.
//
// It ensures all errors are:
//   - Logged with full technical details for debugging (server-side)
//   - Returned to clients as user-friendly messages with action suggestions
//   - Formatted appropriately based on request type (HTMX, JSON, or HTML)
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls respondError(w, r, err)
//  3. The status code is derived from the error class via statusFor
//  4. Error is mapped via core.MapError to get user-friendly message
//  5. Technical error + context is logged with request ID for correlation
//  6. User message is rendered in appropriate format for the client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/JonMunkholm/shopsheet/internal/core"
	"github.com/JonMunkholm/shopsheet/internal/logging"
	"github.com/JonMunkholm/shopsheet/internal/textgen"
	"github.com/JonMunkholm/shopsheet/internal/web/templates"
)

var (
	errBadRequest  = errors.New("malformed request")
	errRateLimited = errors.New("rate limit exceeded")
)

// badRequest reports a body or parameter that could not be decoded.
func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Action  string            `json:"action,omitempty"`
	Code    string            `json:"code"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// statusFor maps an error class to an HTTP status.
func statusFor(err error) int {
	var hm *core.HeaderMismatchError
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrNotLoaded), errors.Is(err, core.ErrStaleRow):
		return http.StatusConflict
	case errors.Is(err, core.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, textgen.ErrTooManyRequests), errors.Is(err, textgen.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, core.ErrAuth), errors.Is(err, core.ErrConnectivity):
		return http.StatusBadGateway
	case errors.As(err, &hm):
		return http.StatusUnprocessableEntity
	case strings.Contains(err.Error(), "invalid spreadsheet reference"):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrLoad):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// respondError handles error responses with user-friendly messages.
// It logs the technical error server-side and returns an appropriate response
// based on the request type (HTMX, JSON, or HTML).
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	statusCode := statusFor(err)
	userMsg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	}
	if statusCode >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}

	if isHTMX(r) {
		s.renderErrorPartial(w, r, userMsg)
	} else if wantsJSON(r) {
		respondErrorJSON(w, userMsg, fieldErrors(err), statusCode)
	} else {
		respondErrorHTML(w, userMsg, statusCode)
	}
}

// fieldErrors extracts per-field violations from a validation error.
func fieldErrors(err error) map[string]string {
	var ve *core.ValidationError
	if errors.As(err, &ve) && len(ve.Violations) > 0 {
		return ve.Violations
	}
	return nil
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, fields map[string]string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
		Fields:  fields,
	})
}

// respondErrorHTML writes a plain HTML error response.
func respondErrorHTML(w http.ResponseWriter, msg core.UserMessage, statusCode int) {
	http.Error(w, msg.Message+" ("+msg.Code+")", statusCode)
}

// renderErrorPartial renders an HTMX-compatible error fragment into the
// alerts area. HTMX does not swap non-2xx responses by default, so the
// fragment is sent with 200 and retargeted.
func (s *Server) renderErrorPartial(w http.ResponseWriter, r *http.Request, msg core.UserMessage) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("HX-Retarget", "#alerts")
	w.Header().Set("HX-Reswap", "innerHTML")
	w.WriteHeader(http.StatusOK)

	templates.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w)
}

// isHTMX checks if the request is an HTMX request.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsJSON checks if the client prefers JSON response.
func wantsJSON(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	contentType := r.Header.Get("Content-Type")

	// Check Accept header
	if strings.Contains(accept, "application/json") {
		return true
	}

	// Check if request is sending JSON
	if strings.Contains(contentType, "application/json") {
		return true
	}

	// API routes default to JSON
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}

	return false
}
