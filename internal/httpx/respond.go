package httpx

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sundayezeilo/bookmarker/internal/errx"
)

// ErrorResponse represents a JSON error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are already sent; nothing left to do but log.
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, code, message string, details any) {
	WriteJSON(w, status, ErrorResponse{
		Error:   code,
		Message: message,
		Details: details,
	})
}

// WriteErr renders err using its errx kind for status and code.
func WriteErr(w http.ResponseWriter, err error) {
	kind := errx.KindOf(err)
	WriteError(w, ErrorKindToStatus(kind), ErrorKindToCode(kind), PublicMessage(err), nil)
}

// NoContent writes an empty 204 response.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// RequestLogger derives a logger tagged with the request id, method and path.
func RequestLogger(base *slog.Logger, r *http.Request) *slog.Logger {
	return base.With(
		"request_id", GetRequestID(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
	)
}

// Fail logs err under msg and writes the matching error response. Kinds that
// render as 5xx log at Error; the rest are client mistakes and log at Warn.
func Fail(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, msg string, err error) {
	kind := errx.KindOf(err)
	attrs := []any{
		"error", err.Error(),
		"error_kind", kind,
		"operation", errx.OpOf(err),
	}

	if ErrorKindToStatus(kind) >= http.StatusInternalServerError {
		logger.ErrorContext(ctx, msg, attrs...)
	} else {
		logger.WarnContext(ctx, msg, attrs...)
	}
	WriteErr(w, err)
}
