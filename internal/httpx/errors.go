package httpx

import (
	"net/http"

	"github.com/sundayezeilo/bookmarker/internal/errx"
)

// ServerErrorMessage is the only text clients see for unexpected failures.
const ServerErrorMessage = "There's an error with the server, please try again later"

// ErrorKindToStatus maps errx.Kind to HTTP status codes.
func ErrorKindToStatus(kind errx.Kind) int {
	switch kind {
	case errx.NotFound:
		return http.StatusNotFound
	case errx.Conflict:
		return http.StatusConflict
	case errx.Invalid:
		return http.StatusBadRequest
	case errx.Unauthorized:
		return http.StatusUnauthorized
	case errx.Forbidden:
		return http.StatusForbidden
	case errx.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorKindToCode maps errx.Kind to error codes for JSON responses.
func ErrorKindToCode(kind errx.Kind) string {
	switch kind {
	case errx.NotFound:
		return "not_found"
	case errx.Conflict:
		return "conflict"
	case errx.Invalid:
		return "invalid_input"
	case errx.Unauthorized:
		return "unauthorized"
	case errx.Forbidden:
		return "forbidden"
	case errx.Unavailable:
		return "unavailable"
	default:
		return "internal_error"
	}
}

// PublicMessage returns the text that may be sent to a client for err.
// Client-safe messages attached with errx.M are passed through for 4xx kinds;
// everything else collapses to a generic message so internals never leak.
func PublicMessage(err error) string {
	kind := errx.KindOf(err)
	if ErrorKindToStatus(kind) >= http.StatusInternalServerError {
		return ServerErrorMessage
	}
	if msg := errx.MessageOf(err); msg != "" {
		return msg
	}

	switch kind {
	case errx.NotFound:
		return "resource not found"
	case errx.Conflict:
		return "resource already exists"
	case errx.Unauthorized:
		return "authentication required"
	case errx.Forbidden:
		return "access denied"
	default:
		return "invalid request"
	}
}
