package httpx

import (
	"errors"
	"net/http"

	"github.com/sundayezeilo/shortlink/internal/errx"
)

// ErrorKindToStatus maps errx.Kind to HTTP status codes.
// Handlers can use this as a helper when mapping their own errors.
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
	case errx.Internal, errx.Exhausted:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// ErrorKindToCode maps errx.Kind to error codes for JSON responses.
// Handlers can use this as a helper when mapping their own errors.
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
	case errx.Internal:
		return "internal_error"
	case errx.Exhausted:
		return "generation_exhausted"
	default:
		return "internal_error"
	}
}

// WriteKindError writes err as a JSON error using its errx.Kind for the status
// and code. Server faults never echo err; they use fallback as the message.
func WriteKindError(w http.ResponseWriter, err error, fallback string) {
	kind := errx.KindOf(err)
	status := ErrorKindToStatus(kind)

	msg := fallback
	if status < http.StatusInternalServerError && err != nil {
		msg = rootMessage(err)
	}
	WriteError(w, status, ErrorKindToCode(kind), msg, nil)
}

// rootMessage returns the message of the innermost wrapped error, which for
// errx chains is the human-readable cause without operation prefixes.
func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}
