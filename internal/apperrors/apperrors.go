package apperrors

import (
	"errors"
	"net/http"
)

// Sentinel error kinds. Handlers wrap these with fmt.Errorf("%w: ...")
// detail; Status maps whatever comes back to an HTTP code.
var (
	ErrUnauthenticated = errors.New("invalid or missing access token")
	ErrForbidden       = errors.New("operation not permitted for this user type")
	ErrNotFound        = errors.New("not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrRateLimited     = errors.New("daily request limit reached")
	ErrConflict        = errors.New("conflict")
)

func Status(err error) int {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrConflict):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
