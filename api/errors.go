package api

import (
	"errors"
	"net/http"

	"pm-dashboard/domain"
	"pm-dashboard/storage"
)

// statusFor maps domain and storage errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrOutOfRange):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidStatus), errors.Is(err, domain.ErrInvalidDate):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// errorStage names the failing step for request metrics.
func errorStage(err error) string {
	switch statusFor(err) {
	case http.StatusNotFound:
		return "position"
	case http.StatusBadRequest:
		return "validation"
	case http.StatusConflict:
		return "conflict"
	default:
		return "store"
	}
}
