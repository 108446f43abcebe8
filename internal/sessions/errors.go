package sessions

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound  = errors.New("session not found")
	ErrInvalidID = errors.New("invalid session id")
)

// MapHTTPStatus maps a session error to an HTTP status code.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrInvalidID) || errors.Is(err, ErrInvariant) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
