package catalog

import (
	"errors"
	"net/http"
)

// Domain errors for ready entity operations.
var (
	ErrNotFound   = errors.New("ready entity not found")
	ErrConflict   = errors.New("ready entity was modified concurrently")
	ErrInvalidSKU = errors.New("invalid sku")
)

// MapHTTPStatus maps catalog domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrConflict) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrInvalidSKU) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
