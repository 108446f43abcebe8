// Package handlers provides shared JSON request and response helpers for
// HTTP handlers.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// ErrEmptyBody is returned by DecodeJSON when the request carries no body.
var ErrEmptyBody = errors.New("request body is empty")

// RespondJSON writes data as a JSON body with the given status code.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// RespondError logs err and writes it as {"error": "..."} with the given status.
// Server errors are logged at error level and answered with the generic status
// text; client errors are logged at warn and echo the error.
func RespondError(w http.ResponseWriter, logger *slog.Logger, status int, err error) {
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		logger.Error("handler error", "error", err, "status", status)
		msg = http.StatusText(status)
	} else {
		logger.Warn("handler error", "error", err, "status", status)
	}
	RespondJSON(w, status, map[string]string{"error": msg})
}

// DecodeJSON decodes the request body into v. On failure it returns the
// status the caller should answer with: 413 when the body exceeded the
// limit installed by middleware.MaxBytes, otherwise 400.
func DecodeJSON(r *http.Request, v any) (int, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return http.StatusBadRequest, ErrEmptyBody
	}

	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return http.StatusOK, nil
	}

	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
	case errors.Is(err, io.EOF):
		return http.StatusBadRequest, ErrEmptyBody
	default:
		return http.StatusBadRequest, fmt.Errorf("invalid json: %w", err)
	}
}
