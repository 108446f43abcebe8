package chat

import (
	"errors"
	"net/http"

	"github.com/zxlitianshu/Kekari-agent/internal/sessions"
)

var (
	ErrInvalidRequest = errors.New("invalid chat request")
	ErrNoUserMessage  = errors.New("no user message in request")
)

// MapHTTPStatus maps a chat error to an HTTP status code.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrNoUserMessage):
		return http.StatusBadRequest
	case errors.Is(err, sessions.ErrInvalidID):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
