package prompts

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound      = errors.New("prompt not found")
	ErrDuplicate     = errors.New("prompt name already exists")
	ErrInvalidID     = errors.New("prompt id must be a uuid")
	ErrInvalidPrompt = errors.New("invalid prompt")
	ErrInvalidStage  = errors.New("stage must be route, confirmation, entity-selection, or compose")
)

// MapHTTPStatus maps prompt domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidStage), errors.Is(err, ErrInvalidID), errors.Is(err, ErrInvalidPrompt):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
