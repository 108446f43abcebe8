package classify

import "errors"

var (
	// ErrInvalidDecision reports a model response that could not be parsed
	// or failed validation.
	ErrInvalidDecision = errors.New("invalid classifier decision")
	// ErrEmptyResponse reports a completion without content.
	ErrEmptyResponse = errors.New("empty classifier response")
)
