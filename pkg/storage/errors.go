package storage

import "errors"

var (
	// ErrNotFound indicates the requested blob does not exist.
	ErrNotFound = errors.New("blob not found")
	// ErrInvalidKey indicates an empty, absolute, or path-escaping key.
	ErrInvalidKey = errors.New("invalid storage key")
	// ErrDisabled indicates blob storage is not configured.
	ErrDisabled = errors.New("storage disabled")
)
