package reindex

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrInvalidConfig is returned for batch, retry or report settings below 1.
	ErrInvalidConfig = errors.New("invalid reindex configuration")
)
