package ai

import "errors"

var (
	// ErrBackendUnavailable is returned while the circuit breaker rejects calls.
	ErrBackendUnavailable = errors.New("generation backend unavailable")
	// ErrEmptyEmbedding is returned when a server answers without the expected vectors.
	ErrEmptyEmbedding = errors.New("embedding server returned no vectors")
)
