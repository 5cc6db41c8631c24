package memory

import "errors"

// Error taxonomy for the engine. Transient provider and store failures
// are retried with backoff before being surfaced; NotFound and
// InvalidInput are terminal and never retried.
var (
	// ErrEmbeddingUnavailable means the text-embedding provider could
	// not be reached within its deadline. Retryable.
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")

	// ErrIndexUnavailable means the vector index could not be reached.
	// Retryable.
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// ErrPersistence means a relational store write failed after
	// retries. The operation fails as a whole; no partial write is
	// considered durable.
	ErrPersistence = errors.New("relational store write failed")

	// ErrNotFound means the id or owner is unknown. Terminal.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput means malformed vectors or out-of-range scalars.
	// Terminal, caller error.
	ErrInvalidInput = errors.New("invalid input")
)
