package domain

import "errors"

var (
	// ErrProductNotFound signals a missing catalog entry.
	ErrProductNotFound = errors.New("product not found")
	// ErrInvalidInput signals a malformed caller request (bad id, empty list, bad limit).
	ErrInvalidInput = errors.New("invalid input")
	// ErrVectorIndexUnavailable signals that the vector index is disabled or its breaker is open.
	ErrVectorIndexUnavailable = errors.New("vector index unavailable")
	// ErrVectorNotFound signals that an id has no stored vector.
	ErrVectorNotFound = errors.New("vector not found")
	// ErrVectorDimensionMismatch signals vectors of different dimensionality.
	ErrVectorDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrEmbeddingQuotaExceeded signals that the provider rejected the request for quota reasons.
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
)
