package vecrec

import (
	"errors"

	"github.com/kailas-cloud/vecrec/internal/domain"
)

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrProductNotFound         = domain.ErrProductNotFound
	ErrInvalidInput            = domain.ErrInvalidInput
	ErrVectorIndexUnavailable  = domain.ErrVectorIndexUnavailable
	ErrVectorDimensionMismatch = domain.ErrVectorDimensionMismatch
	ErrEmbeddingQuotaExceeded  = domain.ErrEmbeddingQuotaExceeded
	ErrEmbeddingProviderError  = domain.ErrEmbeddingProviderError
)

// ErrIndexDisabled is returned by Sync and Unsync when no embedder is configured.
var ErrIndexDisabled = errors.New("vecrec: vector index disabled (use WithEmbedder)")
