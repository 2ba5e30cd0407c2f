package recommend

import (
	"context"

	"github.com/kailas-cloud/vecrec/internal/domain/product"
	"github.com/kailas-cloud/vecrec/internal/domain/vector"
)

// Catalog is the read side of the product store used by every tier.
type Catalog interface {
	FindByID(ctx context.Context, id int64) (product.Product, error)
	FindByIDs(ctx context.Context, ids []int64) ([]product.Product, error)
	FindMany(ctx context.Context, q product.Query) ([]product.Product, error)
}

// VectorIndex is the nearest-neighbor index. Optional: a nil index disables the vector tier.
type VectorIndex interface {
	QueryByID(ctx context.Context, externalID string, k int) ([]vector.Match, error)
	QueryByVector(ctx context.Context, v []float32, k int) ([]vector.Match, error)
	FetchVectors(ctx context.Context, externalIDs []string) (map[string][]float32, error)
}

// Syncer repairs a missing vector index entry. Reports whether the product is now indexed.
type Syncer interface {
	EnsureSynced(ctx context.Context, p product.Product) bool
}

// Strategy is one tier of the ranking cascade.
type Strategy interface {
	Name() string
	// Rank returns at most req.Limit products, or none when the tier cannot help.
	// Only catalog failures are returned as errors.
	Rank(ctx context.Context, req Request) ([]product.Product, error)
}
