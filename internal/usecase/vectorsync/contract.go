package vectorsync

import (
	"context"

	"github.com/kailas-cloud/vecrec/internal/domain/product"
	"github.com/kailas-cloud/vecrec/internal/domain/vector"
)

// Catalog is the slice of the product store the syncer needs.
type Catalog interface {
	FindByID(ctx context.Context, id int64) (product.Product, error)
	FindByIDs(ctx context.Context, ids []int64) ([]product.Product, error)
	FindMany(ctx context.Context, q product.Query) ([]product.Product, error)
	Update(ctx context.Context, id int64, patch product.Patch) error
}

// Index is the write side of the vector index.
type Index interface {
	Upsert(ctx context.Context, items []vector.Item) error
	Delete(ctx context.Context, externalIDs []string) error
}
