package recommend

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/vecrec/internal/domain/product"
)

// Pool defaults.
const (
	DefaultPoolLimit     = 150
	DefaultThinThreshold = 5
)

// PoolConfig bounds the candidate pool.
type PoolConfig struct {
	Limit         int `yaml:"limit"`
	ThinThreshold int `yaml:"thin_threshold"`
}

// PoolBuilder fetches the candidate pool for local scoring.
type PoolBuilder struct {
	catalog Catalog
	limit   int
	thin    int
}

// NewPoolBuilder creates a pool builder. Zero config values take defaults.
func NewPoolBuilder(c Catalog, cfg PoolConfig) *PoolBuilder {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultPoolLimit
	}
	if cfg.ThinThreshold <= 0 {
		cfg.ThinThreshold = DefaultThinThreshold
	}
	return &PoolBuilder{catalog: c, limit: cfg.Limit, thin: cfg.ThinThreshold}
}

// Build returns up to the pool limit of products outside exclude, restricted to
// categories when given. A thin filtered pool is topped up from the whole catalog.
func (b *PoolBuilder) Build(ctx context.Context, exclude []int64, categories []string) ([]product.Product, error) {
	excluded := idSet(exclude)

	primary, err := b.catalog.FindMany(ctx, product.Query{
		ExcludeIDs: exclude,
		Categories: categories,
		Limit:      b.limit,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch pool: %w", err)
	}
	pool := appendUnique(make([]product.Product, 0, len(primary)), primary, excluded, b.limit)

	if len(categories) == 0 || len(pool) >= b.thin {
		return pool, nil
	}

	widened := make([]int64, 0, len(exclude)+len(pool))
	widened = append(widened, exclude...)
	widened = append(widened, product.IDs(pool)...)

	extra, err := b.catalog.FindMany(ctx, product.Query{
		ExcludeIDs: widened,
		Limit:      b.limit,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch supplementary pool: %w", err)
	}
	return appendUnique(pool, extra, excluded, b.limit), nil
}

// Backup returns the most popular products outside exclude. When exclude covers
// the whole catalog the exclusion is dropped.
func (b *PoolBuilder) Backup(ctx context.Context, exclude []int64, limit int) ([]product.Product, error) {
	ps, err := b.catalog.FindMany(ctx, product.Query{
		ExcludeIDs: exclude,
		Order:      product.OrderPopularity,
		Limit:      limit,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch backup products: %w", err)
	}
	if out := appendUnique(nil, ps, idSet(exclude), limit); len(out) > 0 {
		return out, nil
	}

	ps, err = b.catalog.FindMany(ctx, product.Query{
		Order: product.OrderPopularity,
		Limit: limit,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch backup products without exclusion: %w", err)
	}
	return appendUnique(nil, ps, nil, limit), nil
}

// appendUnique appends products from src to dst, skipping excluded ids and
// ids already in dst, until dst holds limit items.
func appendUnique(dst, src []product.Product, excluded map[int64]struct{}, limit int) []product.Product {
	seen := idSet(product.IDs(dst))
	for _, p := range src {
		if len(dst) >= limit {
			break
		}
		if _, ok := excluded[p.ID()]; ok {
			continue
		}
		if _, ok := seen[p.ID()]; ok {
			continue
		}
		seen[p.ID()] = struct{}{}
		dst = append(dst, p)
	}
	return dst
}

func idSet(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
