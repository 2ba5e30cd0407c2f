package recommend

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/vecrec/internal/domain"
	"github.com/kailas-cloud/vecrec/internal/domain/product"
	"github.com/kailas-cloud/vecrec/internal/domain/vector"
)

// memCatalog is an in-memory Catalog mirroring the Redis query semantics.
type memCatalog struct {
	mu       sync.Mutex
	items    map[int64]product.Product
	queries  []product.Query
	findErr  error // returned by FindMany
	idsErr   error // returned by FindByIDs
	findByID func(ctx context.Context, id int64) (product.Product, error)
}

func newCatalog(ps ...product.Product) *memCatalog {
	c := &memCatalog{items: make(map[int64]product.Product, len(ps))}
	for _, p := range ps {
		c.items[p.ID()] = p
	}
	return c
}

func (c *memCatalog) FindByID(ctx context.Context, id int64) (product.Product, error) {
	if c.findByID != nil {
		return c.findByID(ctx, id)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.items[id]
	if !ok {
		return product.Product{}, domain.ErrProductNotFound
	}
	return p, nil
}

func (c *memCatalog) FindByIDs(_ context.Context, ids []int64) ([]product.Product, error) {
	if c.idsErr != nil {
		return nil, c.idsErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []product.Product
	seen := map[int64]bool{}
	for _, id := range ids {
		if p, ok := c.items[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, p)
		}
	}
	return out, nil
}

func (c *memCatalog) FindMany(_ context.Context, q product.Query) ([]product.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queries = append(c.queries, q)
	if c.findErr != nil {
		return nil, c.findErr
	}

	var out []product.Product
	for _, p := range c.items {
		if slices.Contains(q.ExcludeIDs, p.ID()) {
			continue
		}
		if len(q.Categories) > 0 && !slices.ContainsFunc(q.Categories, func(cat string) bool {
			return strings.EqualFold(cat, p.Category())
		}) {
			continue
		}
		out = append(out, p)
	}

	slices.SortFunc(out, func(a, b product.Product) int {
		if q.Order == product.OrderPopularity {
			if d := cmp.Compare(b.Rating(), a.Rating()); d != 0 {
				return d
			}
			if d := cmp.Compare(b.NumReviews(), a.NumReviews()); d != 0 {
				return d
			}
			if d := b.CreatedAt().Compare(a.CreatedAt()); d != 0 {
				return d
			}
		}
		return cmp.Compare(a.ID(), b.ID())
	})

	limit := q.Limit
	if limit <= 0 {
		limit = 150
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// fakeIndex implements VectorIndex with function fields.
type fakeIndex struct {
	queryByIDFn     func(ctx context.Context, externalID string, k int) ([]vector.Match, error)
	queryByVectorFn func(ctx context.Context, v []float32, k int) ([]vector.Match, error)
	fetchFn         func(ctx context.Context, ids []string) (map[string][]float32, error)
}

func (f *fakeIndex) QueryByID(ctx context.Context, externalID string, k int) ([]vector.Match, error) {
	if f.queryByIDFn != nil {
		return f.queryByIDFn(ctx, externalID, k)
	}
	return nil, domain.ErrVectorNotFound
}

func (f *fakeIndex) QueryByVector(ctx context.Context, v []float32, k int) ([]vector.Match, error) {
	if f.queryByVectorFn != nil {
		return f.queryByVectorFn(ctx, v, k)
	}
	return nil, nil
}

func (f *fakeIndex) FetchVectors(ctx context.Context, ids []string) (map[string][]float32, error) {
	if f.fetchFn != nil {
		return f.fetchFn(ctx, ids)
	}
	return map[string][]float32{}, nil
}

// fakeSyncer implements Syncer.
type fakeSyncer struct {
	mu     sync.Mutex
	ok     bool
	synced []int64
	onSync func(p product.Product)
}

func (s *fakeSyncer) EnsureSynced(_ context.Context, p product.Product) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.synced = append(s.synced, p.ID())
	if s.onSync != nil {
		s.onSync(p)
	}
	return s.ok
}

var created = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func prod(id int64, category, brand string, price float64, name, description string) product.Product {
	return product.Reconstruct(product.Fields{
		ID:          id,
		Name:        name,
		Description: description,
		Category:    category,
		Brand:       brand,
		Price:       price,
		CreatedAt:   created,
	})
}

// widgets is the three-product catalog used across scenarios.
func widgets() (p1, p2, p3 product.Product) {
	p1 = prod(1, "A", "X", 10, "Widget Pro", "best widget")
	p2 = prod(2, "A", "X", 12, "Widget Max", "great widget")
	p3 = prod(3, "B", "Y", 500, "Gadget", "unrelated device")
	return p1, p2, p3
}

func match(id int64) vector.Match {
	return vector.Match{ExternalID: vector.ExternalIDFor(id)}
}

func ids(ps []product.Product) []int64 {
	return product.IDs(ps)
}

func newService(t *testing.T, c Catalog, idx VectorIndex, s Syncer) *Service {
	t.Helper()
	svc, err := New(c, idx, s, Config{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return svc
}
