package vectorsync

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/kailas-cloud/vecrec/internal/domain"
	"github.com/kailas-cloud/vecrec/internal/domain/product"
	"github.com/kailas-cloud/vecrec/internal/domain/vector"
)

// mockCatalog implements Catalog over a map.
type mockCatalog struct {
	mu       sync.Mutex
	items    map[int64]product.Product
	updates  map[int64]product.Patch
	findErr  error
	updateFn func(id int64, patch product.Patch) error
}

func newCatalog(ps ...product.Product) *mockCatalog {
	c := &mockCatalog{items: map[int64]product.Product{}, updates: map[int64]product.Patch{}}
	for _, p := range ps {
		c.items[p.ID()] = p
	}
	return c
}

func (c *mockCatalog) FindByID(_ context.Context, id int64) (product.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.items[id]
	if !ok {
		return product.Product{}, domain.ErrProductNotFound
	}
	return p, nil
}

func (c *mockCatalog) FindByIDs(_ context.Context, ids []int64) ([]product.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []product.Product
	for _, id := range ids {
		if p, ok := c.items[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (c *mockCatalog) FindMany(_ context.Context, q product.Query) ([]product.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.findErr != nil {
		return nil, c.findErr
	}
	ids := make([]int64, 0, len(c.items))
	for id := range c.items {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	if q.Offset >= len(ids) {
		return nil, nil
	}
	ids = ids[q.Offset:]
	if len(ids) > q.Limit {
		ids = ids[:q.Limit]
	}
	out := make([]product.Product, len(ids))
	for i, id := range ids {
		out[i] = c.items[id]
	}
	return out, nil
}

func (c *mockCatalog) Update(_ context.Context, id int64, patch product.Patch) error {
	if c.updateFn != nil {
		if err := c.updateFn(id, patch); err != nil {
			return err
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.items[id]
	if !ok {
		return domain.ErrProductNotFound
	}
	c.items[id] = p.Apply(patch)
	c.updates[id] = patch
	return nil
}

// mockIndex records upserts and deletes.
type mockIndex struct {
	mu        sync.Mutex
	upserted  map[string]vector.Item
	deleted   []string
	upsertErr error
}

func newIndex() *mockIndex {
	return &mockIndex{upserted: map[string]vector.Item{}}
}

func (m *mockIndex) Upsert(_ context.Context, items []vector.Item) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range items {
		m.upserted[it.ExternalID] = it
	}
	return nil
}

func (m *mockIndex) Delete(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, ids...)
	return nil
}

// mockEmbedder returns a fixed-size vector per text; batch-capable.
type mockEmbedder struct {
	mu         sync.Mutex
	dims       int
	err        error
	failOn     string
	texts      []string
	batchCalls int
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, text)
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: make([]float32, m.dims), TotalTokens: 1}, nil
}

func (m *mockEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchCalls++
	if m.err != nil {
		return domain.BatchEmbeddingResult{}, m.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if m.failOn != "" && t == m.failOn {
			return domain.BatchEmbeddingResult{}, domain.ErrEmbeddingProviderError
		}
		out[i] = make([]float32, m.dims)
	}
	return domain.BatchEmbeddingResult{Embeddings: out, TotalTokens: len(texts)}, nil
}

func prod(id int64, name string) product.Product {
	return product.Reconstruct(product.Fields{
		ID:        id,
		Name:      name,
		Category:  "Shoes",
		Brand:     "Acme",
		Price:     10,
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
}
