// Package vectorindex stores product embeddings in a Redis FT index and answers
// nearest-neighbor queries over them.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/vecrec/internal/db"
	"github.com/kailas-cloud/vecrec/internal/domain"
	"github.com/kailas-cloud/vecrec/internal/domain/vector"
)

// Default HNSW parameters.
const (
	DefaultM              = 16
	DefaultEFConstruction = 200
)

// store is the consumer interface for the vector index (ISP).
type store interface {
	Ping(ctx context.Context) error
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, keys ...string) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Config describes one vector namespace.
type Config struct {
	Namespace      string
	Dimensions     int
	M              int
	EFConstruction int
}

// Repo is a vector index namespace over Redis hashes.
type Repo struct {
	store store
	cfg   Config
}

// New creates a vector index repository. Zero HNSW parameters take defaults.
func New(s store, cfg Config) (*Repo, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("vector dimensions must be positive, got %d: %w", cfg.Dimensions, domain.ErrInvalidInput)
	}
	if strings.TrimSpace(cfg.Namespace) == "" {
		cfg.Namespace = defaultNamespace
	}
	if cfg.M <= 0 {
		cfg.M = DefaultM
	}
	if cfg.EFConstruction <= 0 {
		cfg.EFConstruction = DefaultEFConstruction
	}
	return &Repo{store: s, cfg: cfg}, nil
}

// Dimensions returns the configured vector size.
func (r *Repo) Dimensions() int { return r.cfg.Dimensions }

// Ping checks connectivity.
func (r *Repo) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}

// EnsureIndex creates the namespace index if it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	def, err := r.buildIndex()
	if err != nil {
		return fmt.Errorf("build vector index: %w", err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create vector index %s: %w", def.Name, err)
	}
	return nil
}

// QueryByID returns the k nearest neighbors of a stored vector.
// The stored item itself is usually among them; callers filter it out.
func (r *Repo) QueryByID(ctx context.Context, externalID string, k int) ([]vector.Match, error) {
	vecs, err := r.FetchVectors(ctx, []string{externalID})
	if err != nil {
		return nil, err
	}
	v, ok := vecs[externalID]
	if !ok {
		return nil, fmt.Errorf("vector %q: %w", externalID, domain.ErrVectorNotFound)
	}
	return r.QueryByVector(ctx, v, k)
}

// QueryByVector returns the k nearest neighbors of v.
func (r *Repo) QueryByVector(ctx context.Context, v []float32, k int) ([]vector.Match, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d: %w", k, domain.ErrInvalidInput)
	}
	if len(v) != r.cfg.Dimensions {
		return nil, fmt.Errorf("query has %d dims, index has %d: %w",
			len(v), r.cfg.Dimensions, domain.ErrVectorDimensionMismatch)
	}

	res, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.indexName(),
		Vector:       v,
		K:            k,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("knn search: %w", err)
	}

	out := make([]vector.Match, 0, len(res.Entries))
	for _, e := range res.Entries {
		out = append(out, r.toMatch(e))
	}
	return out, nil
}

// FetchVectors loads stored vectors by external id. Missing ids are absent from the result.
func (r *Repo) FetchVectors(ctx context.Context, externalIDs []string) (map[string][]float32, error) {
	if len(externalIDs) == 0 {
		return map[string][]float32{}, nil
	}
	keys := make([]string, len(externalIDs))
	for i, id := range externalIDs {
		keys[i] = r.itemKey(id)
	}

	hashes, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("fetch %d vectors: %w", len(keys), err)
	}

	out := make(map[string][]float32, len(hashes))
	for i, m := range hashes {
		blob, ok := m[fieldVector]
		if !ok {
			continue
		}
		v, err := vector.Decode([]byte(blob))
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", keys[i], err)
		}
		out[externalIDs[i]] = v
	}
	return out, nil
}

// Upsert writes vectors with their metadata. All items must match the index dimension.
func (r *Repo) Upsert(ctx context.Context, items []vector.Item) error {
	if len(items) == 0 {
		return nil
	}
	batch := make([]db.HashSetItem, 0, len(items))
	for _, it := range items {
		if strings.TrimSpace(it.ExternalID) == "" {
			return fmt.Errorf("vector external id is required: %w", domain.ErrInvalidInput)
		}
		if len(it.Values) != r.cfg.Dimensions {
			return fmt.Errorf("vector %q has %d dims, index has %d: %w",
				it.ExternalID, len(it.Values), r.cfg.Dimensions, domain.ErrVectorDimensionMismatch)
		}
		batch = append(batch, db.HashSetItem{Key: r.itemKey(it.ExternalID), Fields: toHash(it)})
	}

	if len(batch) == 1 {
		if err := r.store.HSet(ctx, batch[0].Key, batch[0].Fields); err != nil {
			return fmt.Errorf("hset %s: %w", batch[0].Key, err)
		}
		return nil
	}
	if err := r.store.HSetMulti(ctx, batch); err != nil {
		return fmt.Errorf("upsert %d vectors: %w", len(batch), err)
	}
	return nil
}

// Delete removes vectors by external id. Unknown ids are ignored.
func (r *Repo) Delete(ctx context.Context, externalIDs []string) error {
	if len(externalIDs) == 0 {
		return nil
	}
	keys := make([]string, len(externalIDs))
	for i, id := range externalIDs {
		keys[i] = r.itemKey(id)
	}
	if err := r.store.Del(ctx, keys...); err != nil {
		return fmt.Errorf("delete %d vectors: %w", len(keys), err)
	}
	return nil
}
