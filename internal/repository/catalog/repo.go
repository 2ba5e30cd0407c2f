package catalog

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/kailas-cloud/vecrec/internal/db"
	"github.com/kailas-cloud/vecrec/internal/domain"
	"github.com/kailas-cloud/vecrec/internal/domain/product"
	"github.com/kailas-cloud/vecrec/internal/domain/search/filter"
)

const (
	// DefaultLimit applies when a query does not set one.
	DefaultLimit = 150
	// popularityWindow is the extra depth fetched under SORTBY rating so that
	// ties on rating can be re-ordered by review count and recency.
	popularityWindow = 100
)

// store is the consumer interface for the catalog (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	HDel(ctx context.Context, key string, fields ...string) error
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	SearchList(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index string, filters filter.Expression) (int, error)
}

// Repo is the catalog store over Redis hashes and an FT index.
type Repo struct {
	store store
}

// New creates a catalog repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// EnsureIndex creates the catalog FT index if it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	err := r.store.CreateIndex(ctx, buildIndex())
	if err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create catalog index: %w", err)
	}
	return nil
}

// FindByID returns a single product.
func (r *Repo) FindByID(ctx context.Context, id int64) (product.Product, error) {
	key := productKey(id)
	m, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return product.Product{}, fmt.Errorf("hgetall %s: %w", key, err)
	}
	if len(m) == 0 {
		return product.Product{}, fmt.Errorf("product %d: %w", id, domain.ErrProductNotFound)
	}
	p, err := fromHash(id, m)
	if err != nil {
		return product.Product{}, fmt.Errorf("decode %s: %w", key, err)
	}
	return p, nil
}

// FindByIDs loads products in the order of ids. Missing and repeated ids are skipped.
func (r *Repo) FindByIDs(ctx context.Context, ids []int64) ([]product.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	uniq := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		uniq = append(uniq, id)
	}

	keys := make([]string, len(uniq))
	for i, id := range uniq {
		keys[i] = productKey(id)
	}

	hashes, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("load %d products: %w", len(keys), err)
	}

	out := make([]product.Product, 0, len(hashes))
	for i, m := range hashes {
		if len(m) == 0 {
			continue
		}
		p, err := fromHash(uniq[i], m)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", keys[i], err)
		}
		out = append(out, p)
	}
	return out, nil
}

// FindMany returns products matching q in the requested order.
//
// OrderPopularity sorts by rating in Redis and re-sorts a window of
// Offset+Limit+popularityWindow products by the full key (rating, review count,
// creation time). When more products than that tie on rating, which ones land in
// the window is up to Redis, so the tie-break is exact only inside the window.
func (r *Repo) FindMany(ctx context.Context, q product.Query) ([]product.Product, error) {
	expr, err := buildFilter(q)
	if err != nil {
		return nil, err
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	lq := &db.ListQuery{
		IndexName: indexName(),
		Filters:   expr,
		SortBy:    fieldSeq,
		Offset:    q.Offset,
		Limit:     limit,
	}
	if q.Order == product.OrderPopularity {
		lq.SortBy = fieldRating
		lq.SortDesc = true
		lq.Offset = 0
		lq.Limit = q.Offset + limit + popularityWindow
	}

	res, err := r.store.SearchList(ctx, lq)
	if err != nil {
		return nil, fmt.Errorf("search catalog: %w", err)
	}

	out := make([]product.Product, 0, len(res.Entries))
	for _, e := range res.Entries {
		p, err := fromHash(0, e.Fields)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", e.Key, err)
		}
		out = append(out, p)
	}

	if q.Order == product.OrderPopularity {
		slices.SortStableFunc(out, comparePopularity)
		out = window(out, q.Offset, limit)
	}
	return out, nil
}

// Count returns the number of products in the catalog.
func (r *Repo) Count(ctx context.Context) (int, error) {
	n, err := r.store.SearchCount(ctx, indexName(), filter.Expression{})
	if err != nil {
		return 0, fmt.Errorf("count catalog: %w", err)
	}
	return n, nil
}

// Upsert writes the full product hash.
func (r *Repo) Upsert(ctx context.Context, p product.Product) error {
	key := productKey(p.ID())
	if err := r.store.HSet(ctx, key, toHash(p)); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	return nil
}

// Update applies a partial update. An empty ExternalID clears the field.
func (r *Repo) Update(ctx context.Context, id int64, patch product.Patch) error {
	if err := patch.Validate(); err != nil {
		return err
	}

	key := productKey(id)
	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check exists %s: %w", key, err)
	}
	if !exists {
		return fmt.Errorf("product %d: %w", id, domain.ErrProductNotFound)
	}

	fields := patchHash(patch)
	if patch.ExternalID != nil && *patch.ExternalID == "" {
		delete(fields, fieldExternalID)
		if err := r.store.HDel(ctx, key, fieldExternalID); err != nil {
			return fmt.Errorf("hdel %s: %w", key, err)
		}
	}
	if len(fields) == 0 {
		return nil
	}
	if err := r.store.HSet(ctx, key, fields); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	return nil
}

// Delete removes a product. Missing products are reported as not found.
func (r *Repo) Delete(ctx context.Context, id int64) error {
	key := productKey(id)
	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check exists %s: %w", key, err)
	}
	if !exists {
		return fmt.Errorf("product %d: %w", id, domain.ErrProductNotFound)
	}
	if err := r.store.Del(ctx, key); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}

func buildFilter(q product.Query) (filter.Expression, error) {
	var must, mustNot []filter.Condition

	if len(q.Categories) > 0 {
		c, err := filter.NewMatchAny(fieldCategory, q.Categories...)
		if err != nil {
			return filter.Expression{}, fmt.Errorf("category filter: %w", errors.Join(err, domain.ErrInvalidInput))
		}
		must = append(must, c)
	}

	if len(q.ExcludeIDs) > 0 {
		ids := make([]string, len(q.ExcludeIDs))
		for i, id := range q.ExcludeIDs {
			ids[i] = strconv.FormatInt(id, 10)
		}
		c, err := filter.NewMatchAny(aliasPID, ids...)
		if err != nil {
			return filter.Expression{}, fmt.Errorf("exclusion filter: %w", errors.Join(err, domain.ErrInvalidInput))
		}
		mustNot = append(mustNot, c)
	}

	expr, err := filter.NewExpression(must, nil, mustNot)
	if err != nil {
		return filter.Expression{}, fmt.Errorf("catalog filter: %w", errors.Join(err, domain.ErrInvalidInput))
	}
	return expr, nil
}

// comparePopularity orders by rating desc, review count desc, creation time desc.
func comparePopularity(a, b product.Product) int {
	if c := cmp.Compare(b.Rating(), a.Rating()); c != 0 {
		return c
	}
	if c := cmp.Compare(b.NumReviews(), a.NumReviews()); c != 0 {
		return c
	}
	return b.CreatedAt().Compare(a.CreatedAt())
}

func window(ps []product.Product, offset, limit int) []product.Product {
	if offset >= len(ps) {
		return ps[:0]
	}
	ps = ps[offset:]
	if len(ps) > limit {
		ps = ps[:limit]
	}
	return ps
}
