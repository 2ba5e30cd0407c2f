package recommend

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/vecrec/internal/domain"
	"github.com/kailas-cloud/vecrec/internal/domain/product"
	"github.com/kailas-cloud/vecrec/internal/domain/vector"
)

// Kind distinguishes single-product from group recommendations.
type Kind string

// Recommendation kinds.
const (
	KindSimilar Kind = "similar"
	KindGroup   Kind = "group"
)

// Tier names.
const (
	TierVector   = "vector"
	TierLocal    = "local"
	TierBackstop = "backstop"
	TierSelf     = "self"
)

// Request is the input shared by every tier.
type Request struct {
	Kind  Kind
	Bases []product.Product
	Limit int
}

func (r Request) excludeIDs() []int64 {
	return product.IDs(r.Bases)
}

// syncParallelism bounds concurrent resyncs of a group's missing vectors.
const syncParallelism = 4

// vectorTier ranks by nearest neighbors in the vector index.
type vectorTier struct {
	index   VectorIndex
	syncer  Syncer
	catalog Catalog
	dims    int
	logger  *zap.Logger
}

func (t *vectorTier) Name() string { return TierVector }

func (t *vectorTier) Rank(ctx context.Context, req Request) ([]product.Product, error) {
	var ids []int64
	var err error
	if req.Kind == KindSimilar && len(req.Bases) == 1 {
		ids, err = t.similarIDs(ctx, req.Bases[0], req.Limit)
	} else {
		ids, err = t.groupIDs(ctx, req.Bases, req.Limit)
	}
	if err != nil || len(ids) == 0 {
		return nil, err
	}

	ps, err := t.catalog.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load vector neighbors: %w", err)
	}
	return ps, nil
}

func (t *vectorTier) similarIDs(ctx context.Context, base product.Product, limit int) ([]int64, error) {
	k := limit + 3
	exclude := idSet([]int64{base.ID()})

	ids := neighborIDs(t.queryByID(ctx, base, k), exclude, limit)
	if len(ids) > 0 || t.syncer == nil {
		return ids, nil
	}

	if !t.syncer.EnsureSynced(ctx, base) {
		return nil, nil
	}
	fresh, err := t.catalog.FindByID(ctx, base.ID())
	switch {
	case errors.Is(err, domain.ErrProductNotFound):
		fresh = base.WithExternalID(vector.ExternalIDFor(base.ID()))
	case err != nil:
		return nil, fmt.Errorf("reload synced product %d: %w", base.ID(), err)
	}
	return neighborIDs(t.queryByID(ctx, fresh, k), exclude, limit), nil
}

func (t *vectorTier) groupIDs(ctx context.Context, bases []product.Product, limit int) ([]int64, error) {
	vecs := t.fetch(ctx, bases)

	var missing []product.Product
	for _, b := range bases {
		if _, ok := vecs[b.ID()]; !ok {
			missing = append(missing, b)
		}
	}
	if len(missing) > 0 && t.syncer != nil {
		resynced, err := t.resync(ctx, missing)
		if err != nil {
			return nil, err
		}
		for id, v := range t.fetch(ctx, resynced) {
			vecs[id] = v
		}
	}

	// Keep base order; vectors of a foreign dimension are dropped.
	want := t.referenceDims(bases, vecs)
	var usable [][]float32
	for _, b := range bases {
		v, ok := vecs[b.ID()]
		if !ok {
			continue
		}
		if len(v) != want {
			t.logger.Warn("Skipping vector with mismatched dimension",
				zap.Int64("product_id", b.ID()),
				zap.Int("dims", len(v)),
				zap.Int("want", want),
			)
			continue
		}
		usable = append(usable, v)
	}
	if len(usable) == 0 {
		return nil, nil
	}

	centroid, err := vector.Centroid(usable)
	if err != nil {
		t.logger.Warn("Centroid failed", zap.Error(err))
		return nil, nil
	}

	k := limit + len(bases) + 3
	matches, err := t.index.QueryByVector(ctx, centroid, k)
	if err != nil {
		t.logIndexError("query_by_vector", 0, err)
		return nil, nil
	}
	return neighborIDs(matches, idSet(product.IDs(bases)), limit), nil
}

// referenceDims is the configured index dimension, or when unknown the most
// common vector size in the group.
func (t *vectorTier) referenceDims(bases []product.Product, vecs map[int64][]float32) int {
	if t.dims > 0 {
		return t.dims
	}
	counts := make(map[int]int, len(vecs))
	best, bestN := 0, 0
	for _, b := range bases {
		v, ok := vecs[b.ID()]
		if !ok {
			continue
		}
		counts[len(v)]++
		if n := counts[len(v)]; n > bestN {
			best, bestN = len(v), n
		}
	}
	return best
}

// fetch returns stored vectors keyed by product id. Index errors yield an empty map.
func (t *vectorTier) fetch(ctx context.Context, ps []product.Product) map[int64][]float32 {
	out := make(map[int64][]float32, len(ps))
	if len(ps) == 0 {
		return out
	}
	ext := make([]string, len(ps))
	for i, p := range ps {
		ext[i] = queryID(p)
	}
	got, err := t.index.FetchVectors(ctx, ext)
	if err != nil {
		t.logIndexError("fetch", 0, err)
		return out
	}
	for i, p := range ps {
		if v, ok := got[ext[i]]; ok && len(v) > 0 {
			out[p.ID()] = v
		}
	}
	return out
}

// resync syncs missing products concurrently and reloads the ones that succeeded
// so their backfilled external ids are used for the refetch.
func (t *vectorTier) resync(ctx context.Context, missing []product.Product) ([]product.Product, error) {
	ok := make([]bool, len(missing))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(syncParallelism)
	for i, p := range missing {
		g.Go(func() error {
			ok[i] = t.syncer.EnsureSynced(gctx, p)
			return nil
		})
	}
	_ = g.Wait()

	var ids []int64
	for i, p := range missing {
		if ok[i] {
			ids = append(ids, p.ID())
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	fresh, err := t.catalog.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("reload synced products: %w", err)
	}
	return fresh, nil
}

func (t *vectorTier) queryByID(ctx context.Context, p product.Product, k int) []vector.Match {
	matches, err := t.index.QueryByID(ctx, queryID(p), k)
	if err != nil {
		t.logIndexError("query_by_id", p.ID(), err)
		return nil
	}
	return matches
}

func (t *vectorTier) logIndexError(op string, productID int64, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	fields := []zap.Field{zap.String("tier", TierVector), zap.String("op", op), zap.Error(err)}
	if productID > 0 {
		fields = append(fields, zap.Int64("product_id", productID))
	}
	if errors.Is(err, domain.ErrVectorNotFound) {
		t.logger.Debug("Vector not found", fields...)
		return
	}
	t.logger.Warn("Vector index call failed", fields...)
}

// queryID is the identifier a product is looked up by in the index:
// its external id, or the bare numeric id when it has never been synced.
func queryID(p product.Product) string {
	if id := strings.TrimSpace(p.ExternalID()); id != "" {
		return id
	}
	return strconv.FormatInt(p.ID(), 10)
}

// neighborIDs maps matches to catalog ids in rank order, dropping excluded,
// unresolvable and repeated ones, up to limit.
func neighborIDs(matches []vector.Match, exclude map[int64]struct{}, limit int) []int64 {
	ids := make([]int64, 0, min(len(matches), limit))
	seen := make(map[int64]struct{}, len(matches))
	for _, m := range matches {
		if len(ids) >= limit {
			break
		}
		id, ok := vector.ProductIDFromMatch(m)
		if !ok {
			continue
		}
		if _, skip := exclude[id]; skip {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// localTier scores the candidate pool in process.
type localTier struct {
	pool   *PoolBuilder
	scorer Scorer
}

func (t *localTier) Name() string { return TierLocal }

func (t *localTier) Rank(ctx context.Context, req Request) ([]product.Product, error) {
	pool, err := t.pool.Build(ctx, req.excludeIDs(), categoriesOf(req.Bases))
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return nil, nil
	}

	bases := make([]features, len(req.Bases))
	for i, b := range req.Bases {
		bases[i] = newFeatures(b)
	}

	type scored struct {
		p     product.Product
		score float64
	}
	ranked := make([]scored, len(pool))
	for i, c := range pool {
		cf := newFeatures(c)
		best := 0.0
		for _, bf := range bases {
			best = max(best, t.scorer.score(bf, cf))
		}
		ranked[i] = scored{p: c, score: best}
	}

	// Ties keep pool order.
	slices.SortStableFunc(ranked, func(a, b scored) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		}
		return 0
	})

	out := make([]product.Product, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, r.p)
	}
	return appendUnique(nil, out, idSet(req.excludeIDs()), req.Limit), nil
}

// categoriesOf returns the distinct non-empty categories of ps.
func categoriesOf(ps []product.Product) []string {
	var out []string
	for _, p := range ps {
		c := strings.TrimSpace(p.Category())
		if c != "" && !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}

// backstopTier returns the most popular products.
type backstopTier struct {
	pool *PoolBuilder
}

func (t *backstopTier) Name() string { return TierBackstop }

func (t *backstopTier) Rank(ctx context.Context, req Request) ([]product.Product, error) {
	return t.pool.Backup(ctx, req.excludeIDs(), req.Limit)
}

// selfTier echoes the base products so a response is never empty.
type selfTier struct{}

func (selfTier) Name() string { return TierSelf }

func (selfTier) Rank(_ context.Context, req Request) ([]product.Product, error) {
	return appendUnique(nil, req.Bases, nil, req.Limit), nil
}
