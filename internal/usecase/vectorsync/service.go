// Package vectorsync pushes product embeddings into the vector index and keeps
// the catalog's external identifiers in step with it.
package vectorsync

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/vecrec/internal/domain"
	"github.com/kailas-cloud/vecrec/internal/domain/product"
	"github.com/kailas-cloud/vecrec/internal/domain/vector"
	"github.com/kailas-cloud/vecrec/internal/metrics"
)

// Defaults for bulk sync.
const (
	DefaultWorkers  = 4
	DefaultPageSize = 64
)

// Report summarizes a bulk sync.
type Report struct {
	Synced int `json:"synced"`
	Failed int `json:"failed"`
}

// Service embeds products and writes them to the vector index.
type Service struct {
	catalog  Catalog
	index    Index
	embedder domain.Embedder
	dims     int // 0 = unchecked
	pageSize int
	logger   *zap.Logger
}

// New creates a sync service. dims is the index dimension; embeddings of any
// other size are rejected before they reach the index.
func New(catalog Catalog, index Index, embedder domain.Embedder, dims int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		catalog:  catalog,
		index:    index,
		embedder: embedder,
		dims:     dims,
		pageSize: DefaultPageSize,
		logger:   logger,
	}
}

// EnsureSynced indexes p and reports success. Failures are logged, not returned.
func (s *Service) EnsureSynced(ctx context.Context, p product.Product) bool {
	if _, err := s.sync(ctx, p); err != nil {
		s.logger.Warn("Product sync failed",
			zap.Int64("product_id", p.ID()),
			zap.Error(err),
		)
		return false
	}
	return true
}

// Sync indexes one product by id and returns its external identifier.
func (s *Service) Sync(ctx context.Context, id int64) (string, error) {
	if id <= 0 {
		return "", fmt.Errorf("product id must be positive, got %d: %w", id, domain.ErrInvalidInput)
	}
	p, err := s.catalog.FindByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("load product: %w", err)
	}
	return s.sync(ctx, p)
}

func (s *Service) sync(ctx context.Context, p product.Product) (string, error) {
	res, err := s.embedder.Embed(ctx, p.EmbeddingText())
	if err != nil {
		metrics.SyncProductsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("embed product %d: %w", p.ID(), err)
	}
	ext, err := s.write(ctx, []product.Product{p}, [][]float32{res.Embedding})
	if err != nil {
		return "", err
	}
	return ext[0], nil
}

// write upserts vectors for ps and backfills external ids that changed.
func (s *Service) write(ctx context.Context, ps []product.Product, vecs [][]float32) ([]string, error) {
	items := make([]vector.Item, len(ps))
	ext := make([]string, len(ps))
	for i, p := range ps {
		if s.dims > 0 && len(vecs[i]) != s.dims {
			metrics.SyncProductsTotal.WithLabelValues("error").Add(float64(len(ps)))
			return nil, fmt.Errorf("product %d embedding has %d dims, index has %d: %w",
				p.ID(), len(vecs[i]), s.dims, domain.ErrVectorDimensionMismatch)
		}
		ext[i] = vector.ExternalIDFor(p.ID())
		items[i] = vector.Item{
			ExternalID: ext[i],
			Values:     vecs[i],
			Metadata: map[string]string{
				vector.MetaProductID: strconv.FormatInt(p.ID(), 10),
				vector.MetaCategory:  p.Category(),
				vector.MetaBrand:     p.Brand(),
			},
		}
	}

	if err := s.index.Upsert(ctx, items); err != nil {
		metrics.SyncProductsTotal.WithLabelValues("error").Add(float64(len(ps)))
		return nil, fmt.Errorf("upsert %d vectors: %w", len(items), err)
	}

	for i, p := range ps {
		if p.ExternalID() == ext[i] {
			continue
		}
		id := ext[i]
		if err := s.catalog.Update(ctx, p.ID(), product.Patch{ExternalID: &id}); err != nil {
			metrics.SyncProductsTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("backfill external id of product %d: %w", p.ID(), err)
		}
	}
	metrics.SyncProductsTotal.WithLabelValues("ok").Add(float64(len(ps)))
	return ext, nil
}

// SyncAll pages through the catalog and indexes every product, embedding a page
// per call with at most workers pages in flight. A failed page is counted and
// skipped; only catalog paging errors and cancellation abort the run.
func (s *Service) SyncAll(ctx context.Context, workers int) (Report, error) {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	var synced, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	offset := 0
	for {
		if err := gctx.Err(); err != nil {
			break
		}
		page, err := s.catalog.FindMany(gctx, product.Query{Limit: s.pageSize, Offset: offset})
		if err != nil {
			_ = g.Wait()
			return s.report(&synced, &failed), fmt.Errorf("list products at offset %d: %w", offset, err)
		}
		if len(page) == 0 {
			break
		}

		g.Go(func() error {
			if err := s.syncPage(gctx, page); err != nil {
				failed.Add(int64(len(page)))
				s.logger.Warn("Sync page failed",
					zap.Int64("first_product_id", page[0].ID()),
					zap.Int("size", len(page)),
					zap.Error(err),
				)
				if errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			}
			synced.Add(int64(len(page)))
			return nil
		})

		offset += len(page)
		if len(page) < s.pageSize {
			break
		}
	}

	err := g.Wait()
	rep := s.report(&synced, &failed)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return rep, fmt.Errorf("sync all: %w", err)
	}
	s.logger.Info("Catalog synced", zap.Int("synced", rep.Synced), zap.Int("failed", rep.Failed))
	return rep, nil
}

func (s *Service) report(synced, failed *atomic.Int64) Report {
	return Report{Synced: int(synced.Load()), Failed: int(failed.Load())}
}

func (s *Service) syncPage(ctx context.Context, page []product.Product) error {
	texts := make([]string, len(page))
	for i, p := range page {
		texts[i] = p.EmbeddingText()
	}

	var res domain.BatchEmbeddingResult
	var err error
	if be, ok := s.embedder.(domain.BatchEmbedder); ok {
		res, err = be.BatchEmbed(ctx, texts)
	} else {
		res, err = domain.BatchFallback(ctx, s.embedder, texts)
	}
	if err != nil {
		metrics.SyncProductsTotal.WithLabelValues("error").Add(float64(len(page)))
		return fmt.Errorf("embed page: %w", err)
	}
	if len(res.Embeddings) != len(page) {
		metrics.SyncProductsTotal.WithLabelValues("error").Add(float64(len(page)))
		return fmt.Errorf("got %d embeddings for %d products: %w",
			len(res.Embeddings), len(page), domain.ErrEmbeddingProviderError)
	}

	_, err = s.write(ctx, page, res.Embeddings)
	return err
}

// Remove deletes the vectors of the given products and clears their external ids.
// Products missing from the catalog still get their canonical vector removed.
func (s *Service) Remove(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	for _, id := range ids {
		if id <= 0 {
			return fmt.Errorf("product id must be positive, got %d: %w", id, domain.ErrInvalidInput)
		}
	}

	ps, err := s.catalog.FindByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("load products: %w", err)
	}

	ext := make([]string, 0, len(ids)+len(ps))
	seen := make(map[string]struct{}, cap(ext))
	add := func(id string) {
		if _, ok := seen[id]; ok || id == "" {
			return
		}
		seen[id] = struct{}{}
		ext = append(ext, id)
	}
	for _, id := range ids {
		add(vector.ExternalIDFor(id))
	}
	for _, p := range ps {
		add(p.ExternalID())
	}

	if err := s.index.Delete(ctx, ext); err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}

	empty := ""
	for _, p := range ps {
		if p.ExternalID() == "" {
			continue
		}
		if err := s.catalog.Update(ctx, p.ID(), product.Patch{ExternalID: &empty}); err != nil {
			return fmt.Errorf("clear external id of product %d: %w", p.ID(), err)
		}
	}
	return nil
}
