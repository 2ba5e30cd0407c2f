// Package recommend ranks catalog products by similarity to one or more base
// products, cascading from the vector index to in-process scoring to a
// popularity backstop.
package recommend

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecrec/internal/domain"
	"github.com/kailas-cloud/vecrec/internal/domain/product"
	"github.com/kailas-cloud/vecrec/internal/metrics"
)

// Limit defaults.
const (
	DefaultSimilarLimit = 5
	DefaultGroupLimit   = 10
	DefaultMaxLimit     = 50
	DefaultMaxGroupSize = 50
)

// Config tunes the orchestrator.
type Config struct {
	SimilarLimit int
	GroupLimit   int
	MaxLimit     int
	MaxGroupSize int
	Pool         PoolConfig
	Weights      Weights
	// Dimensions is the vector size of the index. Group centroids only use
	// vectors of this size; 0 falls back to the most common size in the group.
	Dimensions int
}

// Service is the ranking orchestrator.
type Service struct {
	catalog Catalog
	tiers   []Strategy
	cfg     Config
	logger  *zap.Logger
}

// New creates the orchestrator. index and syncer may be nil; without an index
// the vector tier is not installed.
func New(catalog Catalog, index VectorIndex, syncer Syncer, cfg Config, logger *zap.Logger) (*Service, error) {
	cfg = withDefaults(cfg)
	if err := cfg.Weights.Validate(); err != nil {
		return nil, fmt.Errorf("recommend weights: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	pool := NewPoolBuilder(catalog, cfg.Pool)
	var tiers []Strategy
	if index != nil {
		tiers = append(tiers, &vectorTier{
			index: index, syncer: syncer, catalog: catalog, dims: cfg.Dimensions, logger: logger,
		})
	}
	tiers = append(tiers,
		&localTier{pool: pool, scorer: NewScorer(cfg.Weights)},
		&backstopTier{pool: pool},
		selfTier{},
	)
	return NewWithStrategies(catalog, cfg, logger, tiers...), nil
}

// NewWithStrategies builds an orchestrator over an explicit tier list, tried in order.
func NewWithStrategies(catalog Catalog, cfg Config, logger *zap.Logger, tiers ...Strategy) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{catalog: catalog, tiers: tiers, cfg: withDefaults(cfg), logger: logger}
}

func withDefaults(cfg Config) Config {
	if cfg.SimilarLimit <= 0 {
		cfg.SimilarLimit = DefaultSimilarLimit
	}
	if cfg.GroupLimit <= 0 {
		cfg.GroupLimit = DefaultGroupLimit
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = DefaultMaxLimit
	}
	if cfg.MaxGroupSize <= 0 {
		cfg.MaxGroupSize = DefaultMaxGroupSize
	}
	if cfg.Weights == (Weights{}) {
		cfg.Weights = DefaultWeights()
	}
	return cfg
}

// Tiers returns the names of the installed tiers in cascade order.
func (s *Service) Tiers() []string {
	names := make([]string, len(s.tiers))
	for i, t := range s.tiers {
		names[i] = t.Name()
	}
	return names
}

// RecommendSimilar returns up to limit products similar to p, never p itself
// unless the catalog holds nothing else. limit <= 0 uses the default.
func (s *Service) RecommendSimilar(ctx context.Context, p product.Product, limit int) ([]product.Product, error) {
	if limit <= 0 {
		limit = s.cfg.SimilarLimit
	}
	return s.run(ctx, Request{Kind: KindSimilar, Bases: []product.Product{p}, Limit: limit})
}

// RecommendForGroup returns up to limit products similar to the group as a whole,
// excluding every member unless the catalog holds nothing else.
func (s *Service) RecommendForGroup(ctx context.Context, ps []product.Product, limit int) ([]product.Product, error) {
	if len(ps) == 0 {
		return nil, fmt.Errorf("group is empty: %w", domain.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = s.cfg.GroupLimit
	}
	return s.run(ctx, Request{Kind: KindGroup, Bases: ps, Limit: limit})
}

func (s *Service) run(ctx context.Context, req Request) ([]product.Product, error) {
	start := time.Now()
	defer func() {
		metrics.RecommendDuration.WithLabelValues(string(req.Kind)).Observe(time.Since(start).Seconds())
	}()

	for _, tier := range s.tiers {
		ps, err := tier.Rank(ctx, req)
		if err != nil {
			metrics.RecommendRequestsTotal.WithLabelValues(string(req.Kind), "error").Inc()
			return nil, fmt.Errorf("%s tier: %w", tier.Name(), err)
		}
		if len(ps) > 0 {
			if len(ps) > req.Limit {
				ps = ps[:req.Limit]
			}
			metrics.RecommendRequestsTotal.WithLabelValues(string(req.Kind), tier.Name()).Inc()
			s.logger.Debug("Recommendations served",
				zap.String("kind", string(req.Kind)),
				zap.String("tier", tier.Name()),
				zap.Int64s("base_ids", req.excludeIDs()),
				zap.Int("count", len(ps)),
			)
			return ps, nil
		}
		metrics.RecommendTierFallthroughTotal.WithLabelValues(string(req.Kind), tier.Name()).Inc()
		if tier.Name() != TierSelf {
			s.logger.Debug("Tier produced nothing, falling through",
				zap.String("kind", string(req.Kind)),
				zap.String("tier", tier.Name()),
			)
		}
	}
	return []product.Product{}, nil
}

// SimilarByID validates the request, loads the product and recommends.
func (s *Service) SimilarByID(ctx context.Context, id int64, limit int) ([]product.Product, error) {
	if id <= 0 {
		return nil, fmt.Errorf("product id must be positive, got %d: %w", id, domain.ErrInvalidInput)
	}
	if err := s.checkLimit(limit); err != nil {
		return nil, err
	}
	p, err := s.catalog.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load product: %w", err)
	}
	return s.RecommendSimilar(ctx, p, limit)
}

// ForGroupByIDs validates the request, loads every product and recommends.
// Repeated ids count once.
func (s *Service) ForGroupByIDs(ctx context.Context, ids []int64, limit int) ([]product.Product, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("product_ids must not be empty: %w", domain.ErrInvalidInput)
	}
	if err := s.checkLimit(limit); err != nil {
		return nil, err
	}

	uniq := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if id <= 0 {
			return nil, fmt.Errorf("product id must be positive, got %d: %w", id, domain.ErrInvalidInput)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		uniq = append(uniq, id)
	}
	if len(uniq) > s.cfg.MaxGroupSize {
		return nil, fmt.Errorf("at most %d products per group, got %d: %w",
			s.cfg.MaxGroupSize, len(uniq), domain.ErrInvalidInput)
	}

	ps, err := s.catalog.FindByIDs(ctx, uniq)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	if len(ps) != len(uniq) {
		found := idSet(product.IDs(ps))
		for _, id := range uniq {
			if _, ok := found[id]; !ok {
				return nil, fmt.Errorf("product %d: %w", id, domain.ErrProductNotFound)
			}
		}
	}
	return s.RecommendForGroup(ctx, ps, limit)
}

func (s *Service) checkLimit(limit int) error {
	if limit < 0 || limit > s.cfg.MaxLimit {
		return fmt.Errorf("limit must be between 1 and %d, got %d: %w", s.cfg.MaxLimit, limit, domain.ErrInvalidInput)
	}
	return nil
}
