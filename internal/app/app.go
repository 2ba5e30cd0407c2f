// Package app wires the catalog, vector index, sync and ranking services
// shared by the HTTP server, the catalog CLI and the SDK.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecrec/internal/config"
	"github.com/kailas-cloud/vecrec/internal/db"
	"github.com/kailas-cloud/vecrec/internal/domain"
	"github.com/kailas-cloud/vecrec/internal/metrics"
	catalogrepo "github.com/kailas-cloud/vecrec/internal/repository/catalog"
	"github.com/kailas-cloud/vecrec/internal/repository/embcache"
	"github.com/kailas-cloud/vecrec/internal/repository/vectorindex"
	openaiEmb "github.com/kailas-cloud/vecrec/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/vecrec/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/vecrec/internal/usecase/health"
	"github.com/kailas-cloud/vecrec/internal/usecase/recommend"
	"github.com/kailas-cloud/vecrec/internal/usecase/vectorsync"
)

// Deps are the connections the services are built over.
type Deps struct {
	Catalog db.Store
	// Index holds the vector hashes. Nil disables the vector tier.
	Index db.Store
	// Embedder populates the index. Required when Index is set.
	Embedder domain.Embedder
	// Health checks the embedding provider. Optional.
	Health healthuc.EmbeddingChecker
}

// Options tune the services.
type Options struct {
	VectorIndex vectorindex.Config
	Breaker     vectorindex.BreakerConfig
	Recommend   recommend.Config
}

// App is the wired service graph.
type App struct {
	Catalog     *catalogrepo.Repo
	Index       *vectorindex.Breaker // nil when the vector index is disabled
	Syncer      *vectorsync.Service  // nil when the vector index is disabled
	Recommender *recommend.Service
	Health      *healthuc.Service
}

// Wire builds the service graph and creates the FT indexes.
// A vector index that cannot be prepared is disabled with a warning:
// recommendations keep working on the local tiers.
func Wire(ctx context.Context, deps Deps, opts Options, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.RegisterRecommendMetrics()

	catalog := catalogrepo.New(deps.Catalog)
	if err := catalog.EnsureIndex(ctx); err != nil {
		return nil, fmt.Errorf("catalog index: %w", err)
	}

	a := &App{Catalog: catalog}
	if deps.Index != nil && deps.Embedder != nil {
		idx, err := buildIndex(ctx, deps.Index, opts, logger)
		if err != nil {
			logger.Warn("vector index disabled", zap.Error(err))
		} else {
			a.Index = idx
			a.Syncer = vectorsync.New(catalog, idx, deps.Embedder, opts.VectorIndex.Dimensions, logger)
		}
	}

	// Pass nil interfaces, not typed nil pointers: a nil *Breaker wrapped in
	// recommend.VectorIndex would not compare equal to nil.
	var (
		index  recommend.VectorIndex
		syncer recommend.Syncer
		pinger healthuc.Pinger
	)
	if a.Index != nil {
		index, syncer, pinger = a.Index, a.Syncer, a.Index
	}

	rc := opts.Recommend
	if index != nil && rc.Dimensions <= 0 {
		rc.Dimensions = opts.VectorIndex.Dimensions
	}
	rec, err := recommend.New(catalog, index, syncer, rc, logger)
	if err != nil {
		return nil, fmt.Errorf("recommend: %w", err)
	}
	a.Recommender = rec
	a.Health = healthuc.New(deps.Catalog, pinger, deps.Health)

	logger.Info("services wired",
		zap.Bool("vector_index", a.Index != nil),
		zap.Strings("tiers", rec.Tiers()),
	)
	return a, nil
}

func buildIndex(ctx context.Context, s db.Store, opts Options, logger *zap.Logger) (*vectorindex.Breaker, error) {
	repo, err := vectorindex.New(s, opts.VectorIndex)
	if err != nil {
		return nil, fmt.Errorf("vector index: %w", err)
	}
	if err := repo.EnsureIndex(ctx); err != nil {
		return nil, fmt.Errorf("vector index: %w", err)
	}
	return vectorindex.NewBreaker(repo, opts.Breaker, logger), nil
}

// OptionsFromConfig maps the service configuration onto wiring options.
func OptionsFromConfig(cfg config.Config) Options {
	vi := cfg.VectorIndex
	rc := cfg.Recommend
	w := rc.Weights
	return Options{
		VectorIndex: vectorindex.Config{
			Namespace:      vi.Namespace,
			Dimensions:     vi.Dimensions,
			M:              vi.HNSWM,
			EFConstruction: vi.HNSWEFConstruct,
		},
		Breaker: vectorindex.BreakerConfig{
			Name:             "vector-index",
			MaxFailures:      vi.Breaker.MaxFailures,
			OpenTimeout:      time.Duration(vi.Breaker.OpenTimeoutSec) * time.Second,
			HalfOpenRequests: vi.Breaker.HalfOpenRequests,
			CallTimeout:      time.Duration(vi.TimeoutMs) * time.Millisecond,
		},
		Recommend: recommend.Config{
			SimilarLimit: rc.SimilarLimit,
			GroupLimit:   rc.GroupLimit,
			MaxLimit:     rc.MaxLimit,
			MaxGroupSize: rc.MaxGroupSize,
			Pool: recommend.PoolConfig{
				Limit:         rc.PoolLimit,
				ThinThreshold: rc.ThinThreshold,
			},
			Weights: recommend.Weights{
				Category:    w.Category,
				Brand:       w.Brand,
				Name:        w.Name,
				Description: w.Description,
				Price:       w.Price,
			},
		},
	}
}

// EmbedderChain is the provider chain plus a health probe of the base provider.
type EmbedderChain struct {
	Embedder domain.Embedder
	Health   healthuc.EmbeddingChecker
}

// BuildEmbedder assembles the decorator chain:
// OpenAI -> Cached -> Instrumented -> Instruction (outermost, so the cache key includes it).
// cache may be nil.
func BuildEmbedder(cfg config.EmbeddingConfig, cache db.KVStore, logger *zap.Logger) (EmbedderChain, error) {
	vc := cfg.Vectorizer
	prov, ok := cfg.Providers[vc.Provider]
	if !ok {
		return EmbedderChain{}, fmt.Errorf("embedding provider %q not configured", vc.Provider)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.RegisterEmbeddingMetrics()

	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     prov.APIKey,
		BaseURL:    prov.BaseURL,
		Model:      vc.Model,
		Dimensions: vc.Dimensions,
		Provider:   vc.Provider,
		Logger:     logger,
	})

	var e domain.Embedder = base
	if cache != nil && cfg.Cache.Enabled {
		ttl := time.Duration(cfg.Cache.TTLHours) * time.Hour
		e = embcache.New(base, cache, vc.Model, ttl, metrics.EmbeddingCacheTotal, logger)
	}
	e = embeddinguc.NewInstrumentedEmbedder(e, vc.Provider, vc.Model, cfg.MaxBatchSize, logger)
	if vc.Instruction != "" {
		e = domain.NewInstructionEmbedder(e, vc.Instruction)
	}
	return EmbedderChain{Embedder: e, Health: base}, nil
}
