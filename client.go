package vecrec

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/vecrec/internal/app"
	"github.com/kailas-cloud/vecrec/internal/db"
	dbRedis "github.com/kailas-cloud/vecrec/internal/db/redis"
	"github.com/kailas-cloud/vecrec/internal/domain"
	"github.com/kailas-cloud/vecrec/internal/domain/product"
	"github.com/kailas-cloud/vecrec/internal/repository/vectorindex"
	"github.com/kailas-cloud/vecrec/internal/usecase/recommend"
)

const defaultReadinessTimeout = 10 * time.Second

// Внутренние интерфейсы для подмены в тестах.
type catalogUseCase interface {
	FindByID(ctx context.Context, id int64) (product.Product, error)
	Upsert(ctx context.Context, p product.Product) error
	Delete(ctx context.Context, id int64) error
}

type recommendUseCase interface {
	SimilarByID(ctx context.Context, id int64, limit int) ([]product.Product, error)
	ForGroupByIDs(ctx context.Context, ids []int64, limit int) ([]product.Product, error)
}

type syncUseCase interface {
	Sync(ctx context.Context, id int64) (string, error)
	Remove(ctx context.Context, ids []int64) error
}

// Client is the vecrec SDK entry point.
type Client struct {
	store       db.Store
	catalog     catalogUseCase
	recommender recommendUseCase
	syncer      syncUseCase // nil without an embedder
	healthSvc   healthUseCase
	obs         *observer
}

// New creates a Client, connects to Redis and prepares the search indexes.
// The provided context is used for the readiness check and index creation.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}

	if len(cfg.addrs) == 0 {
		return nil, errors.New("vecrec: database address required (use WithRedis)")
	}
	if cfg.embedder != nil && cfg.dimensions <= 0 {
		return nil, fmt.Errorf("vecrec: embedder requires positive dimensions: %w", ErrInvalidInput)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	store, err := dbRedis.NewStore(dbRedis.Config{Addrs: cfg.addrs, Password: cfg.password})
	if err != nil {
		return nil, fmt.Errorf("vecrec: create redis store: %w", err)
	}
	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("vecrec: database not ready: %w", err)
	}

	c, err := wireClient(ctx, store, cfg, obs)
	if err != nil {
		store.Close()
		return nil, err
	}
	return c, nil
}

func wireClient(ctx context.Context, store db.Store, cfg *clientConfig, obs *observer) (*Client, error) {
	deps := app.Deps{Catalog: store}
	if cfg.embedder != nil {
		deps.Index = store
		deps.Embedder = adaptEmbedder(cfg.embedder)
	}

	opts := app.Options{
		VectorIndex: vectorindex.Config{
			Namespace:      cfg.namespace,
			Dimensions:     cfg.dimensions,
			M:              cfg.hnswM,
			EFConstruction: cfg.hnswEF,
		},
	}
	if cfg.weights != nil {
		opts.Recommend = recommend.Config{Weights: cfg.weights.toInternal()}
	}

	a, err := app.Wire(ctx, deps, opts, obs.logger)
	if err != nil {
		return nil, fmt.Errorf("vecrec: %w", err)
	}

	c := &Client{
		store:       store,
		catalog:     a.Catalog,
		recommender: a.Recommender,
		healthSvc:   a.Health,
		obs:         obs,
	}
	if a.Syncer != nil {
		c.syncer = a.Syncer
	} else if cfg.embedder != nil {
		obs.logger.Warn("vector index unavailable, using local ranking only")
	}
	return c, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Put creates or replaces a product in the catalog.
// The vector is refreshed lazily on the next recommendation or by Sync.
func (c *Client) Put(ctx context.Context, p Product) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("put", start, err) }()

	dp, err := p.toDomain()
	if err != nil {
		return fmt.Errorf("put: %w", err)
	}
	if err = c.catalog.Upsert(ctx, dp); err != nil {
		return fmt.Errorf("put: %w", err)
	}
	return nil
}

// Get returns a product by id.
func (c *Client) Get(ctx context.Context, id int64) (_ Product, err error) {
	start := time.Now()
	defer func() { c.obs.observe("get", start, err) }()

	p, err := c.catalog.FindByID(ctx, id)
	if err != nil {
		return Product{}, fmt.Errorf("get: %w", err)
	}
	return productFromDomain(p), nil
}

// Delete removes a product and its vector. A vector index outage does not
// block the catalog delete.
func (c *Client) Delete(ctx context.Context, id int64) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("delete", start, err) }()

	if c.syncer != nil {
		if err = c.syncer.Remove(ctx, []int64{id}); err != nil && !errors.Is(err, domain.ErrVectorIndexUnavailable) {
			return fmt.Errorf("delete: %w", err)
		}
	}
	if err = c.catalog.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

// Similar recommends products similar to the given one. Zero limit means
// the default (5).
func (c *Client) Similar(ctx context.Context, id int64, limit int) (_ []Product, err error) {
	start := time.Now()
	defer func() { c.obs.observe("similar", start, err) }()

	ps, err := c.recommender.SimilarByID(ctx, id, limit)
	if err != nil {
		return nil, fmt.Errorf("similar: %w", err)
	}
	return productsFromDomain(ps), nil
}

// ForGroup recommends products for a set of products, e.g. a cart.
// Zero limit means the default (10).
func (c *Client) ForGroup(ctx context.Context, ids []int64, limit int) (_ []Product, err error) {
	start := time.Now()
	defer func() { c.obs.observe("for_group", start, err) }()

	ps, err := c.recommender.ForGroupByIDs(ctx, ids, limit)
	if err != nil {
		return nil, fmt.Errorf("for group: %w", err)
	}
	return productsFromDomain(ps), nil
}

// Sync embeds a product into the vector index and returns its external id.
func (c *Client) Sync(ctx context.Context, id int64) (_ string, err error) {
	start := time.Now()
	defer func() { c.obs.observe("sync", start, err) }()

	if c.syncer == nil {
		return "", ErrIndexDisabled
	}
	ext, err := c.syncer.Sync(ctx, id)
	if err != nil {
		return "", fmt.Errorf("sync: %w", err)
	}
	return ext, nil
}

// Unsync removes products from the vector index, keeping them in the catalog.
func (c *Client) Unsync(ctx context.Context, ids ...int64) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("unsync", start, err) }()

	if c.syncer == nil {
		return ErrIndexDisabled
	}
	if err = c.syncer.Remove(ctx, ids); err != nil {
		return fmt.Errorf("unsync: %w", err)
	}
	return nil
}
