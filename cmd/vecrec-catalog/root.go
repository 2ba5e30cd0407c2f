package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecrec/internal/app"
	"github.com/kailas-cloud/vecrec/internal/config"
	"github.com/kailas-cloud/vecrec/internal/db"
	dbRedis "github.com/kailas-cloud/vecrec/internal/db/redis"
	"github.com/kailas-cloud/vecrec/internal/domain/product"
	logpkg "github.com/kailas-cloud/vecrec/internal/logger"
	"github.com/kailas-cloud/vecrec/internal/usecase/vectorsync"
)

var errIndexDisabled = errors.New("vector index is disabled in this environment")

type catalogStore interface {
	Upsert(ctx context.Context, p product.Product) error
	Delete(ctx context.Context, id int64) error
}

type syncer interface {
	Sync(ctx context.Context, id int64) (string, error)
	SyncAll(ctx context.Context, workers int) (vectorsync.Report, error)
	Remove(ctx context.Context, ids []int64) error
}

type recommender interface {
	SimilarByID(ctx context.Context, id int64, limit int) ([]product.Product, error)
	ForGroupByIDs(ctx context.Context, ids []int64, limit int) ([]product.Product, error)
}

// services is what the subcommands run against. syncer is nil when the
// vector index is disabled.
type services struct {
	catalog     catalogStore
	syncer      syncer
	recommender recommender
}

// openFunc connects lazily so --help and flag errors need no Redis.
type openFunc func(cmd *cobra.Command) (*services, error)

// NewRootCmd builds the command tree.
func NewRootCmd(version string, open openFunc) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "vecrec-catalog",
		Short:         "Manage the product catalog and its vector index",
		Long:          `Load products into the catalog, sync them into the vector index and query recommendations.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	rootCmd.PersistentFlags().String("env", config.GetEnv(), "Config environment (config/<env>.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Override log level (debug|info|warn|error)")

	rootCmd.AddCommand(
		NewLoadCmd(open),
		NewSyncCmd(open),
		NewSimilarCmd(open),
		NewGroupCmd(open),
		NewPurgeCmd(open),
	)
	return rootCmd
}

// session owns the connections opened for a command run.
type session struct {
	stores []db.Store
	logger *zap.Logger
	svc    *services
}

func (rt *session) open(cmd *cobra.Command) (*services, error) {
	if rt.svc != nil {
		return rt.svc, nil
	}

	env, _ := cmd.Flags().GetString("env")
	level, _ := cmd.Flags().GetString("log-level")

	cfg, err := config.Load(env)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logpkg.NewLogger("cli", level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	rt.logger = logger

	ctx := cmd.Context()
	store, err := rt.connect(ctx, cfg.Database.Addrs, cfg.Database.Password, cfg.Database.ReadinessTimeout)
	if err != nil {
		return nil, fmt.Errorf("catalog store: %w", err)
	}
	deps := app.Deps{Catalog: store}

	if cfg.VectorIndex.Enabled {
		addrs, password := cfg.IndexAddrs()
		indexStore := store
		if len(cfg.VectorIndex.Addrs) > 0 {
			indexStore, err = rt.connect(ctx, addrs, password, cfg.Database.ReadinessTimeout)
			if err != nil {
				return nil, fmt.Errorf("vector index store: %w", err)
			}
		}
		chain, err := app.BuildEmbedder(cfg.Embedding, store, logger)
		if err != nil {
			return nil, fmt.Errorf("embedder: %w", err)
		}
		deps.Index, deps.Embedder, deps.Health = indexStore, chain.Embedder, chain.Health
	}

	a, err := app.Wire(ctx, deps, app.OptionsFromConfig(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("wire services: %w", err)
	}

	rt.svc = &services{catalog: a.Catalog, recommender: a.Recommender}
	if a.Syncer != nil {
		rt.svc.syncer = a.Syncer
	}
	return rt.svc, nil
}

func (rt *session) connect(ctx context.Context, addrs []string, password string, readinessSec int) (db.Store, error) {
	s, err := dbRedis.NewStore(dbRedis.Config{Addrs: addrs, Password: password})
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	rt.stores = append(rt.stores, s)
	if err := s.WaitForReady(ctx, time.Duration(readinessSec)*time.Second); err != nil {
		return nil, fmt.Errorf("not ready: %w", err)
	}
	return s, nil
}

func (rt *session) close() {
	for _, s := range rt.stores {
		s.Close()
	}
	if rt.logger != nil {
		_ = rt.logger.Sync()
	}
}
