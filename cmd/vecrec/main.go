package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecrec/internal/app"
	"github.com/kailas-cloud/vecrec/internal/config"
	"github.com/kailas-cloud/vecrec/internal/db"
	dbRedis "github.com/kailas-cloud/vecrec/internal/db/redis"
	logpkg "github.com/kailas-cloud/vecrec/internal/logger"
	chiTransport "github.com/kailas-cloud/vecrec/internal/transport/chi"
	"github.com/kailas-cloud/vecrec/internal/version"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting vecrec API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.Bool("vector_index", cfg.VectorIndex.Enabled),
	)

	ctx := context.Background()
	readiness := time.Duration(cfg.Database.ReadinessTimeout) * time.Second

	store := mustConnect(ctx, logger, "catalog", cfg.Database.Addrs, cfg.Database.Password, readiness)
	defer store.Close()

	deps := app.Deps{Catalog: store}
	if cfg.VectorIndex.Enabled {
		indexStore := store
		if len(cfg.VectorIndex.Addrs) > 0 {
			addrs, password := cfg.IndexAddrs()
			indexStore = mustConnect(ctx, logger, "vector_index", addrs, password, readiness)
			defer indexStore.Close()
		}

		// Embeddings are cached in the catalog store.
		chain, err := app.BuildEmbedder(cfg.Embedding, store, logger)
		if err != nil {
			logger.Fatal("Failed to build embedder", zap.Error(err))
		}
		deps.Index, deps.Embedder, deps.Health = indexStore, chain.Embedder, chain.Health
		logger.Info("Embedder created",
			zap.String("provider", cfg.Embedding.Vectorizer.Provider),
			zap.String("model", cfg.Embedding.Vectorizer.Model),
			zap.Int("dimensions", cfg.Embedding.Vectorizer.Dimensions),
		)
	}

	a, err := app.Wire(ctx, deps, app.OptionsFromConfig(cfg), logger)
	if err != nil {
		logger.Fatal("Failed to wire services", zap.Error(err))
	}

	// Pass nil interface (not typed nil pointer!) when the index is off.
	var syncer chiTransport.Syncer
	if a.Syncer != nil {
		syncer = a.Syncer
	}

	server := chiTransport.NewServer(a.Catalog, a.Recommender, syncer, a.Health, logger)
	handler := chiTransport.NewRouter(server, chiTransport.RouterConfig{APIKeys: cfg.Auth.APIKeys})

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

func mustConnect(
	ctx context.Context, logger *zap.Logger, name string,
	addrs []string, password string, readiness time.Duration,
) db.Store {
	store, err := dbRedis.NewStore(dbRedis.Config{Addrs: addrs, Password: password})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.String("store", name), zap.Error(err))
	}
	if err := store.WaitForReady(ctx, readiness); err != nil {
		store.Close()
		logger.Fatal("Database not ready", zap.String("store", name), zap.Error(err))
	}
	logger.Info("Connected to database", zap.String("store", name), zap.Strings("addrs", addrs))
	return store
}
