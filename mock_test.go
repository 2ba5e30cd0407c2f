package vecrec

import (
	"context"

	"github.com/kailas-cloud/vecrec/internal/domain/product"
	healthuc "github.com/kailas-cloud/vecrec/internal/usecase/health"
)

// --- catalogUseCase mock ---

type mockCatalogUC struct {
	findFn   func(ctx context.Context, id int64) (product.Product, error)
	upsertFn func(ctx context.Context, p product.Product) error
	deleteFn func(ctx context.Context, id int64) error
}

func (m *mockCatalogUC) FindByID(ctx context.Context, id int64) (product.Product, error) {
	return m.findFn(ctx, id)
}

func (m *mockCatalogUC) Upsert(ctx context.Context, p product.Product) error {
	return m.upsertFn(ctx, p)
}

func (m *mockCatalogUC) Delete(ctx context.Context, id int64) error {
	return m.deleteFn(ctx, id)
}

// --- recommendUseCase mock ---

type mockRecommendUC struct {
	similarFn func(ctx context.Context, id int64, limit int) ([]product.Product, error)
	groupFn   func(ctx context.Context, ids []int64, limit int) ([]product.Product, error)
}

func (m *mockRecommendUC) SimilarByID(ctx context.Context, id int64, limit int) ([]product.Product, error) {
	return m.similarFn(ctx, id, limit)
}

func (m *mockRecommendUC) ForGroupByIDs(ctx context.Context, ids []int64, limit int) ([]product.Product, error) {
	return m.groupFn(ctx, ids, limit)
}

// --- syncUseCase mock ---

type mockSyncUC struct {
	syncFn   func(ctx context.Context, id int64) (string, error)
	removeFn func(ctx context.Context, ids []int64) error
}

func (m *mockSyncUC) Sync(ctx context.Context, id int64) (string, error) {
	return m.syncFn(ctx, id)
}

func (m *mockSyncUC) Remove(ctx context.Context, ids []int64) error {
	return m.removeFn(ctx, ids)
}

// --- healthUseCase mock ---

type mockHealthUC struct {
	report healthuc.Report
}

func (m *mockHealthUC) Check(_ context.Context) healthuc.Report {
	return m.report
}

// --- Embedder mocks ---

type mockEmbedder struct {
	fn func(ctx context.Context, text string) (EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	return m.fn(ctx, text)
}

type mockBatchEmbedder struct {
	mockEmbedder
	batchFn func(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

func (m *mockBatchEmbedder) BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error) {
	return m.batchFn(ctx, texts)
}

func mustProduct(id int64, name string) product.Product {
	p, err := product.New(product.Fields{ID: id, Name: name, Category: "Shoes", Price: 50})
	if err != nil {
		panic(err)
	}
	return p
}
