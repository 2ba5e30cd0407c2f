package chi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecrec/internal/domain"
	"github.com/kailas-cloud/vecrec/internal/domain/product"
	healthuc "github.com/kailas-cloud/vecrec/internal/usecase/health"
)

// --- Mocks ---

type mockCatalog struct {
	findByIDFn func(ctx context.Context, id int64) (product.Product, error)
	upsertFn   func(ctx context.Context, p product.Product) error
	deleteFn   func(ctx context.Context, id int64) error
}

func (m *mockCatalog) FindByID(ctx context.Context, id int64) (product.Product, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return product.Product{}, domain.ErrProductNotFound
}

func (m *mockCatalog) Upsert(ctx context.Context, p product.Product) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, p)
	}
	return nil
}

func (m *mockCatalog) Delete(ctx context.Context, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

type mockRecommender struct {
	similarFn func(ctx context.Context, id int64, limit int) ([]product.Product, error)
	groupFn   func(ctx context.Context, ids []int64, limit int) ([]product.Product, error)
}

func (m *mockRecommender) SimilarByID(ctx context.Context, id int64, limit int) ([]product.Product, error) {
	if m.similarFn != nil {
		return m.similarFn(ctx, id, limit)
	}
	return nil, nil
}

func (m *mockRecommender) ForGroupByIDs(ctx context.Context, ids []int64, limit int) ([]product.Product, error) {
	if m.groupFn != nil {
		return m.groupFn(ctx, ids, limit)
	}
	return nil, nil
}

type mockSyncer struct {
	syncFn   func(ctx context.Context, id int64) (string, error)
	removeFn func(ctx context.Context, ids []int64) error
}

func (m *mockSyncer) Sync(ctx context.Context, id int64) (string, error) {
	if m.syncFn != nil {
		return m.syncFn(ctx, id)
	}
	return "product-" + strconv.FormatInt(id, 10), nil
}

func (m *mockSyncer) Remove(ctx context.Context, ids []int64) error {
	if m.removeFn != nil {
		return m.removeFn(ctx, ids)
	}
	return nil
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(_ context.Context) healthuc.Report { return m.report }

// --- Helpers ---

type deps struct {
	catalog     *mockCatalog
	recommender *mockRecommender
	syncer      *mockSyncer
	health      *mockHealth
}

func newDeps() *deps {
	return &deps{
		catalog:     &mockCatalog{},
		recommender: &mockRecommender{},
		syncer:      &mockSyncer{},
		health: &mockHealth{report: healthuc.Report{
			Status: healthuc.Healthy,
			Checks: map[string]healthuc.CheckResult{healthuc.ComponentCatalog: healthuc.CheckOK},
		}},
	}
}

// handler builds the full router. withSyncer=false models a disabled vector index.
func (d *deps) handler(withSyncer bool, apiKeys ...string) http.Handler {
	var syncer Syncer
	if withSyncer {
		syncer = d.syncer
	}
	srv := NewServer(d.catalog, d.recommender, syncer, d.health, zap.NewNop())
	return NewRouter(srv, RouterConfig{APIKeys: apiKeys})
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func widget(id int64, name string) product.Product {
	return product.Reconstruct(product.Fields{
		ID:        id,
		Name:      name,
		Category:  "A",
		Brand:     "X",
		Price:     10,
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
}
