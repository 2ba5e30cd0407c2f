package vectorindex

import (
	"context"
	"testing"

	"github.com/kailas-cloud/vecrec/internal/db"
	"github.com/kailas-cloud/vecrec/internal/domain/vector"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	pingFn         func(ctx context.Context) error
	hsetFn         func(ctx context.Context, key string, fields map[string]string) error
	hsetMultiFn    func(ctx context.Context, items []db.HashSetItem) error
	hgetAllFn      func(ctx context.Context, key string) (map[string]string, error)
	hgetAllMultiFn func(ctx context.Context, keys []string) ([]map[string]string, error)
	delFn          func(ctx context.Context, keys ...string) error
	createIndexFn  func(ctx context.Context, def *db.IndexDefinition) error
	searchKNNFn    func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

func (m *mockStore) Ping(ctx context.Context) error {
	if m.pingFn != nil {
		return m.pingFn(ctx)
	}
	return nil
}

func (m *mockStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if m.hsetFn != nil {
		return m.hsetFn(ctx, key, fields)
	}
	return nil
}

func (m *mockStore) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if m.hsetMultiFn != nil {
		return m.hsetMultiFn(ctx, items)
	}
	return nil
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hgetAllFn != nil {
		return m.hgetAllFn(ctx, key)
	}
	return map[string]string{}, nil
}

func (m *mockStore) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if m.hgetAllMultiFn != nil {
		return m.hgetAllMultiFn(ctx, keys)
	}
	return make([]map[string]string, len(keys)), nil
}

func (m *mockStore) Del(ctx context.Context, keys ...string) error {
	if m.delFn != nil {
		return m.delFn(ctx, keys...)
	}
	return nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	r, err := New(ms, Config{Namespace: "products", Dimensions: 3})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r, ms
}

// fakeIndex implements index for breaker tests.
type fakeIndex struct {
	pingFn          func(ctx context.Context) error
	queryByIDFn     func(ctx context.Context, externalID string, k int) ([]vector.Match, error)
	queryByVectorFn func(ctx context.Context, v []float32, k int) ([]vector.Match, error)
	fetchFn         func(ctx context.Context, ids []string) (map[string][]float32, error)
	upsertFn        func(ctx context.Context, items []vector.Item) error
	deleteFn        func(ctx context.Context, ids []string) error
}

func (f *fakeIndex) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

func (f *fakeIndex) QueryByID(ctx context.Context, externalID string, k int) ([]vector.Match, error) {
	if f.queryByIDFn != nil {
		return f.queryByIDFn(ctx, externalID, k)
	}
	return nil, nil
}

func (f *fakeIndex) QueryByVector(ctx context.Context, v []float32, k int) ([]vector.Match, error) {
	if f.queryByVectorFn != nil {
		return f.queryByVectorFn(ctx, v, k)
	}
	return nil, nil
}

func (f *fakeIndex) FetchVectors(ctx context.Context, ids []string) (map[string][]float32, error) {
	if f.fetchFn != nil {
		return f.fetchFn(ctx, ids)
	}
	return map[string][]float32{}, nil
}

func (f *fakeIndex) Upsert(ctx context.Context, items []vector.Item) error {
	if f.upsertFn != nil {
		return f.upsertFn(ctx, items)
	}
	return nil
}

func (f *fakeIndex) Delete(ctx context.Context, ids []string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, ids)
	}
	return nil
}
