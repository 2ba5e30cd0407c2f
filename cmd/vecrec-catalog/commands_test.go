package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/vecrec/internal/domain"
	"github.com/kailas-cloud/vecrec/internal/domain/product"
	"github.com/kailas-cloud/vecrec/internal/usecase/vectorsync"
)

type fakeCatalog struct {
	upserted []int64
	deleted  []int64
}

func (f *fakeCatalog) Upsert(_ context.Context, p product.Product) error {
	f.upserted = append(f.upserted, p.ID())
	return nil
}

func (f *fakeCatalog) Delete(_ context.Context, id int64) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeSyncer struct {
	syncFn    func(id int64) (string, error)
	workers   int
	removed   []int64
	removeErr error
}

func (f *fakeSyncer) Sync(_ context.Context, id int64) (string, error) {
	if f.syncFn != nil {
		return f.syncFn(id)
	}
	return "product-1", nil
}

func (f *fakeSyncer) SyncAll(_ context.Context, workers int) (vectorsync.Report, error) {
	f.workers = workers
	return vectorsync.Report{Synced: 7, Failed: 1}, nil
}

func (f *fakeSyncer) Remove(_ context.Context, ids []int64) error {
	f.removed = append(f.removed, ids...)
	return f.removeErr
}

type fakeRecommender struct {
	gotIDs   []int64
	gotLimit int
	err      error
}

func (f *fakeRecommender) SimilarByID(_ context.Context, id int64, limit int) ([]product.Product, error) {
	f.gotIDs, f.gotLimit = []int64{id}, limit
	return f.result()
}

func (f *fakeRecommender) ForGroupByIDs(_ context.Context, ids []int64, limit int) ([]product.Product, error) {
	f.gotIDs, f.gotLimit = ids, limit
	return f.result()
}

func (f *fakeRecommender) result() ([]product.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, _ := product.New(product.Fields{ID: 9, Name: "Socks", Brand: "Woolly", Price: 14})
	return []product.Product{p}, nil
}

func execute(t *testing.T, svc *services, args ...string) (string, error) {
	t.Helper()
	open := func(*cobra.Command) (*services, error) {
		return svc, nil
	}
	cmd := NewRootCmd("test", open)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLoad_UpsertsAndSyncs(t *testing.T) {
	cat := &fakeCatalog{}
	sy := &fakeSyncer{syncFn: func(id int64) (string, error) {
		if id == 2 {
			return "", domain.ErrEmbeddingProviderError
		}
		return "product-x", nil
	}}
	out, err := execute(t, &services{catalog: cat, syncer: sy}, "load", "--file", "testdata/products.yaml", "--sync")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cat.upserted) != 3 {
		t.Errorf("expected 3 upserts, got %v", cat.upserted)
	}

	var res loadResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if res.Loaded != 3 || res.Synced != 2 || len(res.Failed) != 1 || res.Failed[0].ID != 2 {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestLoad_SyncRequiresIndex(t *testing.T) {
	_, err := execute(t, &services{catalog: &fakeCatalog{}}, "load", "--file", "testdata/products.yaml", "--sync")
	if !errors.Is(err, errIndexDisabled) {
		t.Fatalf("expected errIndexDisabled, got %v", err)
	}
}

func TestLoad_RequiresFile(t *testing.T) {
	if _, err := execute(t, &services{}, "load"); err == nil {
		t.Fatal("expected missing --file error")
	}
}

func TestSync_All(t *testing.T) {
	sy := &fakeSyncer{}
	out, err := execute(t, &services{syncer: sy}, "sync", "--workers", "8")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if sy.workers != 8 {
		t.Errorf("workers = %d, want 8", sy.workers)
	}
	if !strings.Contains(out, `"synced": 7`) || !strings.Contains(out, `"elapsed"`) {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestSync_Single(t *testing.T) {
	out, err := execute(t, &services{syncer: &fakeSyncer{}}, "sync", "--id", "1")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if !strings.Contains(out, `"external_id": "product-1"`) {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestSync_Disabled(t *testing.T) {
	_, err := execute(t, &services{}, "sync")
	if !errors.Is(err, errIndexDisabled) {
		t.Fatalf("expected errIndexDisabled, got %v", err)
	}
}

func TestSimilar(t *testing.T) {
	rec := &fakeRecommender{}
	out, err := execute(t, &services{recommender: rec}, "similar", "3", "--limit", "2")
	if err != nil {
		t.Fatalf("similar: %v", err)
	}
	if rec.gotLimit != 2 || len(rec.gotIDs) != 1 || rec.gotIDs[0] != 3 {
		t.Errorf("unexpected call: ids=%v limit=%d", rec.gotIDs, rec.gotLimit)
	}
	var views []productView
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(views) != 1 || views[0].ID != 9 || views[0].Name != "Socks" {
		t.Errorf("unexpected views: %+v", views)
	}
}

func TestSimilar_InvalidID(t *testing.T) {
	_, err := execute(t, &services{recommender: &fakeRecommender{}}, "similar", "abc")
	if err == nil || !strings.Contains(err.Error(), "invalid product id") {
		t.Fatalf("expected invalid id error, got %v", err)
	}
}

func TestGroup_DefaultLimitAndError(t *testing.T) {
	rec := &fakeRecommender{}
	if _, err := execute(t, &services{recommender: rec}, "group", "1", "2"); err != nil {
		t.Fatalf("group: %v", err)
	}
	if rec.gotLimit != 10 || len(rec.gotIDs) != 2 {
		t.Errorf("unexpected call: ids=%v limit=%d", rec.gotIDs, rec.gotLimit)
	}

	rec.err = domain.ErrProductNotFound
	_, err := execute(t, &services{recommender: rec}, "group", "5")
	if !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestPurge(t *testing.T) {
	cat, sy := &fakeCatalog{}, &fakeSyncer{}
	if _, err := execute(t, &services{catalog: cat, syncer: sy}, "purge", "4", "5"); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if len(sy.removed) != 2 || len(cat.deleted) != 2 {
		t.Errorf("removed=%v deleted=%v", sy.removed, cat.deleted)
	}
}

func TestPurge_RemoveFailureKeepsCatalog(t *testing.T) {
	cat := &fakeCatalog{}
	sy := &fakeSyncer{removeErr: domain.ErrVectorIndexUnavailable}
	if _, err := execute(t, &services{catalog: cat, syncer: sy}, "purge", "4"); err == nil {
		t.Fatal("expected error")
	}
	if len(cat.deleted) != 0 {
		t.Errorf("catalog should be untouched, deleted=%v", cat.deleted)
	}
}

func TestPurge_WithoutIndex(t *testing.T) {
	cat := &fakeCatalog{}
	if _, err := execute(t, &services{catalog: cat}, "purge", "4"); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if len(cat.deleted) != 1 {
		t.Errorf("deleted=%v", cat.deleted)
	}
}
