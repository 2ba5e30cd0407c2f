package config

import (
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := Config{
		HTTP:     HTTPConfig{Port: 8080},
		Database: DatabaseConfig{Addrs: []string{"localhost:6379"}},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingDatabaseAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Addrs = nil

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing database addrs")
	}
}

func TestValidate_VectorIndex(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "disabled needs nothing",
			mutate: func(_ *Config) {},
		},
		{
			name: "enabled without dimensions",
			mutate: func(c *Config) {
				c.VectorIndex.Enabled = true
				c.Embedding.Vectorizer.Provider = "nebius"
				c.Embedding.Providers = map[string]ProviderConfig{"nebius": {}}
			},
			wantErr: "vector_index.dimensions",
		},
		{
			name: "enabled without provider",
			mutate: func(c *Config) {
				c.VectorIndex.Enabled = true
				c.VectorIndex.Dimensions = 1024
			},
			wantErr: "embedding.vectorizer.provider is required",
		},
		{
			name: "undeclared provider",
			mutate: func(c *Config) {
				c.Embedding.Vectorizer.Provider = "nebius"
			},
			wantErr: `"nebius" is not declared`,
		},
		{
			name: "enabled and complete",
			mutate: func(c *Config) {
				c.VectorIndex.Enabled = true
				c.VectorIndex.Dimensions = 1024
				c.Embedding.Vectorizer.Provider = "nebius"
				c.Embedding.Providers = map[string]ProviderConfig{"nebius": {APIKey: "k"}}
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestValidate_RecommendLimits(t *testing.T) {
	cfg := validConfig()
	cfg.Recommend.MaxLimit = 3

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when default limit exceeds max_limit")
	}

	cfg = validConfig()
	cfg.Recommend.ThinThreshold = 200
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when thin_threshold exceeds pool_limit")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{Embedding: EmbeddingConfig{Vectorizer: VectorizerConfig{Dimensions: 768}}}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.Database.ReadinessTimeout != 10 {
		t.Errorf("expected ReadinessTimeout=10, got %d", cfg.Database.ReadinessTimeout)
	}
	if cfg.VectorIndex.Namespace != "default" {
		t.Errorf("expected namespace 'default', got %q", cfg.VectorIndex.Namespace)
	}
	if cfg.VectorIndex.Dimensions != 768 {
		t.Errorf("expected index dimensions from vectorizer, got %d", cfg.VectorIndex.Dimensions)
	}
	if cfg.VectorIndex.HNSWM != 16 || cfg.VectorIndex.HNSWEFConstruct != 200 {
		t.Errorf("unexpected HNSW defaults: m=%d ef=%d", cfg.VectorIndex.HNSWM, cfg.VectorIndex.HNSWEFConstruct)
	}
	if cfg.VectorIndex.Breaker.MaxFailures != 5 {
		t.Errorf("expected MaxFailures=5, got %d", cfg.VectorIndex.Breaker.MaxFailures)
	}
	if cfg.Recommend.SimilarLimit != 5 || cfg.Recommend.GroupLimit != 10 {
		t.Errorf("unexpected limits: %d/%d", cfg.Recommend.SimilarLimit, cfg.Recommend.GroupLimit)
	}
	if cfg.Recommend.PoolLimit != 150 || cfg.Recommend.ThinThreshold != 5 {
		t.Errorf("unexpected pool: %d/%d", cfg.Recommend.PoolLimit, cfg.Recommend.ThinThreshold)
	}
	want := WeightsConfig{Category: 3, Brand: 2, Name: 3, Description: 1, Price: 2}
	if cfg.Recommend.Weights != want {
		t.Errorf("weights = %+v, want %+v", cfg.Recommend.Weights, want)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:        HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		VectorIndex: VectorIndexConfig{Namespace: "shop", Dimensions: 256, HNSWM: 32},
		Recommend: RecommendConfig{
			PoolLimit: 300,
			Weights:   WeightsConfig{Category: 4, Name: 3, Price: 3, Brand: 1},
		},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.WriteTimeoutSec != 60 {
		t.Errorf("expected WriteTimeoutSec=60, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.VectorIndex.Namespace != "shop" || cfg.VectorIndex.Dimensions != 256 || cfg.VectorIndex.HNSWM != 32 {
		t.Errorf("vector index overridden: %+v", cfg.VectorIndex)
	}
	if cfg.Recommend.PoolLimit != 300 {
		t.Errorf("expected PoolLimit=300, got %d", cfg.Recommend.PoolLimit)
	}
	if cfg.Recommend.Weights.Category != 4 || cfg.Recommend.Weights.Description != 0 {
		t.Errorf("partial weights must be kept as is, got %+v", cfg.Recommend.Weights)
	}
}

func TestIndexAddrs_FallsBackToDatabase(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Password = "secret"

	addrs, pass := cfg.IndexAddrs()
	if len(addrs) != 1 || addrs[0] != "localhost:6379" || pass != "secret" {
		t.Errorf("got %v/%q, want database connection", addrs, pass)
	}

	cfg.VectorIndex.Addrs = []string{"vec:6379"}
	cfg.VectorIndex.Password = "other"
	addrs, pass = cfg.IndexAddrs()
	if addrs[0] != "vec:6379" || pass != "other" {
		t.Errorf("got %v/%q, want dedicated index connection", addrs, pass)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("VECREC_TEST_KEY", "abc")

	got := string(expandEnvVars([]byte("a: ${VECREC_TEST_KEY}\nb: ${VECREC_TEST_MISSING:-fallback}\nc: ${VECREC_TEST_MISSING}")))
	want := "a: abc\nb: fallback\nc: "
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestLoad_Local(t *testing.T) {
	t.Setenv("VECREC_VECTOR_INDEX", "false")

	cfg, err := Load("local")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.HTTP.Port)
	}
	if cfg.Recommend.Weights.Category != 3 {
		t.Errorf("expected stock weights, got %+v", cfg.Recommend.Weights)
	}
}
