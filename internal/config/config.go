package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the vecrec service configuration.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Database    DatabaseConfig    `yaml:"database"`
	VectorIndex VectorIndexConfig `yaml:"vector_index"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Recommend   RecommendConfig   `yaml:"recommend"`
	Auth        AuthConfig        `yaml:"auth"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds the catalog store connection.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// VectorIndexConfig holds the external vector index settings.
// Empty Addrs share the catalog connection.
type VectorIndexConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Addrs           []string      `yaml:"addrs"`
	Password        string        `yaml:"password"`
	Namespace       string        `yaml:"namespace"`
	Dimensions      int           `yaml:"dimensions"` // 0 = vectorizer dimensions
	HNSWM           int           `yaml:"hnsw_m"`
	HNSWEFConstruct int           `yaml:"hnsw_ef_construction"`
	TimeoutMs       int           `yaml:"timeout_ms"`
	Breaker         BreakerConfig `yaml:"breaker"`
}

// BreakerConfig holds circuit breaker settings for the vector index.
type BreakerConfig struct {
	MaxFailures      uint32 `yaml:"max_failures"`
	OpenTimeoutSec   int    `yaml:"open_timeout_sec"`
	HalfOpenRequests uint32 `yaml:"half_open_requests"`
}

// EmbeddingConfig holds embedding settings.
type EmbeddingConfig struct {
	Providers    map[string]ProviderConfig `yaml:"providers"`
	Vectorizer   VectorizerConfig          `yaml:"vectorizer"`
	Cache        CacheConfig               `yaml:"cache"`
	MaxBatchSize int                       `yaml:"max_batch_size"`
}

// ProviderConfig holds embedding provider settings.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// VectorizerConfig selects the provider and model used to embed products.
type VectorizerConfig struct {
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	Dimensions  int    `yaml:"dimensions"`
	Instruction string `yaml:"instruction"`
}

// CacheConfig holds embedding cache settings.
type CacheConfig struct {
	Enabled  bool `yaml:"enabled"`
	TTLHours int  `yaml:"ttl_hours"` // 0 = no expiry
}

// RecommendConfig holds ranking settings.
type RecommendConfig struct {
	SimilarLimit  int           `yaml:"similar_limit"`
	GroupLimit    int           `yaml:"group_limit"`
	MaxLimit      int           `yaml:"max_limit"`
	MaxGroupSize  int           `yaml:"max_group_size"`
	PoolLimit     int           `yaml:"pool_limit"`
	ThinThreshold int           `yaml:"thin_threshold"`
	Weights       WeightsConfig `yaml:"weights"`
}

// WeightsConfig holds the similarity weights. All zero means the stock weighting.
type WeightsConfig struct {
	Category    float64 `yaml:"category"`
	Brand       float64 `yaml:"brand"`
	Name        float64 `yaml:"name"`
	Description float64 `yaml:"description"`
	Price       float64 `yaml:"price"`
}

func (w WeightsConfig) isZero() bool {
	return w == WeightsConfig{}
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}

	vi := &c.VectorIndex
	if vi.Namespace == "" {
		vi.Namespace = "default"
	}
	if vi.Dimensions <= 0 {
		vi.Dimensions = c.Embedding.Vectorizer.Dimensions
	}
	if vi.HNSWM <= 0 {
		vi.HNSWM = 16
	}
	if vi.HNSWEFConstruct <= 0 {
		vi.HNSWEFConstruct = 200
	}
	if vi.TimeoutMs <= 0 {
		vi.TimeoutMs = 500
	}
	if vi.Breaker.MaxFailures == 0 {
		vi.Breaker.MaxFailures = 5
	}
	if vi.Breaker.OpenTimeoutSec <= 0 {
		vi.Breaker.OpenTimeoutSec = 30
	}
	if vi.Breaker.HalfOpenRequests == 0 {
		vi.Breaker.HalfOpenRequests = 1
	}

	if c.Embedding.MaxBatchSize <= 0 {
		c.Embedding.MaxBatchSize = 256
	}

	rc := &c.Recommend
	if rc.SimilarLimit <= 0 {
		rc.SimilarLimit = 5
	}
	if rc.GroupLimit <= 0 {
		rc.GroupLimit = 10
	}
	if rc.MaxLimit <= 0 {
		rc.MaxLimit = 50
	}
	if rc.MaxGroupSize <= 0 {
		rc.MaxGroupSize = 50
	}
	if rc.PoolLimit <= 0 {
		rc.PoolLimit = 150
	}
	if rc.ThinThreshold <= 0 {
		rc.ThinThreshold = 5
	}
	if rc.Weights.isZero() {
		rc.Weights = WeightsConfig{Category: 3, Brand: 2, Name: 3, Description: 1, Price: 2}
	}
}

// Validate checks the configuration for correctness.
// The weight ordering itself is enforced by the recommend service.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.VectorIndex.Enabled {
		if c.VectorIndex.Dimensions <= 0 {
			return fmt.Errorf("vector_index.dimensions must be positive when the index is enabled")
		}
		if c.Embedding.Vectorizer.Provider == "" {
			return fmt.Errorf("embedding.vectorizer.provider is required when the vector index is enabled")
		}
	}
	if p := c.Embedding.Vectorizer.Provider; p != "" {
		if _, ok := c.Embedding.Providers[p]; !ok {
			return fmt.Errorf("embedding.vectorizer.provider %q is not declared in embedding.providers", p)
		}
	}
	if c.Recommend.GroupLimit > c.Recommend.MaxLimit || c.Recommend.SimilarLimit > c.Recommend.MaxLimit {
		return fmt.Errorf("recommend default limits must not exceed max_limit %d", c.Recommend.MaxLimit)
	}
	if c.Recommend.ThinThreshold > c.Recommend.PoolLimit {
		return fmt.Errorf("recommend.thin_threshold %d exceeds pool_limit %d",
			c.Recommend.ThinThreshold, c.Recommend.PoolLimit)
	}
	return nil
}

// IndexAddrs returns the vector index addresses, falling back to the catalog store.
func (c *Config) IndexAddrs() ([]string, string) {
	if len(c.VectorIndex.Addrs) > 0 {
		return c.VectorIndex.Addrs, c.VectorIndex.Password
	}
	return c.Database.Addrs, c.Database.Password
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
