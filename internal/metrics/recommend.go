package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Recommendation and vector index Prometheus metrics.
var (
	RecommendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommend_requests_total",
			Help:      "Recommendation requests by kind and the tier that served them",
		},
		[]string{"kind", "tier"}, // kind: similar/group; tier: vector/local/backstop/self/error
	)

	RecommendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recommend_duration_seconds",
			Help:      "Recommendation latency in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"kind"},
	)

	RecommendTierFallthroughTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommend_tier_fallthrough_total",
			Help:      "Tiers that produced nothing and passed the request down the cascade",
		},
		[]string{"kind", "tier"},
	)

	VectorIndexErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vector_index_errors_total",
			Help:      "Failed vector index calls by operation",
		},
		[]string{"op"},
	)

	VectorIndexBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "vector_index_breaker_state",
			Help:      "Circuit breaker state: 0 closed, 1 half-open, 2 open",
		},
		[]string{"name"},
	)

	SyncProductsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_products_total",
			Help:      "Products pushed into the vector index",
		},
		[]string{"result"}, // "ok" / "error"
	)
)

var recOnce sync.Once

// RegisterRecommendMetrics registers recommendation, vector index and sync metrics.
func RegisterRecommendMetrics() {
	recOnce.Do(func() {
		prometheus.MustRegister(
			RecommendRequestsTotal,
			RecommendDuration,
			RecommendTierFallthroughTotal,
			VectorIndexErrorsTotal,
			VectorIndexBreakerState,
			SyncProductsTotal,
		)
	})
}
