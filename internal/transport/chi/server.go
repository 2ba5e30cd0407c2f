// Package chi serves the recommendation REST API.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecrec/internal/domain"
	"github.com/kailas-cloud/vecrec/internal/domain/product"
	"github.com/kailas-cloud/vecrec/internal/metrics"
	healthuc "github.com/kailas-cloud/vecrec/internal/usecase/health"
)

// Catalog is the product store as seen by the API.
type Catalog interface {
	FindByID(ctx context.Context, id int64) (product.Product, error)
	Upsert(ctx context.Context, p product.Product) error
	Delete(ctx context.Context, id int64) error
}

// Recommender ranks products.
type Recommender interface {
	SimilarByID(ctx context.Context, id int64, limit int) ([]product.Product, error)
	ForGroupByIDs(ctx context.Context, ids []int64, limit int) ([]product.Product, error)
}

// Syncer writes products into the vector index.
type Syncer interface {
	Sync(ctx context.Context, id int64) (string, error)
	Remove(ctx context.Context, ids []int64) error
}

// HealthChecker reports dependency health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the HTTP handlers.
type Server struct {
	catalog       Catalog
	recommender   Recommender
	syncer        Syncer
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. syncer is nil when the vector index is disabled.
func NewServer(
	catalog Catalog,
	recommender Recommender,
	syncer Syncer,
	health HealthChecker,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		catalog:     catalog,
		recommender: recommender,
		syncer:      syncer,
		health:      health,
		logger:      logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrVectorDimensionMismatch, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrProductNotFound, http.StatusNotFound, CodeProductNotFound),
		sentinelHandler(domain.ErrEmbeddingQuotaExceeded,
			http.StatusPaymentRequired, CodeEmbeddingQuotaExceeded),
		sentinelHandler(domain.ErrEmbeddingProviderError,
			http.StatusBadGateway, CodeEmbeddingProviderError),
		sentinelHandler(domain.ErrVectorIndexUnavailable,
			http.StatusServiceUnavailable, CodeVectorIndexUnavailable),
	}
	return s
}

// RouterConfig holds router-level settings.
type RouterConfig struct {
	APIKeys []string
}

// NewRouter mounts the API with its middleware stack.
func NewRouter(s *Server, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(JSONRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(WideEventMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(cfg.APIKeys))
	r.Use(metrics.Middleware())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeBadRequest, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})

	r.Get("/health", s.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/recommendations", s.RecommendForGroup)
		r.Get("/products/{id}", s.GetProduct)
		r.Put("/products/{id}", s.UpsertProduct)
		r.Delete("/products/{id}", s.DeleteProduct)
		r.Get("/products/{id}/similar", s.RecommendSimilar)
		r.Post("/products/{id}/sync", s.SyncProduct)
		r.Delete("/products/{id}/vector", s.UnsyncProduct)
	})
	return r
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidInput,
		domain.ErrVectorDimensionMismatch,
		domain.ErrProductNotFound,
		domain.ErrEmbeddingQuotaExceeded,
		domain.ErrEmbeddingProviderError,
		domain.ErrVectorIndexUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			// input errors carry the offending value, which is the caller's own
			if s == domain.ErrInvalidInput || s == domain.ErrProductNotFound {
				return err.Error()
			}
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	logger := s.requestLogger(r)
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			logger.Warn("domain error", zap.Error(err))
			return
		}
	}
	logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
