package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecrec/internal/domain"
	"github.com/kailas-cloud/vecrec/internal/domain/product"
	logpkg "github.com/kailas-cloud/vecrec/internal/logger"
)

// maxBodyBytes bounds request bodies (descriptions are capped at 16 KiB).
const maxBodyBytes = 64 << 10

// GetProduct handles GET /api/v1/products/{id}.
func (s *Server) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	p, err := s.catalog.FindByID(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, productToResponse(p))
}

// UpsertProduct handles PUT /api/v1/products/{id}.
// With the vector index enabled the product is re-embedded; a failed sync is
// logged and left to the lazy resync on the next recommendation.
func (s *Server) UpsertProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	var req ProductRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	existing, err := s.catalog.FindByID(r.Context(), id)
	created := errors.Is(err, domain.ErrProductNotFound)
	if err != nil && !created {
		s.handleDomainError(w, r, err)
		return
	}
	var prev *product.Product
	if !created {
		prev = &existing
	}

	p, err := product.New(req.fields(id, prev))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if err := s.catalog.Upsert(r.Context(), p); err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	if s.syncer != nil {
		if ext, err := s.syncer.Sync(r.Context(), id); err != nil {
			s.requestLogger(r).Warn("sync after upsert failed",
				zap.Int64("product_id", id), zap.Error(err))
		} else {
			p = p.WithExternalID(ext)
		}
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		w.Header().Set("Location", fmt.Sprintf("/api/v1/products/%d", id))
	}
	writeJSON(w, status, productToResponse(p))
}

// DeleteProduct handles DELETE /api/v1/products/{id}.
// The vector goes first so a failure leaves the product visible and retryable.
func (s *Server) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	if s.syncer != nil {
		if err := s.syncer.Remove(r.Context(), []int64{id}); err != nil {
			if !errors.Is(err, domain.ErrVectorIndexUnavailable) {
				s.handleDomainError(w, r, err)
				return
			}
			s.requestLogger(r).Warn("vector not removed, index unavailable",
				zap.Int64("product_id", id), zap.Error(err))
		}
	}

	if err := s.catalog.Delete(r.Context(), id); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RecommendSimilar handles GET /api/v1/products/{id}/similar.
func (s *Server) RecommendSimilar(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	var limit *int
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &limit); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid format for parameter limit")
		return
	}

	ps, err := s.recommender.SimilarByID(r.Context(), id, derefInt(limit))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, productsToResponse(ps))
}

// RecommendForGroup handles POST /api/v1/recommendations.
func (s *Server) RecommendForGroup(w http.ResponseWriter, r *http.Request) {
	var req GroupRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	ps, err := s.recommender.ForGroupByIDs(r.Context(), req.ProductIDs, req.Limit)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, productsToResponse(ps))
}

// SyncProduct handles POST /api/v1/products/{id}/sync.
func (s *Server) SyncProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if s.syncer == nil {
		s.handleDomainError(w, r, fmt.Errorf("sync: %w", domain.ErrVectorIndexUnavailable))
		return
	}

	ext, err := s.syncer.Sync(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SyncResponse{ID: id, ExternalID: ext})
}

// UnsyncProduct handles DELETE /api/v1/products/{id}/vector.
func (s *Server) UnsyncProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if s.syncer == nil {
		s.handleDomainError(w, r, fmt.Errorf("unsync: %w", domain.ErrVectorIndexUnavailable))
		return
	}

	if err := s.syncer.Remove(r.Context(), []int64{id}); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// pathID binds the {id} path parameter and rejects non-positive ids.
func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	var id int64
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid format for parameter id")
		return 0, false
	}
	if id <= 0 {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "id must be a positive integer")
		return 0, false
	}
	return id, true
}

// decodeBody decodes and validates a JSON body, writing the 400 itself on failure.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	if msg := validateStruct(dst); msg != "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, msg)
		return false
	}
	return true
}

func (s *Server) requestLogger(r *http.Request) *zap.Logger {
	return logpkg.FromContextOr(r.Context(), s.logger)
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
