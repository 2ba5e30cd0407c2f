package chi

import (
	"time"

	"github.com/kailas-cloud/vecrec/internal/domain/product"
)

// ErrorCode is the machine-readable code of an error response.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest             ErrorCode = "bad_request"
	CodeValidationFailed       ErrorCode = "validation_failed"
	CodeUnauthorized           ErrorCode = "unauthorized"
	CodeProductNotFound        ErrorCode = "product_not_found"
	CodeEmbeddingQuotaExceeded ErrorCode = "embedding_quota_exceeded"
	CodeEmbeddingProviderError ErrorCode = "embedding_provider_error"
	CodeVectorIndexUnavailable ErrorCode = "vector_index_unavailable"
	CodeInternalError          ErrorCode = "internal_error"
)

// ErrorResponse is the error envelope.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// ProductRequest is the body of PUT /api/v1/products/{id}.
type ProductRequest struct {
	Name        string     `json:"name" validate:"required,max=512"`
	Description string     `json:"description" validate:"max=16384"`
	Category    string     `json:"category" validate:"max=256,excludesall=0x7C"`
	Brand       string     `json:"brand" validate:"max=256"`
	Price       float64    `json:"price" validate:"gte=0"`
	Image       string     `json:"image" validate:"max=2048"`
	Stock       int        `json:"stock" validate:"gte=0"`
	Rating      float64    `json:"rating" validate:"gte=0,lte=5"`
	NumReviews  int        `json:"num_reviews" validate:"gte=0"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
}

// GroupRequest is the body of POST /api/v1/recommendations.
type GroupRequest struct {
	ProductIDs []int64 `json:"product_ids" validate:"required,min=1,dive,gt=0"`
	Limit      int     `json:"limit" validate:"gte=0"`
}

// ProductResponse is the public representation of a catalog entry.
type ProductResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	Brand       string    `json:"brand,omitempty"`
	Price       float64   `json:"price"`
	Image       string    `json:"image,omitempty"`
	Stock       int       `json:"stock"`
	Rating      float64   `json:"rating"`
	NumReviews  int       `json:"num_reviews"`
	CreatedAt   time.Time `json:"created_at"`
	ExternalID  string    `json:"external_id,omitempty"`
}

// ProductListResponse wraps a ranked product list.
type ProductListResponse struct {
	Items []ProductResponse `json:"items"`
	Count int               `json:"count"`
}

// SyncResponse reports the vector index identifier of a synced product.
type SyncResponse struct {
	ID         int64  `json:"id"`
	ExternalID string `json:"external_id"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func productToResponse(p product.Product) ProductResponse {
	return ProductResponse{
		ID:          p.ID(),
		Name:        p.Name(),
		Description: p.Description(),
		Category:    p.Category(),
		Brand:       p.Brand(),
		Price:       p.Price(),
		Image:       p.Image(),
		Stock:       p.Stock(),
		Rating:      p.Rating(),
		NumReviews:  p.NumReviews(),
		CreatedAt:   p.CreatedAt(),
		ExternalID:  p.ExternalID(),
	}
}

func productsToResponse(ps []product.Product) ProductListResponse {
	items := make([]ProductResponse, len(ps))
	for i, p := range ps {
		items[i] = productToResponse(p)
	}
	return ProductListResponse{Items: items, Count: len(items)}
}

// fields maps the request onto product attributes. externalID is carried over
// from the stored product so an upsert does not unlink its vector.
func (r ProductRequest) fields(id int64, existing *product.Product) product.Fields {
	f := product.Fields{
		ID:          id,
		Name:        r.Name,
		Description: r.Description,
		Category:    r.Category,
		Brand:       r.Brand,
		Price:       r.Price,
		Image:       r.Image,
		Stock:       r.Stock,
		Rating:      r.Rating,
		NumReviews:  r.NumReviews,
	}
	if r.CreatedAt != nil {
		f.CreatedAt = r.CreatedAt.UTC()
	}
	if existing != nil {
		if f.CreatedAt.IsZero() {
			f.CreatedAt = existing.CreatedAt()
		}
		f.ExternalID = existing.ExternalID()
	}
	return f
}
