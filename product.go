package vecrec

import (
	"time"

	"github.com/kailas-cloud/vecrec/internal/domain/product"
	"github.com/kailas-cloud/vecrec/internal/usecase/recommend"
)

// Product is a catalog entry.
type Product struct {
	ID          int64
	Name        string
	Description string
	Category    string
	Brand       string
	Price       float64
	Image       string
	Stock       int
	Rating      float64 // 0..5
	NumReviews  int
	CreatedAt   time.Time // zero means now
	// ExternalID is the vector index identifier, set by Sync.
	ExternalID string
}

// Weights are the attribute similarity weights of the local ranking tier.
type Weights struct {
	Category    float64
	Brand       float64
	Name        float64
	Description float64
	Price       float64
}

func (w Weights) toInternal() recommend.Weights {
	return recommend.Weights{
		Category:    w.Category,
		Brand:       w.Brand,
		Name:        w.Name,
		Description: w.Description,
		Price:       w.Price,
	}
}

func (p Product) toDomain() (product.Product, error) {
	return product.New(product.Fields{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		Brand:       p.Brand,
		Price:       p.Price,
		Image:       p.Image,
		Stock:       p.Stock,
		Rating:      p.Rating,
		NumReviews:  p.NumReviews,
		CreatedAt:   p.CreatedAt,
		ExternalID:  p.ExternalID,
	})
}

func productFromDomain(p product.Product) Product {
	f := p.Fields()
	return Product{
		ID:          f.ID,
		Name:        f.Name,
		Description: f.Description,
		Category:    f.Category,
		Brand:       f.Brand,
		Price:       f.Price,
		Image:       f.Image,
		Stock:       f.Stock,
		Rating:      f.Rating,
		NumReviews:  f.NumReviews,
		CreatedAt:   f.CreatedAt,
		ExternalID:  f.ExternalID,
	}
}

func productsFromDomain(ps []product.Product) []Product {
	out := make([]Product, len(ps))
	for i, p := range ps {
		out[i] = productFromDomain(p)
	}
	return out
}
