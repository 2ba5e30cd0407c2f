// Package product is the catalog entry aggregate read by the recommender.
package product

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/kailas-cloud/vecrec/internal/domain"
)

const (
	// MaxNameLength bounds the product name in bytes.
	MaxNameLength = 512
	// MaxDescriptionSize bounds the description in bytes.
	MaxDescriptionSize = 16384
	// MaxRating is the top of the review scale.
	MaxRating = 5.0
	// CategorySeparator splits multi-valued category tags in the catalog index,
	// so a single category must not contain it.
	CategorySeparator = "|"
)

// Fields is the flat attribute set of a product, used to build and snapshot the aggregate.
type Fields struct {
	ID          int64
	Name        string
	Description string
	Category    string
	Brand       string
	Price       float64
	Image       string
	Stock       int
	Rating      float64
	NumReviews  int
	CreatedAt   time.Time
	ExternalID  string
}

// Product is a catalog entry (immutable value object).
type Product struct {
	f Fields
}

// New validates and creates a Product.
func New(f Fields) (Product, error) {
	f.Name = strings.TrimSpace(f.Name)
	f.Category = strings.TrimSpace(f.Category)
	f.Brand = strings.TrimSpace(f.Brand)

	switch {
	case f.ID <= 0:
		return Product{}, fmt.Errorf("product id must be positive, got %d: %w", f.ID, domain.ErrInvalidInput)
	case f.Name == "":
		return Product{}, fmt.Errorf("product name is required: %w", domain.ErrInvalidInput)
	case len(f.Name) > MaxNameLength:
		return Product{}, fmt.Errorf("product name too long (max %d): %w", MaxNameLength, domain.ErrInvalidInput)
	case strings.Contains(f.Category, CategorySeparator):
		return Product{}, fmt.Errorf("category must not contain %q: %w", CategorySeparator, domain.ErrInvalidInput)
	case len(f.Description) > MaxDescriptionSize:
		return Product{}, fmt.Errorf("description too large (max %d bytes): %w",
			MaxDescriptionSize, domain.ErrInvalidInput)
	case math.IsNaN(f.Price) || math.IsInf(f.Price, 0) || f.Price < 0:
		return Product{}, fmt.Errorf("price must be a non-negative number: %w", domain.ErrInvalidInput)
	case f.Stock < 0:
		return Product{}, fmt.Errorf("stock must be non-negative: %w", domain.ErrInvalidInput)
	case math.IsNaN(f.Rating) || f.Rating < 0 || f.Rating > MaxRating:
		return Product{}, fmt.Errorf("rating must be within [0, %g]: %w", MaxRating, domain.ErrInvalidInput)
	case f.NumReviews < 0:
		return Product{}, fmt.Errorf("review count must be non-negative: %w", domain.ErrInvalidInput)
	}

	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	return Product{f: f}, nil
}

// Reconstruct creates a Product without validation (storage hydration).
func Reconstruct(f Fields) Product {
	return Product{f: f}
}

// ID returns the catalog identifier.
func (p Product) ID() int64 { return p.f.ID }

// Name returns the product name.
func (p Product) Name() string { return p.f.Name }

// Description returns the long description.
func (p Product) Description() string { return p.f.Description }

// Category returns the category, empty when unset.
func (p Product) Category() string { return p.f.Category }

// Brand returns the brand, empty when unset.
func (p Product) Brand() string { return p.f.Brand }

// Price returns the unit price.
func (p Product) Price() float64 { return p.f.Price }

// Image returns the image URL or path.
func (p Product) Image() string { return p.f.Image }

// Stock returns the units in stock.
func (p Product) Stock() int { return p.f.Stock }

// Rating returns the average review rating.
func (p Product) Rating() float64 { return p.f.Rating }

// NumReviews returns the review count.
func (p Product) NumReviews() int { return p.f.NumReviews }

// CreatedAt returns the creation time.
func (p Product) CreatedAt() time.Time { return p.f.CreatedAt }

// ExternalID returns the vector index identifier, empty until synced.
func (p Product) ExternalID() string { return p.f.ExternalID }

// Fields returns a copy of all attributes.
func (p Product) Fields() Fields { return p.f }

// WithExternalID returns a copy carrying the given vector index identifier.
func (p Product) WithExternalID(id string) Product {
	p.f.ExternalID = id
	return p
}

// Apply returns a copy with the patch applied. The patch must be validated first.
func (p Product) Apply(patch Patch) Product {
	if patch.ExternalID != nil {
		p.f.ExternalID = *patch.ExternalID
	}
	if patch.Price != nil {
		p.f.Price = *patch.Price
	}
	if patch.Stock != nil {
		p.f.Stock = *patch.Stock
	}
	if patch.Rating != nil {
		p.f.Rating = *patch.Rating
	}
	if patch.NumReviews != nil {
		p.f.NumReviews = *patch.NumReviews
	}
	return p
}

// EmbeddingText is the text vectorized into the index.
func (p Product) EmbeddingText() string {
	parts := make([]string, 0, 4)
	for _, s := range []string{p.f.Name, p.f.Brand, p.f.Category, strings.TrimSpace(p.f.Description)} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

// IDs returns the identifiers of ps in order.
func IDs(ps []Product) []int64 {
	ids := make([]int64, len(ps))
	for i := range ps {
		ids[i] = ps[i].ID()
	}
	return ids
}
