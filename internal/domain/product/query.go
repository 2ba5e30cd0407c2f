package product

import (
	"fmt"
	"math"

	"github.com/kailas-cloud/vecrec/internal/domain"
)

// Order selects the catalog ordering for FindMany.
type Order int

const (
	// OrderDefault is ascending identifier.
	OrderDefault Order = iota
	// OrderPopularity is rating desc, review count desc, creation time desc.
	OrderPopularity
)

func (o Order) String() string {
	if o == OrderPopularity {
		return "popularity"
	}
	return "default"
}

// Query selects catalog entries.
type Query struct {
	ExcludeIDs []int64
	Categories []string // any-of; empty means no category filter
	Order      Order
	Limit      int
	Offset     int
}

// Patch is a partial product update. Nil fields are left untouched.
type Patch struct {
	ExternalID *string
	Price      *float64
	Stock      *int
	Rating     *float64
	NumReviews *int
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.ExternalID == nil && p.Price == nil && p.Stock == nil && p.Rating == nil && p.NumReviews == nil
}

// Validate applies the same bounds as New.
func (p Patch) Validate() error {
	if p.IsEmpty() {
		return fmt.Errorf("patch is empty: %w", domain.ErrInvalidInput)
	}
	if p.Price != nil && (math.IsNaN(*p.Price) || math.IsInf(*p.Price, 0) || *p.Price < 0) {
		return fmt.Errorf("price must be a non-negative number: %w", domain.ErrInvalidInput)
	}
	if p.Stock != nil && *p.Stock < 0 {
		return fmt.Errorf("stock must be non-negative: %w", domain.ErrInvalidInput)
	}
	if p.Rating != nil && (math.IsNaN(*p.Rating) || *p.Rating < 0 || *p.Rating > MaxRating) {
		return fmt.Errorf("rating must be within [0, %g]: %w", MaxRating, domain.ErrInvalidInput)
	}
	if p.NumReviews != nil && *p.NumReviews < 0 {
		return fmt.Errorf("review count must be non-negative: %w", domain.ErrInvalidInput)
	}
	return nil
}
