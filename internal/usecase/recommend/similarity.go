package recommend

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/kailas-cloud/vecrec/internal/domain"
	"github.com/kailas-cloud/vecrec/internal/domain/product"
)

// Weights are the coefficients of the composite similarity score.
type Weights struct {
	Category    float64 `yaml:"category"`
	Brand       float64 `yaml:"brand"`
	Name        float64 `yaml:"name"`
	Description float64 `yaml:"description"`
	Price       float64 `yaml:"price"`
}

// DefaultWeights returns the stock 3/2/3/1/2 weighting.
func DefaultWeights() Weights {
	return Weights{Category: 3, Brand: 2, Name: 3, Description: 1, Price: 2}
}

// Max is the score of a product against itself when every field is set.
func (w Weights) Max() float64 {
	return w.Category + w.Brand + w.Name + w.Description + w.Price
}

// Validate checks the relative ordering:
// category >= name, price >= brand >= description, and nothing negative.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"category": w.Category, "brand": w.Brand, "name": w.Name,
		"description": w.Description, "price": w.Price,
	} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("weight %s must be a non-negative number, got %v: %w", name, v, domain.ErrInvalidInput)
		}
	}
	switch {
	case w.Max() == 0:
		return fmt.Errorf("at least one weight must be positive: %w", domain.ErrInvalidInput)
	case w.Category < w.Name || w.Category < w.Price:
		return fmt.Errorf("category weight must not be below name or price: %w", domain.ErrInvalidInput)
	case w.Name < w.Brand || w.Price < w.Brand:
		return fmt.Errorf("name and price weights must not be below brand: %w", domain.ErrInvalidInput)
	case w.Brand < w.Description:
		return fmt.Errorf("brand weight must not be below description: %w", domain.ErrInvalidInput)
	}
	return nil
}

// Scorer computes the weighted feature similarity between two products.
// It is pure and safe for concurrent use.
type Scorer struct {
	w Weights
}

// NewScorer creates a scorer with the given weights.
func NewScorer(w Weights) Scorer {
	return Scorer{w: w}
}

// Score returns the similarity of candidate to base, always >= 0.
func (s Scorer) Score(base, candidate product.Product) float64 {
	return s.score(newFeatures(base), newFeatures(candidate))
}

func (s Scorer) score(a, b features) float64 {
	var total float64
	if equalLabel(a.category, b.category) {
		total += s.w.Category
	}
	if equalLabel(a.brand, b.brand) {
		total += s.w.Brand
	}
	total += s.w.Name * Jaccard(a.name, b.name)
	total += s.w.Description * Jaccard(a.description, b.description)
	total += s.w.Price * PriceAffinity(a.price, b.price)
	return total
}

// features are the pre-tokenized parts of a product used by the scorer.
type features struct {
	category    string
	brand       string
	name        TokenSet
	description TokenSet
	price       float64
}

func newFeatures(p product.Product) features {
	return features{
		category:    strings.TrimSpace(p.Category()),
		brand:       strings.TrimSpace(p.Brand()),
		name:        Tokenize(p.Name()),
		description: Tokenize(p.Description()),
		price:       p.Price(),
	}
}

// equalLabel compares optional labels; two missing labels do not match.
func equalLabel(a, b string) bool {
	return a != "" && b != "" && strings.EqualFold(a, b)
}

// TokenSet is a set of lower-cased tokens.
type TokenSet map[string]struct{}

// Tokenize lower-cases s and splits it on runs of non-alphanumeric characters.
func Tokenize(s string) TokenSet {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(TokenSet, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// Jaccard returns |a ∩ b| / |a ∪ b|, or 0 when either set is empty.
func Jaccard(a, b TokenSet) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for t := range small {
		if _, ok := large[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// PriceAffinity is 1 - min(|a-b| / max(a, b, 1), 1).
// Prices that are not finite non-negative numbers yield 0.
func PriceAffinity(a, b float64) float64 {
	if !validPrice(a) || !validPrice(b) {
		return 0
	}
	diff := math.Abs(a - b)
	return 1 - math.Min(diff/math.Max(math.Max(a, b), 1), 1)
}

func validPrice(p float64) bool {
	return p >= 0 && !math.IsNaN(p) && !math.IsInf(p, 0)
}
