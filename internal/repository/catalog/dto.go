package catalog

import (
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/vecrec/internal/db"
	"github.com/kailas-cloud/vecrec/internal/domain"
	"github.com/kailas-cloud/vecrec/internal/domain/product"
)

// Hash field names.
const (
	fieldID          = "id"
	fieldName        = "name"
	fieldDescription = "description"
	fieldCategory    = "category"
	fieldBrand       = "brand"
	fieldPrice       = "price"
	fieldImage       = "image"
	fieldStock       = "stock"
	fieldRating      = "rating"
	fieldNumReviews  = "num_reviews"
	fieldCreatedAt   = "created_at" // unix millis
	fieldExternalID  = "external_id"

	// id is indexed twice: as TAG for exclusion and as sortable NUMERIC.
	aliasPID = "pid"
	fieldSeq = "seq"
)

func productKey(id int64) string {
	return fmt.Sprintf("%sproduct:%d", domain.KeyPrefix, id)
}

func keyPrefix() string {
	return domain.KeyPrefix + "product:"
}

func indexName() string {
	return domain.KeyPrefix + "product:idx"
}

func buildIndex() *db.IndexDefinition {
	return db.NewIndex(indexName()).
		Prefix(keyPrefix()).
		TagAs(fieldID, aliasPID).
		NumericSortable(fieldID, fieldSeq).
		TagSeparated(fieldCategory, product.CategorySeparator).
		NumericSortable(fieldRating, "").
		NumericSortable(fieldNumReviews, "").
		NumericSortable(fieldCreatedAt, "").
		MustBuild()
}

func toHash(p product.Product) map[string]string {
	return map[string]string{
		fieldID:          strconv.FormatInt(p.ID(), 10),
		fieldName:        p.Name(),
		fieldDescription: p.Description(),
		fieldCategory:    p.Category(),
		fieldBrand:       p.Brand(),
		fieldPrice:       strconv.FormatFloat(p.Price(), 'f', -1, 64),
		fieldImage:       p.Image(),
		fieldStock:       strconv.Itoa(p.Stock()),
		fieldRating:      strconv.FormatFloat(p.Rating(), 'f', -1, 64),
		fieldNumReviews:  strconv.Itoa(p.NumReviews()),
		fieldCreatedAt:   strconv.FormatInt(p.CreatedAt().UnixMilli(), 10),
		fieldExternalID:  p.ExternalID(),
	}
}

func patchHash(patch product.Patch) map[string]string {
	m := make(map[string]string, 5)
	if patch.ExternalID != nil {
		m[fieldExternalID] = *patch.ExternalID
	}
	if patch.Price != nil {
		m[fieldPrice] = strconv.FormatFloat(*patch.Price, 'f', -1, 64)
	}
	if patch.Stock != nil {
		m[fieldStock] = strconv.Itoa(*patch.Stock)
	}
	if patch.Rating != nil {
		m[fieldRating] = strconv.FormatFloat(*patch.Rating, 'f', -1, 64)
	}
	if patch.NumReviews != nil {
		m[fieldNumReviews] = strconv.Itoa(*patch.NumReviews)
	}
	return m
}

// fromHash hydrates a product. knownID is used when the hash lacks an id field (0 = unknown).
// Malformed numeric attributes degrade to zero; only the id is mandatory.
func fromHash(knownID int64, m map[string]string) (product.Product, error) {
	id := knownID
	if raw, ok := m[fieldID]; ok {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return product.Product{}, fmt.Errorf("parse id %q: %w", raw, err)
		}
		id = parsed
	}
	if id <= 0 {
		return product.Product{}, fmt.Errorf("missing product id")
	}

	f := product.Fields{
		ID:          id,
		Name:        m[fieldName],
		Description: m[fieldDescription],
		Category:    m[fieldCategory],
		Brand:       m[fieldBrand],
		Image:       m[fieldImage],
		ExternalID:  m[fieldExternalID],
	}
	f.Price, _ = strconv.ParseFloat(m[fieldPrice], 64)
	f.Stock, _ = strconv.Atoi(m[fieldStock])
	f.Rating, _ = strconv.ParseFloat(m[fieldRating], 64)
	f.NumReviews, _ = strconv.Atoi(m[fieldNumReviews])
	if ms, err := strconv.ParseInt(m[fieldCreatedAt], 10, 64); err == nil {
		f.CreatedAt = time.UnixMilli(ms).UTC()
	}
	return product.Reconstruct(f), nil
}
