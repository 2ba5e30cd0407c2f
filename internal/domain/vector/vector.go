// Package vector holds the value types exchanged with the vector index.
package vector

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kailas-cloud/vecrec/internal/domain"
)

// Metadata keys written alongside every vector.
const (
	MetaProductID = "product_id"
	MetaCategory  = "category"
	MetaBrand     = "brand"
)

const externalIDPrefix = "product-"

// Match is a single nearest-neighbor hit returned by the index.
type Match struct {
	ExternalID string
	Score      float64
	Metadata   map[string]string
}

// Item is a vector with its identifier and metadata, ready for upsert.
type Item struct {
	ExternalID string
	Values     []float32
	Metadata   map[string]string
}

// ExternalIDFor returns the index identifier assigned to a product on sync.
func ExternalIDFor(productID int64) string {
	return externalIDPrefix + strconv.FormatInt(productID, 10)
}

// ProductIDFromMatch resolves the catalog identifier of a match:
// product_id metadata first, then the external id itself.
func ProductIDFromMatch(m Match) (int64, bool) {
	if raw, ok := m.Metadata[MetaProductID]; ok {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
			return id, true
		}
	}
	raw := strings.TrimPrefix(m.ExternalID, externalIDPrefix)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Centroid returns the component-wise mean of equal-dimension vectors.
func Centroid(vectors [][]float32) ([]float32, error) {
	if len(vectors) == 0 {
		return nil, fmt.Errorf("centroid of zero vectors: %w", domain.ErrInvalidInput)
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("centroid of empty vector: %w", domain.ErrInvalidInput)
	}

	sum := make([]float64, dim)
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("vector %d has %d dims, want %d: %w",
				i, len(v), dim, domain.ErrVectorDimensionMismatch)
		}
		for j, x := range v {
			sum[j] += float64(x)
		}
	}

	n := float64(len(vectors))
	out := make([]float32, dim)
	for j := range sum {
		out[j] = float32(sum[j] / n)
	}
	return out, nil
}

// Encode packs a vector as little-endian float32, the layout Redis expects.
func Encode(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// Decode is the inverse of Encode.
func Decode(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}
