package db

import (
	"errors"
	"fmt"
)

// DistanceMetric used by KNN queries. Only cosine is needed: product
// embeddings are compared by direction.
type DistanceMetric string

// DistanceCosine is cosine distance (0 identical, 2 opposite).
const DistanceCosine DistanceMetric = "COSINE"

// IndexFieldType enumerates supported FT index field types.
type IndexFieldType int

const (
	// IndexFieldNumeric is a numeric field.
	IndexFieldNumeric IndexFieldType = iota
	// IndexFieldTag is a tag field.
	IndexFieldTag
	// IndexFieldVector is an HNSW vector field.
	IndexFieldVector
)

// VectorSpec holds HNSW parameters of a FLOAT32 vector field.
type VectorSpec struct {
	Dim         int
	Distance    DistanceMetric // empty means cosine
	M           int            // max edges per node, 0 leaves the server default
	EFConstruct int            // build-time candidate list size, 0 leaves the server default
}

// IndexField describes a single field in an FT index schema.
type IndexField struct {
	Name     string
	Alias    string // AS alias in FT.CREATE SCHEMA
	Type     IndexFieldType
	Sortable bool        // SORTABLE, required for SORTBY on large result sets
	Vector   *VectorSpec // set for IndexFieldVector only
	// Separator overrides the TAG separator (default ","). Free-text values
	// such as category names may contain commas.
	Separator string
}

// Key is the name queries refer to the field by.
func (f *IndexField) Key() string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

// IndexDefinition is an FT index over hashes under the given prefixes.
type IndexDefinition struct {
	Name     string
	Prefixes []string
	Fields   []IndexField
}

// Validate checks that the index definition is well-formed.
func (idx *IndexDefinition) Validate() error {
	switch {
	case idx.Name == "":
		return errors.New("index name is required")
	case !IsValidIdentifier(idx.Name):
		return errors.New("index name contains invalid characters")
	case len(idx.Fields) == 0:
		return errors.New("at least one field is required")
	}

	seen := make(map[string]struct{}, len(idx.Fields))
	for i := range idx.Fields {
		f := &idx.Fields[i]
		if f.Name == "" {
			return fmt.Errorf("field name is required at index %d", i)
		}
		key := f.Key()
		if _, dup := seen[key]; dup {
			return fmt.Errorf("duplicate field name: %s", key)
		}
		seen[key] = struct{}{}

		if f.Separator != "" && (f.Type != IndexFieldTag || len(f.Separator) != 1) {
			return fmt.Errorf("separator must be a single character on a TAG field: %s", key)
		}
		if f.Type != IndexFieldVector {
			if f.Vector != nil {
				return fmt.Errorf("vector spec on non-vector field: %s", key)
			}
			continue
		}
		if f.Vector == nil || f.Vector.Dim <= 0 {
			return fmt.Errorf("vector field requires positive DIM: %s", key)
		}
		if f.Sortable {
			return fmt.Errorf("vector field cannot be SORTABLE: %s", key)
		}
	}
	return nil
}

// IsValidIdentifier reports whether s matches [a-zA-Z0-9_:-]+.
func IsValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_' || r == ':' || r == '-':
		default:
			return false
		}
	}
	return true
}
