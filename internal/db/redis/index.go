package redis

import (
	"context"
	"errors"
	"strconv"

	"github.com/kailas-cloud/vecrec/internal/db"
)

// CreateIndex creates an FT index from the given definition.
// An existing index with the same name yields db.ErrIndexExists.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	args, err := createArgs(def)
	if err != nil {
		return err
	}

	cmd := s.b().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "index already exists") {
			return db.ErrIndexExists
		}
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
	return nil
}

// IndexExists probes index existence via FT.INFO.
// Redis 8 answers "Unknown index name", older modules "no such index".
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	cmd := s.b().Arbitrary("FT.INFO").Args(name).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "unknown index name") || isRedisErr(err, "no such index") {
			return false, nil
		}
		return false, &db.Error{Op: db.OpIndexInfo, Err: err}
	}
	return true, nil
}

func createArgs(def *db.IndexDefinition) ([]string, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	args := []string{def.Name, "ON", "HASH"}
	if len(def.Prefixes) > 0 {
		args = append(args, "PREFIX", strconv.Itoa(len(def.Prefixes)))
		args = append(args, def.Prefixes...)
	}
	args = append(args, "SCHEMA")

	for i := range def.Fields {
		fa, err := fieldArgs(&def.Fields[i])
		if err != nil {
			return nil, err
		}
		args = append(args, fa...)
	}
	return args, nil
}

func fieldArgs(f *db.IndexField) ([]string, error) {
	args := []string{f.Name}
	if f.Alias != "" {
		args = append(args, "AS", f.Alias)
	}

	switch f.Type {
	case db.IndexFieldNumeric:
		args = append(args, "NUMERIC")
	case db.IndexFieldTag:
		args = append(args, "TAG")
		if f.Separator != "" {
			args = append(args, "SEPARATOR", f.Separator)
		}
	case db.IndexFieldVector:
		if f.Vector == nil || f.Vector.Dim <= 0 {
			return nil, errors.New("vector DIM must be positive")
		}
		args = append(args, hnswArgs(f.Vector)...)
	default:
		return nil, errors.New("unknown field type")
	}

	if f.Sortable {
		args = append(args, "SORTABLE")
	}
	return args, nil
}

// hnswArgs renders "VECTOR HNSW <n> attr value ...": n counts attribute tokens.
func hnswArgs(v *db.VectorSpec) []string {
	distance := v.Distance
	if distance == "" {
		distance = db.DistanceCosine
	}
	attrs := []string{
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(v.Dim),
		"DISTANCE_METRIC", string(distance),
	}
	if v.M > 0 {
		attrs = append(attrs, "M", strconv.Itoa(v.M))
	}
	if v.EFConstruct > 0 {
		attrs = append(attrs, "EF_CONSTRUCTION", strconv.Itoa(v.EFConstruct))
	}
	return append([]string{"VECTOR", "HNSW", strconv.Itoa(len(attrs))}, attrs...)
}
