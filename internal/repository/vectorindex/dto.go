package vectorindex

import (
	"strings"

	"github.com/kailas-cloud/vecrec/internal/db"
	"github.com/kailas-cloud/vecrec/internal/domain"
	"github.com/kailas-cloud/vecrec/internal/domain/vector"
)

const (
	fieldVector      = "__vector"
	aliasVector      = "vector"
	fieldExternalID  = "external_id"
	defaultNamespace = "default"
)

// returnFields are loaded with every KNN hit.
var returnFields = []string{fieldExternalID, vector.MetaProductID, vector.MetaCategory, vector.MetaBrand}

func (r *Repo) keyPrefix() string {
	return domain.KeyPrefix + "vec:" + r.cfg.Namespace + ":"
}

func (r *Repo) itemKey(externalID string) string {
	return r.keyPrefix() + externalID
}

func (r *Repo) indexName() string {
	return r.keyPrefix() + "idx"
}

func (r *Repo) buildIndex() (*db.IndexDefinition, error) {
	return db.NewIndex(r.indexName()).
		Prefix(r.keyPrefix()).
		Tag(vector.MetaProductID).
		Tag(vector.MetaCategory).
		Vector(fieldVector, aliasVector, db.VectorSpec{
			Dim:         r.cfg.Dimensions,
			M:           r.cfg.M,
			EFConstruct: r.cfg.EFConstruction,
		}).
		Build()
}

func toHash(it vector.Item) map[string]string {
	m := make(map[string]string, len(it.Metadata)+2)
	for k, v := range it.Metadata {
		m[k] = v
	}
	m[fieldExternalID] = it.ExternalID
	m[fieldVector] = string(vector.Encode(it.Values))
	return m
}

// toMatch builds a match from a KNN hit. The external id falls back to the key suffix.
func (r *Repo) toMatch(e db.SearchEntry) vector.Match {
	id := e.Fields[fieldExternalID]
	if id == "" {
		id = strings.TrimPrefix(e.Key, r.keyPrefix())
	}
	meta := make(map[string]string, 3)
	for _, k := range []string{vector.MetaProductID, vector.MetaCategory, vector.MetaBrand} {
		if v, ok := e.Fields[k]; ok && v != "" {
			meta[k] = v
		}
	}
	return vector.Match{ExternalID: id, Score: e.Score, Metadata: meta}
}
