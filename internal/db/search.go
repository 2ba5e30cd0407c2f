package db

import "github.com/kailas-cloud/vecrec/internal/domain/search/filter"

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName     string
	Filters       filter.Expression
	Vector        []float32
	K             int
	ReturnFields  []string
	IncludeVector bool
}

// ListQuery is the input for a filtered, optionally sorted scan of an index.
type ListQuery struct {
	IndexName    string
	Filters      filter.Expression
	SortBy       string
	SortDesc     bool
	Offset       int
	Limit        int
	ReturnFields []string // empty = all hash fields
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
