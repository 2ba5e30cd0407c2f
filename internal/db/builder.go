package db

import "strings"

// IndexBuilder is a fluent builder for FT index definitions.
type IndexBuilder struct {
	def IndexDefinition
}

// NewIndex starts building an FT index definition over hashes.
func NewIndex(name string) *IndexBuilder {
	return &IndexBuilder{def: IndexDefinition{Name: name}}
}

// Prefix adds key prefixes to the index.
func (b *IndexBuilder) Prefix(prefixes ...string) *IndexBuilder {
	b.def.Prefixes = append(b.def.Prefixes, prefixes...)
	return b
}

func (b *IndexBuilder) add(f IndexField) *IndexBuilder {
	b.def.Fields = append(b.def.Fields, f)
	return b
}

// Numeric adds a NUMERIC field.
func (b *IndexBuilder) Numeric(name string) *IndexBuilder {
	return b.add(IndexField{Name: name, Type: IndexFieldNumeric})
}

// NumericSortable adds a SORTABLE NUMERIC field, optionally under an alias.
func (b *IndexBuilder) NumericSortable(name, alias string) *IndexBuilder {
	return b.add(IndexField{Name: name, Alias: alias, Type: IndexFieldNumeric, Sortable: true})
}

// Tag adds a TAG field.
func (b *IndexBuilder) Tag(name string) *IndexBuilder {
	return b.add(IndexField{Name: name, Type: IndexFieldTag})
}

// TagAs adds a TAG field indexed under an alias.
// The same hash field may be indexed twice with different types.
func (b *IndexBuilder) TagAs(name, alias string) *IndexBuilder {
	return b.add(IndexField{Name: name, Alias: alias, Type: IndexFieldTag})
}

// TagSeparated adds a TAG field split on sep instead of ",".
func (b *IndexBuilder) TagSeparated(name, sep string) *IndexBuilder {
	return b.add(IndexField{Name: name, Type: IndexFieldTag, Separator: sep})
}

// Vector adds an HNSW vector field under the given alias.
func (b *IndexBuilder) Vector(name, alias string, spec VectorSpec) *IndexBuilder {
	if spec.Distance == "" {
		spec.Distance = DistanceCosine
	}
	return b.add(IndexField{Name: name, Alias: alias, Type: IndexFieldVector, Vector: &spec})
}

// Build validates and returns the index definition.
func (b *IndexBuilder) Build() (*IndexDefinition, error) {
	if err := b.def.Validate(); err != nil {
		return nil, err
	}
	def := b.def
	return &def, nil
}

// MustBuild calls Build and panics on error. For static schemas only.
func (b *IndexBuilder) MustBuild() *IndexDefinition {
	def, err := b.Build()
	if err != nil {
		panic(err)
	}
	return def
}

// String returns a debug representation resembling the FT.CREATE command.
func (idx *IndexDefinition) String() string {
	parts := []string{"FT.CREATE", idx.Name, "ON", "HASH"}
	if len(idx.Prefixes) > 0 {
		parts = append(parts, "PREFIX")
		parts = append(parts, idx.Prefixes...)
	}
	parts = append(parts, "SCHEMA")
	for i := range idx.Fields {
		f := &idx.Fields[i]
		parts = append(parts, f.Name)
		if f.Alias != "" {
			parts = append(parts, "AS", f.Alias)
		}
		switch f.Type {
		case IndexFieldTag:
			parts = append(parts, "TAG")
		case IndexFieldNumeric:
			parts = append(parts, "NUMERIC")
		case IndexFieldVector:
			parts = append(parts, "VECTOR", "HNSW")
		}
		if f.Sortable {
			parts = append(parts, "SORTABLE")
		}
	}
	return strings.Join(parts, " ")
}
