package db

import (
	"strings"
	"testing"
)

func TestIndexBuilder_Simple(t *testing.T) {
	idx := NewIndex("test-idx").
		Prefix("product:").
		Tag("category").
		Numeric("price").
		MustBuild()

	if err := idx.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx.Name != "test-idx" {
		t.Errorf("name = %q, want test-idx", idx.Name)
	}
	if len(idx.Fields) != 2 {
		t.Fatalf("fields count = %d, want 2", len(idx.Fields))
	}
	if idx.Fields[0].Name != "category" || idx.Fields[0].Type != IndexFieldTag {
		t.Errorf("field[0] = %+v, want category TAG", idx.Fields[0])
	}
	if idx.Fields[1].Name != "price" || idx.Fields[1].Type != IndexFieldNumeric {
		t.Errorf("field[1] = %+v, want price NUMERIC", idx.Fields[1])
	}
}

func TestIndexBuilder_SameFieldTwoAliases(t *testing.T) {
	idx := NewIndex("catalog-idx").
		Prefix("product:").
		TagAs("id", "pid").
		NumericSortable("id", "seq").
		MustBuild()

	if len(idx.Fields) != 2 {
		t.Fatalf("fields count = %d, want 2", len(idx.Fields))
	}
	if idx.Fields[0].Alias != "pid" || idx.Fields[0].Type != IndexFieldTag {
		t.Errorf("field[0] = %+v, want id AS pid TAG", idx.Fields[0])
	}
	if idx.Fields[1].Alias != "seq" || !idx.Fields[1].Sortable {
		t.Errorf("field[1] = %+v, want id AS seq NUMERIC SORTABLE", idx.Fields[1])
	}
}

func TestIndexBuilder_Vector(t *testing.T) {
	idx := NewIndex("hnsw-idx").
		Prefix("vec:").
		Tag("category").
		Vector("__vector", "vector", VectorSpec{Dim: 768, M: 32, EFConstruct: 400}).
		MustBuild()

	if len(idx.Fields) != 2 {
		t.Fatalf("fields count = %d, want 2", len(idx.Fields))
	}
	f := idx.Fields[1]
	if f.Type != IndexFieldVector || f.Vector == nil {
		t.Fatalf("field[1] = %+v, want vector field", f)
	}
	if f.Vector.Dim != 768 || f.Vector.M != 32 || f.Vector.EFConstruct != 400 {
		t.Errorf("spec = %+v, want dim 768 M 32 EF 400", *f.Vector)
	}
	if f.Vector.Distance != DistanceCosine {
		t.Errorf("distance = %q, want COSINE default", f.Vector.Distance)
	}
	if f.Key() != "vector" {
		t.Errorf("key = %q, want vector", f.Key())
	}
}

func TestIndexBuilder_TagSeparated(t *testing.T) {
	idx := NewIndex("tag-idx").TagSeparated("category", "|").MustBuild()
	if idx.Fields[0].Separator != "|" {
		t.Errorf("separator = %q, want |", idx.Fields[0].Separator)
	}

	if _, err := NewIndex("tag-idx").TagSeparated("category", "||").Build(); err == nil {
		t.Error("expected error for multi-character separator")
	}
}

func TestIndexBuilder_BuildReturnsCopy(t *testing.T) {
	b := NewIndex("idx").Tag("a")
	first := b.MustBuild()
	second := b.Tag("b").MustBuild()

	if len(first.Fields) != 1 || len(second.Fields) != 2 {
		t.Errorf("fields = %d/%d, want 1/2", len(first.Fields), len(second.Fields))
	}
}

func TestIndexBuilder_MultiplePrefixes(t *testing.T) {
	idx := NewIndex("multi-idx").
		Prefix("a:", "b:", "c:").
		Tag("x").
		MustBuild()

	if len(idx.Prefixes) != 3 {
		t.Errorf("prefix count = %d, want 3", len(idx.Prefixes))
	}
}

func TestIndexBuilder_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		builder func() (*IndexDefinition, error)
		wantErr string
	}{
		{
			name: "empty name",
			builder: func() (*IndexDefinition, error) {
				return NewIndex("").Tag("x").Build()
			},
			wantErr: "index name is required",
		},
		{
			name: "no fields",
			builder: func() (*IndexDefinition, error) {
				return NewIndex("idx").Build()
			},
			wantErr: "at least one field",
		},
		{
			name: "vector without dim",
			builder: func() (*IndexDefinition, error) {
				return NewIndex("idx").Vector("v", "", VectorSpec{M: 16}).Build()
			},
			wantErr: "positive DIM",
		},
		{
			name: "vector spec on tag",
			builder: func() (*IndexDefinition, error) {
				return (&IndexBuilder{def: IndexDefinition{
					Name:   "idx",
					Fields: []IndexField{{Name: "t", Type: IndexFieldTag, Vector: &VectorSpec{Dim: 2}}},
				}}).Build()
			},
			wantErr: "non-vector field",
		},
		{
			name: "invalid characters",
			builder: func() (*IndexDefinition, error) {
				return NewIndex("idx with spaces").Tag("x").Build()
			},
			wantErr: "invalid characters",
		},
		{
			name: "duplicate alias",
			builder: func() (*IndexDefinition, error) {
				return NewIndex("idx").TagAs("id", "pid").NumericSortable("other", "pid").Build()
			},
			wantErr: "duplicate field name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.builder()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("got error %q, want containing %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestIndexDefinition_String(t *testing.T) {
	idx := NewIndex("my-idx").
		Prefix("product:").
		Tag("category").
		NumericSortable("rating", "").
		MustBuild()

	s := idx.String()
	want := "FT.CREATE my-idx ON HASH PREFIX product: SCHEMA category TAG rating NUMERIC SORTABLE"
	if s != want {
		t.Errorf("String() = %q, want %q", s, want)
	}
}

func TestIndexBuilder_DuplicateFields(t *testing.T) {
	idx := &IndexDefinition{
		Name: "dup-idx",
		Fields: []IndexField{
			{Name: "field1", Type: IndexFieldTag},
			{Name: "field1", Type: IndexFieldNumeric},
		},
	}

	if err := idx.Validate(); err == nil {
		t.Fatal("expected error for duplicate fields")
	}
}
