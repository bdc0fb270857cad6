package db

import (
	"strings"
	"testing"
)

func TestIndexBuilder_ChunkSchema(t *testing.T) {
	idx, err := NewIndex("syllabus:chunks:idx").
		Prefix("syllabus:chunk:").
		Text("content", 1).
		TagWithOpts("topic_path", ",", false).
		TagWithOpts("topic_lineage", ",", false).
		Tag("subject").
		VectorHNSW("vector", 1024, DistanceCosine, 16, 200).
		Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if idx.Name != "syllabus:chunks:idx" {
		t.Errorf("name = %q", idx.Name)
	}
	if len(idx.Prefixes) != 1 || idx.Prefixes[0] != "syllabus:chunk:" {
		t.Errorf("prefixes = %v", idx.Prefixes)
	}
	if len(idx.Fields) != 5 {
		t.Fatalf("fields count = %d, want 5", len(idx.Fields))
	}
	if idx.Fields[0].Type != IndexFieldText || idx.Fields[0].TextWeight != 1 {
		t.Errorf("field[0] = %+v, want TEXT weight 1", idx.Fields[0])
	}
	if f := idx.Fields[2]; f.Type != IndexFieldTag || f.TagSeparator != "," {
		t.Errorf("field[2] = %+v, want TAG separator ','", f)
	}
	f := idx.Fields[4]
	if f.Type != IndexFieldVector || f.VectorDim != 1024 || f.VectorDistance != DistanceCosine {
		t.Errorf("vector field = %+v", f)
	}
	if f.VectorM != 16 || f.VectorEFConstruct != 200 {
		t.Errorf("HNSW params = %d/%d", f.VectorM, f.VectorEFConstruct)
	}
}

func TestIndexBuilder_BuildReturnsCopy(t *testing.T) {
	b := NewIndex("idx").Tag("a")
	first, err := b.Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b.Tag("b")
	if len(first.Fields) != 1 {
		t.Errorf("built definition changed after builder reuse: %d fields", len(first.Fields))
	}
}

func TestIndexBuilder_Validation(t *testing.T) {
	tests := []struct {
		name    string
		builder *IndexBuilder
		wantMsg string
	}{
		{"empty name", NewIndex("").Tag("a"), "name is required"},
		{"bad name", NewIndex("bad name!").Tag("a"), "invalid characters"},
		{"no fields", NewIndex("idx"), "at least one field"},
		{"duplicate", NewIndex("idx").Tag("a").Numeric("a"), "duplicate"},
		{"zero dim", NewIndex("idx").VectorHNSW("v", 0, DistanceCosine, 0, 0), "positive DIM"},
		{"negative weight", NewIndex("idx").Text("t", -1), "weight"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.builder.Build()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want containing %q", err, tt.wantMsg)
			}
		})
	}
}

func TestIsValidIdentifier(t *testing.T) {
	valid := []string{"idx", "syllabus:chunks:idx", "a-b_c", "X1"}
	for _, s := range valid {
		if !IsValidIdentifier(s) {
			t.Errorf("IsValidIdentifier(%q) = false", s)
		}
	}
	invalid := []string{"", "a b", "a.b", "a/b"}
	for _, s := range invalid {
		if IsValidIdentifier(s) {
			t.Errorf("IsValidIdentifier(%q) = true", s)
		}
	}
}

func TestIndexDefinition_String(t *testing.T) {
	idx, _ := NewIndex("idx").Prefix("p:").Text("content", 0).VectorHNSW("vector", 4, DistanceCosine, 0, 0).Build()
	got := idx.String()
	want := "FT.CREATE idx ON HASH PREFIX 1 p: SCHEMA content TEXT vector VECTOR HNSW DIM 4"
	if got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
