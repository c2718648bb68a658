package source

import (
	"reflect"
	"testing"

	"github.com/figmark/figmark/internal/config"
	"github.com/figmark/figmark/internal/document"
)

func TestSelectPolicy(t *testing.T) {
	sel := NewSelector(config.Default().Sources)

	tests := []struct {
		kind     document.PlacementKind
		category document.Category
		want     string
	}{
		{document.KindCover, document.CategoryTechnical, "ai"},
		{document.KindCover, document.CategoryNormal, "ai"},
		{document.KindSection, document.CategoryTechnical, "mermaid"},
		{document.KindConcept, document.CategoryTechnical, "mermaid"},
		{document.KindSection, document.CategoryNormal, "unsplash"},
		{document.KindConcept, document.CategoryNormal, "unsplash"},
		{document.KindAtmospheric, document.CategoryTechnical, "unsplash"},
		{document.KindAtmospheric, document.CategoryNormal, "unsplash"},
		{document.KindDiagram, document.CategoryTechnical, "mermaid"},
		{document.KindDiagram, document.CategoryNormal, "mermaid"},
		{document.KindCodeConcept, document.CategoryTechnical, "mermaid"},
		{document.KindCodeConcept, document.CategoryNormal, "mermaid"},
	}
	for _, tt := range tests {
		if got := sel.Select(tt.kind, tt.category); got != tt.want {
			t.Errorf("Select(%s, %s) = %q, want %q", tt.kind, tt.category, got, tt.want)
		}
	}
}

func TestSelectTotality(t *testing.T) {
	sel := NewSelector(config.Default().Sources)
	for _, kind := range document.PlacementKinds {
		for _, category := range []document.Category{document.CategoryTechnical, document.CategoryNormal} {
			if got := sel.Select(kind, category); got == "" {
				t.Errorf("Select(%s, %s) returned empty source", kind, category)
			}
		}
	}
}

func TestChain(t *testing.T) {
	fallback := config.Default().Sources.Fallback

	got := Chain("unsplash", fallback)
	want := []string{"unsplash", "pexels", "ai"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Chain(unsplash) = %v, want %v", got, want)
	}

	got = Chain("ai", fallback)
	want = []string{"ai"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Chain(ai) = %v, want %v", got, want)
	}
}

func TestChainBreaksCycles(t *testing.T) {
	fallback := map[string][]string{
		"a": {"b"},
		"b": {"a", "c"},
	}
	got := Chain("a", fallback)
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Chain(a) = %v, want %v", got, want)
	}
}
