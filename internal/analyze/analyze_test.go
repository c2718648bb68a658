package analyze

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/figmark/figmark/internal/config"
	"github.com/figmark/figmark/internal/document"
	"github.com/figmark/figmark/internal/prompt"
)

func newAssembler(cfg config.Config) *Assembler {
	return New(cfg, prompt.New(nil, cfg))
}

func docFromElements(els ...document.Element) *document.Document {
	doc := &document.Document{}
	for i := range els {
		els[i].Position = i
		if els[i].WordCount == 0 {
			els[i].WordCount = document.CountWords(els[i].Text)
		}
		doc.Elements = append(doc.Elements, els[i])
	}
	if h := doc.Headings(0); len(h) > 0 {
		doc.Title = h[0].Text
	}
	return doc
}

func heading(level int, text string) document.Element {
	return document.Element{Kind: document.KindHeading, Level: level, Text: text}
}

func paragraphWords(n int) document.Element {
	return document.Element{
		Kind:      document.KindParagraph,
		Text:      strings.TrimSpace(strings.Repeat("word ", n)),
		WordCount: n,
	}
}

func indexesOf(decisions []document.Decision) []int {
	var out []int
	for _, d := range decisions {
		out = append(out, d.ElementIndex)
	}
	return out
}

func TestAssembleCoverAndLongParagraph(t *testing.T) {
	cfg := config.Default()
	cfg.Rules.MinGapBetweenImages = 1

	doc := docFromElements(
		heading(1, "The Title"),
		paragraphWords(200),
	)

	decisions := newAssembler(cfg).Assemble(context.Background(), doc, document.CategoryNormal)
	if len(decisions) != 2 {
		t.Fatalf("decisions = %d, want 2: %+v", len(decisions), decisions)
	}
	if decisions[0].Kind != document.KindCover || decisions[0].ElementIndex != 0 {
		t.Errorf("first = %s@%d, want cover@0", decisions[0].Kind, decisions[0].ElementIndex)
	}
	if decisions[1].Kind != document.KindAtmospheric || decisions[1].ElementIndex != 1 {
		t.Errorf("second = %s@%d, want atmospheric@1", decisions[1].Kind, decisions[1].ElementIndex)
	}
	for _, d := range decisions {
		if d.Prompt == "" {
			t.Errorf("decision %s@%d has empty prompt", d.Kind, d.ElementIndex)
		}
		if d.Source == "" {
			t.Errorf("decision %s@%d has empty source", d.Kind, d.ElementIndex)
		}
	}
}

func TestAssembleSpacingDropsCloseTrigger(t *testing.T) {
	cfg := config.Default()
	cfg.Rules.MinGapBetweenImages = 3

	// Two long paragraphs 1 element apart: only the first may fire.
	doc := docFromElements(
		paragraphWords(200),
		paragraphWords(200),
		paragraphWords(10),
		paragraphWords(10),
	)
	cfg.Rules.H1After = false // no synthetic cover, isolate the spacing rule

	decisions := newAssembler(cfg).Assemble(context.Background(), doc, document.CategoryNormal)
	if got, want := indexesOf(decisions), []int{0}; !reflect.DeepEqual(got, want) {
		t.Fatalf("decision indexes = %v, want %v", got, want)
	}
}

func TestAssembleSpacingInvariant(t *testing.T) {
	cfg := config.Default()
	doc := docFromElements(
		heading(1, "Title"),
		paragraphWords(200),
		paragraphWords(200),
		paragraphWords(200),
		heading(2, "Section one"),
		paragraphWords(200),
		paragraphWords(200),
		heading(2, "Section two"),
		paragraphWords(200),
	)

	decisions := newAssembler(cfg).Assemble(context.Background(), doc, document.CategoryNormal)
	gap := cfg.Rules.MinGapBetweenImages
	for i := 1; i < len(decisions); i++ {
		if d := decisions[i].ElementIndex - decisions[i-1].ElementIndex; d < gap {
			t.Errorf("gap between %d and %d = %d, want >= %d",
				decisions[i-1].ElementIndex, decisions[i].ElementIndex, d, gap)
		}
	}
}

func TestAssembleCapInvariant(t *testing.T) {
	cfg := config.Default()
	cfg.Rules.MaxImagesPerArticle = 2
	cfg.Rules.MinGapBetweenImages = 1

	var els []document.Element
	els = append(els, heading(1, "Title"))
	for i := 0; i < 10; i++ {
		els = append(els, paragraphWords(200))
	}
	doc := docFromElements(els...)

	decisions := newAssembler(cfg).Assemble(context.Background(), doc, document.CategoryNormal)
	if len(decisions) > 2 {
		t.Fatalf("decisions = %d, want <= 2", len(decisions))
	}
}

func TestAssembleIdempotent(t *testing.T) {
	cfg := config.Default()
	doc := docFromElements(
		heading(1, "Title"),
		paragraphWords(200),
		paragraphWords(10),
		heading(2, "Deployment process"),
		paragraphWords(200),
	)

	a := newAssembler(cfg)
	first := a.Assemble(context.Background(), doc, document.CategoryTechnical)
	second := a.Assemble(context.Background(), doc, document.CategoryTechnical)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("repeated assembly differs:\n%+v\n%+v", first, second)
	}
}

func TestAssembleSmartH2(t *testing.T) {
	cfg := config.Default()
	cfg.Rules.MinGapBetweenImages = 1
	cfg.Rules.H1After = false

	doc := docFromElements(
		heading(2, "Thin section"),
		paragraphWords(20),
		heading(2, "Rich section"),
		paragraphWords(100),
		paragraphWords(100),
	)

	decisions := newAssembler(cfg).Assemble(context.Background(), doc, document.CategoryNormal)
	if got, want := indexesOf(decisions), []int{2}; !reflect.DeepEqual(got, want) {
		// Index 4 may also fire if spacing allows; the thin section must not.
		for _, idx := range got {
			if idx == 0 {
				t.Fatalf("thin section fired: indexes = %v, want %v", got, want)
			}
		}
	}
	if len(decisions) == 0 || decisions[0].ElementIndex != 2 {
		t.Fatalf("decisions = %+v, want section at index 2", decisions)
	}
	if decisions[0].Kind != document.KindSection {
		t.Errorf("kind = %s, want section", decisions[0].Kind)
	}
}

func TestAssembleH2Never(t *testing.T) {
	cfg := config.Default()
	cfg.Rules.H2After = config.H2Never
	cfg.Rules.H1After = false

	doc := docFromElements(
		heading(2, "Section"),
		paragraphWords(300),
		paragraphWords(300),
	)

	decisions := newAssembler(cfg).Assemble(context.Background(), doc, document.CategoryNormal)
	for _, d := range decisions {
		if d.Kind == document.KindSection {
			t.Errorf("section decision emitted at %d with h2_after=never", d.ElementIndex)
		}
	}
}

func TestAssembleSyntheticCover(t *testing.T) {
	cfg := config.Default()
	doc := docFromElements(
		paragraphWords(30),
		paragraphWords(30),
	)

	decisions := newAssembler(cfg).Assemble(context.Background(), doc, document.CategoryNormal)
	if len(decisions) == 0 {
		t.Fatal("no decisions, want synthetic cover")
	}
	if decisions[0].Kind != document.KindCover || decisions[0].ElementIndex != 0 {
		t.Errorf("first = %s@%d, want cover@0", decisions[0].Kind, decisions[0].ElementIndex)
	}
	for _, d := range decisions[1:] {
		if d.Kind == document.KindCover {
			t.Errorf("second cover emitted at %d", d.ElementIndex)
		}
	}
}

func TestAssembleZeroGapOneDecisionPerElement(t *testing.T) {
	cfg := config.Default()
	cfg.Rules.MinGapBetweenImages = 0

	// No h1, so the synthetic cover lands on the long opening paragraph.
	// The main loop must not stack an atmospheric image on the same index.
	doc := docFromElements(
		paragraphWords(200),
		paragraphWords(200),
	)

	decisions := newAssembler(cfg).Assemble(context.Background(), doc, document.CategoryNormal)
	if got := indexesOf(decisions); !reflect.DeepEqual(got, []int{0, 1}) {
		t.Fatalf("decision indexes = %v, want [0 1]: %+v", got, decisions)
	}
	if decisions[0].Kind != document.KindCover {
		t.Errorf("first = %s@0, want cover@0", decisions[0].Kind)
	}
	if decisions[1].Kind != document.KindAtmospheric {
		t.Errorf("second = %s@1, want atmospheric@1", decisions[1].Kind)
	}
}

func TestAssembleSingleCover(t *testing.T) {
	cfg := config.Default()
	cfg.Rules.MinGapBetweenImages = 1
	doc := docFromElements(
		heading(1, "First title"),
		paragraphWords(5),
		heading(1, "Second h1"),
		paragraphWords(5),
	)

	decisions := newAssembler(cfg).Assemble(context.Background(), doc, document.CategoryNormal)
	covers := 0
	for _, d := range decisions {
		if d.Kind == document.KindCover {
			covers++
		}
	}
	if covers != 1 {
		t.Fatalf("covers = %d, want 1 (decisions: %+v)", covers, decisions)
	}
	if len(decisions) > 0 && decisions[0].ElementIndex != 0 {
		t.Errorf("cover at %d, want 0", decisions[0].ElementIndex)
	}
}

func TestAssembleKindRefinement(t *testing.T) {
	cfg := config.Default()
	cfg.Rules.MinGapBetweenImages = 1
	cfg.Rules.H1After = false
	cfg.Rules.H2After = config.H2Always

	tests := []struct {
		name     string
		doc      *document.Document
		category document.Category
		want     document.PlacementKind
	}{
		{
			name: "concept keyword",
			doc: docFromElements(
				heading(2, "How it works: the principle behind consensus"),
				paragraphWords(50),
			),
			category: document.CategoryNormal,
			want:     document.KindConcept,
		},
		{
			name: "data keyword",
			doc: docFromElements(
				heading(2, "Growth statistics by quarter"),
				paragraphWords(50),
			),
			category: document.CategoryNormal,
			want:     document.KindDiagram,
		},
		{
			name: "concept keyword with code under technical doc",
			doc: docFromElements(
				heading(2, "The mechanism in code"),
				document.Element{Kind: document.KindCodeBlock, Text: "func main() {}"},
			),
			category: document.CategoryTechnical,
			want:     document.KindCodeConcept,
		},
		{
			name: "plain section",
			doc: docFromElements(
				heading(2, "Getting started"),
				paragraphWords(50),
			),
			category: document.CategoryNormal,
			want:     document.KindSection,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decisions := newAssembler(cfg).Assemble(context.Background(), tt.doc, tt.category)
			if len(decisions) == 0 {
				t.Fatal("no decisions")
			}
			if decisions[0].Kind != tt.want {
				t.Errorf("kind = %s, want %s", decisions[0].Kind, tt.want)
			}
		})
	}
}

func TestSectionWordSums(t *testing.T) {
	doc := docFromElements(
		heading(2, "A"),
		paragraphWords(40),
		paragraphWords(60),
		heading(2, "B"),
		paragraphWords(10),
	)

	sums := sectionWordSums(doc)
	if sums[0] != 100 {
		t.Errorf("sums[0] = %d, want 100", sums[0])
	}
	if sums[3] != 10 {
		t.Errorf("sums[3] = %d, want 10", sums[3])
	}
}
