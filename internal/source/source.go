package source

import (
	"github.com/figmark/figmark/internal/config"
	"github.com/figmark/figmark/internal/document"
)

// Selector maps (placement kind, document category) to a source
// identifier. Pure and total: every combination yields a source.
type Selector struct {
	ai      string
	diagram string
	stock   string
}

func NewSelector(cfg config.Sources) Selector {
	return Selector{
		ai:      cfg.AI,
		diagram: cfg.Diagram,
		stock:   cfg.Stock,
	}
}

// Select picks the primary source for one placement. Fallback traversal
// on production failure is the producer's job, driven by the chain table.
func (s Selector) Select(kind document.PlacementKind, category document.Category) string {
	switch {
	case kind == document.KindCover:
		return s.ai
	case kind == document.KindDiagram || kind == document.KindCodeConcept:
		return s.diagram
	case category == document.CategoryTechnical &&
		(kind == document.KindSection || kind == document.KindConcept):
		return s.diagram
	default:
		return s.stock
	}
}

// Chain returns the full attempt order for a primary source: the source
// itself followed by its configured alternates. Cycles are broken by
// skipping sources already in the chain.
func Chain(primary string, fallback map[string][]string) []string {
	chain := []string{primary}
	seen := map[string]bool{primary: true}

	for i := 0; i < len(chain); i++ {
		for _, alt := range fallback[chain[i]] {
			if seen[alt] {
				continue
			}
			seen[alt] = true
			chain = append(chain, alt)
		}
	}
	return chain
}
