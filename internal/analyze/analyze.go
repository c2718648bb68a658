package analyze

import (
	"context"
	"fmt"
	"strings"

	"github.com/figmark/figmark/internal/config"
	"github.com/figmark/figmark/internal/document"
	"github.com/figmark/figmark/internal/prompt"
	"github.com/figmark/figmark/internal/source"
)

// Assembler walks the parsed elements once and produces the ordered
// placement decision list. With inference disabled the output is fully
// deterministic for a given document and configuration.
type Assembler struct {
	rules    config.Rules
	selector source.Selector
	composer *prompt.Composer
}

func New(cfg config.Config, composer *prompt.Composer) *Assembler {
	return &Assembler{
		rules:    cfg.Rules,
		selector: source.NewSelector(cfg.Sources),
		composer: composer,
	}
}

// Assemble produces the placement decisions for one classified document.
// Element indexes in the result are strictly increasing and at least
// min_gap_between_images apart; the list never exceeds
// max_images_per_article.
func (a *Assembler) Assemble(ctx context.Context, doc *document.Document, category document.Category) []document.Decision {
	var decisions []document.Decision

	// Lookahead for smart h2: per element index, the word sum of paragraphs
	// between a heading and the next heading of any level.
	sectionWords := sectionWordSums(doc)

	gap := a.rules.MinGapBetweenImages
	// Sentinel below any real index so the first element stays eligible
	// even with a zero gap.
	lastIndex := -gap - 1
	maxImages := a.rules.MaxImagesPerArticle

	emit := func(idx int, kind document.PlacementKind, el document.Element, reason string) {
		src := a.selector.Select(kind, category)
		decisions = append(decisions, document.Decision{
			ElementIndex: idx,
			Kind:         kind,
			Source:       src,
			Prompt:       a.composer.Compose(ctx, doc, el, kind, src),
			Reason:       reason,
		})
		lastIndex = idx
	}

	// A document without any h1 still gets a cover at its first non-empty
	// element when h1_after is on.
	coverDone := false
	if !doc.HasH1() && a.rules.H1After && maxImages > 0 {
		for i, el := range doc.Elements {
			if strings.TrimSpace(el.Text) == "" {
				continue
			}
			emit(i, document.KindCover, el, "no h1 heading, cover at first content")
			coverDone = true
			break
		}
	}

	for i, el := range doc.Elements {
		if len(decisions) >= maxImages {
			break
		}
		// A zero gap allows adjacent images but never two at one element,
		// which would collide in the reconciler's index keying.
		if i == lastIndex || i-lastIndex < gap {
			continue
		}

		switch {
		case el.IsHeading() && el.Level == 1:
			if !a.rules.H1After || coverDone {
				continue
			}
			emit(i, document.KindCover, el, "cover after h1 heading")
			coverDone = true

		case el.IsHeading() && el.Level == 2:
			if !a.sectionWanted(sectionWords[i]) {
				continue
			}
			kind := a.refineSectionKind(doc, el, i, category)
			emit(i, kind, el, fmt.Sprintf("h2 heading (%s)", kind))

		case el.IsParagraph():
			if el.WordCount < a.rules.LongParagraphThreshold {
				continue
			}
			emit(i, document.KindAtmospheric, el, fmt.Sprintf("long paragraph (%d words)", el.WordCount))
		}
	}

	return decisions
}

func (a *Assembler) sectionWanted(followingWords int) bool {
	switch a.rules.H2After {
	case config.H2Always:
		return true
	case config.H2Smart:
		return followingWords >= a.rules.LongParagraphThreshold
	default:
		return false
	}
}

// refineSectionKind layers the keyword-driven kind mapping on top of the
// base section kind. Spacing and cap handling are unchanged by refinement.
func (a *Assembler) refineSectionKind(doc *document.Document, el document.Element, idx int, category document.Category) document.PlacementKind {
	for _, kw := range a.rules.DataKeywords {
		if strings.Contains(el.Text, kw) {
			return document.KindDiagram
		}
	}
	for _, kw := range a.rules.ConceptKeywords {
		if strings.Contains(el.Text, kw) {
			if category == document.CategoryTechnical && sectionLeadsWithCode(doc, idx) {
				return document.KindCodeConcept
			}
			return document.KindConcept
		}
	}
	return document.KindSection
}

// sectionLeadsWithCode reports whether a code block appears under the
// heading at idx before the next heading.
func sectionLeadsWithCode(doc *document.Document, idx int) bool {
	for i := idx + 1; i < len(doc.Elements); i++ {
		switch doc.Elements[i].Kind {
		case document.KindHeading:
			return false
		case document.KindCodeBlock:
			return true
		}
	}
	return false
}

// sectionWordSums precomputes, for every heading index, the cumulative
// word count of paragraph elements up to the next heading of any level.
// Non-heading indexes hold zero.
func sectionWordSums(doc *document.Document) []int {
	sums := make([]int, len(doc.Elements))
	// Walk backwards so each heading can reuse the running sum until the
	// next heading resets it.
	running := 0
	for i := len(doc.Elements) - 1; i >= 0; i-- {
		el := doc.Elements[i]
		switch {
		case el.IsHeading():
			sums[i] = running
			running = 0
		case el.IsParagraph():
			running += el.WordCount
		}
	}
	return sums
}
