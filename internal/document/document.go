package document

// Kind classifies a parsed element. The set is closed: parsers map anything
// they do not recognize to KindParagraph or KindOther.
type Kind string

const (
	KindHeading   Kind = "heading"
	KindParagraph Kind = "paragraph"
	KindCodeBlock Kind = "code_block"
	KindList      Kind = "list"
	KindQuote     Kind = "quote"
	KindOther     Kind = "other"
)

// Category is the document-level classification.
type Category string

const (
	CategoryTechnical Category = "technical"
	CategoryNormal    Category = "normal"
)

// PlacementKind is the role an image plays at a placement.
type PlacementKind string

const (
	KindCover       PlacementKind = "cover"
	KindSection     PlacementKind = "section"
	KindConcept     PlacementKind = "concept"
	KindAtmospheric PlacementKind = "atmospheric"
	KindDiagram     PlacementKind = "diagram"
	KindCodeConcept PlacementKind = "code_concept"
)

// PlacementKinds lists every valid placement kind.
var PlacementKinds = []PlacementKind{
	KindCover,
	KindSection,
	KindConcept,
	KindAtmospheric,
	KindDiagram,
	KindCodeConcept,
}

// ValidPlacementKind reports whether k is one of the closed set.
func ValidPlacementKind(k PlacementKind) bool {
	for _, v := range PlacementKinds {
		if v == k {
			return true
		}
	}
	return false
}

// Element is one parsed unit of a document. Immutable after parse.
type Element struct {
	Kind      Kind
	Text      string // Extracted text content.
	Raw       string // Original markdown block, re-emitted verbatim on assembly.
	Level     int    // Heading level 1-6, 0 otherwise.
	Position  int    // 0-based sequence index, stable across parses.
	WordCount int
}

// IsHeading reports whether the element is a heading.
func (e *Element) IsHeading() bool { return e.Kind == KindHeading }

// IsParagraph reports whether the element is a paragraph.
func (e *Element) IsParagraph() bool { return e.Kind == KindParagraph }

// Document owns an ordered sequence of elements plus derived metadata.
// Elements are in document order and never reordered.
type Document struct {
	Elements []Element
	Title    string   // First heading, or empty.
	Keywords []string // Derived from headings and code block languages.
}

// Headings returns all heading elements, optionally filtered by level
// (level 0 means any).
func (d *Document) Headings(level int) []Element {
	var out []Element
	for _, e := range d.Elements {
		if e.IsHeading() && (level == 0 || e.Level == level) {
			out = append(out, e)
		}
	}
	return out
}

// Paragraphs returns all paragraph elements.
func (d *Document) Paragraphs() []Element {
	var out []Element
	for _, e := range d.Elements {
		if e.IsParagraph() {
			out = append(out, e)
		}
	}
	return out
}

// HasH1 reports whether the document contains a level-1 heading.
func (d *Document) HasH1() bool {
	for _, e := range d.Elements {
		if e.IsHeading() && e.Level == 1 {
			return true
		}
	}
	return false
}

// Decision is one image placement: which element it follows, what kind of
// image belongs there, which producer backend makes it, and the instruction
// that backend receives. Decisions are emitted in strictly increasing
// element order.
type Decision struct {
	ElementIndex int
	Kind         PlacementKind
	Source       string
	Prompt       string
	Reason       string
}
