package parser

import (
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/figmark/figmark/internal/document"
)

// Parser converts raw document bytes into a flat element sequence.
type Parser interface {
	Parse(r io.Reader, filename string) (*document.Document, error)
}

// SupportedExtensions lists file extensions this engine can handle.
var SupportedExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
	".txt":      true,
	".html":     true,
	".htm":      true,
	".docx":     true,
	".pdf":      true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".txt":
		return &TextParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".docx":
		return &DOCXParser{}, nil
	case ".pdf":
		return &PDFParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	return SupportedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// deriveMetadata fills the document title and keyword set from its elements.
func deriveMetadata(doc *document.Document) {
	seen := make(map[string]bool)
	for _, e := range doc.Elements {
		switch {
		case e.IsHeading():
			if doc.Title == "" {
				doc.Title = e.Text
			}
			for _, w := range splitWords(e.Text) {
				if !seen[w] && len(doc.Keywords) < 10 {
					seen[w] = true
					doc.Keywords = append(doc.Keywords, w)
				}
			}
		case e.Kind == document.KindCodeBlock:
			if lang := fenceLanguage(e.Raw); lang != "" && !seen[lang] && len(doc.Keywords) < 10 {
				seen[lang] = true
				doc.Keywords = append(doc.Keywords, lang)
			}
		}
	}
}

var nonWordRe = regexp.MustCompile(`[^\p{L}\p{N}\s]`)

var stopwords = map[string]bool{
	"的": true, "是": true, "在": true, "和": true, "与": true,
	"或": true, "但": true, "而": true,
	"the": true, "a": true, "an": true, "is": true, "are": true,
	"in": true, "on": true, "at": true, "for": true, "to": true,
}

// splitWords tokenizes heading text for keyword extraction.
func splitWords(text string) []string {
	text = nonWordRe.ReplaceAllString(text, " ")
	var out []string
	for _, w := range strings.Fields(text) {
		lw := strings.ToLower(w)
		if len([]rune(w)) > 1 && !stopwords[lw] {
			out = append(out, w)
		}
	}
	return out
}

// fenceLanguage extracts the info string of a fenced code block raw form.
func fenceLanguage(raw string) string {
	if !strings.HasPrefix(raw, "```") {
		return ""
	}
	first, _, _ := strings.Cut(raw, "\n")
	return strings.TrimSpace(strings.TrimPrefix(first, "```"))
}

// appendElement is shared by the non-markdown front-ends: it finalizes
// position and word count before appending.
func appendElement(doc *document.Document, el document.Element) {
	el.Position = len(doc.Elements)
	el.WordCount = document.CountWords(el.Text)
	doc.Elements = append(doc.Elements, el)
}

// headingElement builds a heading element with its canonical markdown raw
// form, used by the html/docx front-ends.
func headingElement(level int, text string) document.Element {
	return document.Element{
		Kind:  document.KindHeading,
		Level: level,
		Text:  text,
		Raw:   strings.Repeat("#", level) + " " + text,
	}
}

// paragraphElement builds a paragraph element whose raw form is its text.
func paragraphElement(text string) document.Element {
	return document.Element{
		Kind: document.KindParagraph,
		Text: text,
		Raw:  text,
	}
}
