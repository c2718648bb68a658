package parser

import (
	"bufio"
	"io"
	"strings"

	"github.com/figmark/figmark/internal/document"
)

// TextParser handles plain text files: blank-line separated paragraphs.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*document.Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	doc := &document.Document{}
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			appendElement(doc, paragraphElement(current.String()))
			current.Reset()
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			flush()
		} else {
			if current.Len() > 0 {
				current.WriteString("\n")
			}
			current.WriteString(line)
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	deriveMetadata(doc)
	if doc.Title == "" {
		doc.Title = strings.TrimSuffix(filename, ".txt")
	}
	return doc, nil
}
