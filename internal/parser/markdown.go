package parser

import (
	"bytes"
	"io"
	"strings"

	"github.com/figmark/figmark/internal/document"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser converts markdown into a flat, ordered element sequence
// using goldmark. Parsing never fails on malformed input: goldmark treats
// unrecognized constructs as paragraphs and runs unterminated code fences
// to end of document.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*document.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return ParseMarkdown(src), nil
}

// ParseMarkdown parses markdown source into a Document. It has no failure
// mode: every top-level block maps to exactly one element, in source order.
func ParseMarkdown(src []byte) *document.Document {
	md := goldmark.New()
	reader := text.NewReader(src)
	root := md.Parser().Parse(reader)

	doc := &document.Document{}

	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		el := blockElement(n, src)
		el.Position = len(doc.Elements)
		el.WordCount = document.CountWords(el.Text)
		doc.Elements = append(doc.Elements, el)
	}

	deriveMetadata(doc)
	return doc
}

// blockElement maps one top-level goldmark block to an element.
func blockElement(n ast.Node, src []byte) document.Element {
	switch node := n.(type) {
	case *ast.Heading:
		title := string(node.Text(src))
		return document.Element{
			Kind:  document.KindHeading,
			Level: node.Level,
			Text:  title,
			// Canonical ATX form so re-parsing an assembled document
			// yields the identical element.
			Raw: strings.Repeat("#", node.Level) + " " + title,
		}

	case *ast.FencedCodeBlock:
		lang := ""
		if node.Info != nil {
			lang = string(node.Info.Value(src))
		}
		content := blockLines(node, src)
		return document.Element{
			Kind: document.KindCodeBlock,
			Text: content,
			Raw:  fencedRaw(lang, content),
		}

	case *ast.CodeBlock:
		content := blockLines(node, src)
		return document.Element{
			Kind: document.KindCodeBlock,
			Text: content,
			Raw:  fencedRaw("", content),
		}

	case *ast.List:
		return document.Element{
			Kind: document.KindList,
			Text: inlineText(node, src),
			Raw:  rawSpan(node, src),
		}

	case *ast.Blockquote:
		return document.Element{
			Kind: document.KindQuote,
			Text: inlineText(node, src),
			Raw:  rawSpan(node, src),
		}

	case *ast.ThematicBreak:
		return document.Element{
			Kind: document.KindOther,
			Raw:  "---",
		}

	case *ast.HTMLBlock:
		return document.Element{
			Kind: document.KindOther,
			Raw:  rawSpan(node, src),
		}

	case *ast.Paragraph:
		return document.Element{
			Kind: document.KindParagraph,
			Text: inlineText(node, src),
			Raw:  rawSpan(node, src),
		}

	default:
		// Anything unrecognized degrades to a paragraph.
		return document.Element{
			Kind: document.KindParagraph,
			Text: inlineText(n, src),
			Raw:  rawSpan(n, src),
		}
	}
}

// blockLines joins the source lines owned by a block node.
func blockLines(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(src))
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

func fencedRaw(lang, content string) string {
	var sb strings.Builder
	sb.WriteString("```")
	sb.WriteString(lang)
	sb.WriteString("\n")
	if content != "" {
		sb.WriteString(content)
		sb.WriteString("\n")
	}
	sb.WriteString("```")
	return sb.String()
}

// rawSpan recovers the original source text of a block by taking the byte
// span of all its line segments, expanded to full lines so list bullets
// and quote markers are included.
func rawSpan(n ast.Node, src []byte) string {
	start, stop, ok := nodeSpan(n)
	if !ok {
		return strings.TrimSpace(inlineText(n, src))
	}
	for start > 0 && src[start-1] != '\n' {
		start--
	}
	for stop < len(src) && src[stop] != '\n' {
		stop++
	}
	return strings.TrimRight(string(src[start:stop]), "\n")
}

// nodeSpan returns the minimal byte range covering every line segment of n
// and its descendants.
func nodeSpan(n ast.Node) (start, stop int, ok bool) {
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		if !ok || seg.Start < start {
			start = seg.Start
		}
		if !ok || seg.Stop > stop {
			stop = seg.Stop
		}
		ok = true
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		cs, ce, cok := nodeSpan(c)
		if !cok {
			continue
		}
		if !ok || cs < start {
			start = cs
		}
		if !ok || ce > stop {
			stop = ce
		}
		ok = true
	}
	return start, stop, ok
}

// inlineText collects the readable text content of a node.
func inlineText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	if n.Type() == ast.TypeBlock && n.ChildCount() == 0 {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(src))
		}
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, okT := c.(*ast.Text); okT {
			buf.Write(t.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
		} else {
			s := inlineText(c, src)
			if s != "" {
				if buf.Len() > 0 {
					buf.WriteByte(' ')
				}
				buf.WriteString(s)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
