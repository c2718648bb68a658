package prompt

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/figmark/figmark/internal/config"
	"github.com/figmark/figmark/internal/document"
	"github.com/figmark/figmark/internal/llm"
)

type fakeInferencer struct {
	resp llm.Response
	err  error
	seen []llm.Request
}

func (f *fakeInferencer) Infer(_ context.Context, req llm.Request) (llm.Response, error) {
	f.seen = append(f.seen, req)
	return f.resp, f.err
}

func testDoc() *document.Document {
	return &document.Document{
		Title: "Understanding Raft",
		Elements: []document.Element{
			{Kind: document.KindHeading, Level: 1, Text: "Understanding Raft", Position: 0},
			{Kind: document.KindParagraph, Text: "Raft elects a single leader per term.", Position: 1},
			{Kind: document.KindParagraph, Text: "Followers replicate the leader's log.", Position: 2},
		},
	}
}

func TestComposeTemplateFallback(t *testing.T) {
	c := New(nil, config.Default())
	doc := testDoc()

	got := c.Compose(context.Background(), doc, doc.Elements[0], document.KindCover, "unsplash")
	if !strings.Contains(got, "Understanding Raft") {
		t.Errorf("Compose() = %q, want it to carry the element text", got)
	}
	if got == "" {
		t.Fatal("Compose() returned empty text")
	}
}

func TestComposeUsesSourceTemplates(t *testing.T) {
	c := New(nil, config.Default())
	doc := testDoc()

	got := c.Compose(context.Background(), doc, doc.Elements[0], document.KindCover, "mermaid")
	want := "Understanding Raft mind map"
	if got != want {
		t.Errorf("Compose() = %q, want %q", got, want)
	}
}

func TestComposeInferenceSuccess(t *testing.T) {
	fake := &fakeInferencer{resp: llm.Response{Result: "a serene mountain lake at dawn"}}
	c := New(fake, config.Default())
	doc := testDoc()

	got := c.Compose(context.Background(), doc, doc.Elements[1], document.KindAtmospheric, "unsplash")
	if !strings.Contains(got, "a serene mountain lake at dawn") {
		t.Errorf("Compose() = %q, want inference text inside", got)
	}
	if len(fake.seen) != 1 {
		t.Fatalf("inference calls = %d, want 1", len(fake.seen))
	}
	req := fake.seen[0]
	if req.Task != llm.TaskComposePrompt {
		t.Errorf("task = %q, want %q", req.Task, llm.TaskComposePrompt)
	}
	if !strings.Contains(req.Context["context"], "Followers replicate") {
		t.Errorf("context window = %q, want following element text", req.Context["context"])
	}
}

func TestComposeFallbackTotality(t *testing.T) {
	fake := &fakeInferencer{err: errors.New("always down")}
	c := New(fake, config.Default())
	doc := testDoc()

	for _, kind := range document.PlacementKinds {
		for _, source := range []string{"unsplash", "pexels", "mermaid", "ai", "unknown-source"} {
			got := c.Compose(context.Background(), doc, doc.Elements[1], kind, source)
			if strings.TrimSpace(got) == "" {
				t.Errorf("Compose(kind=%s, source=%s) returned empty text", kind, source)
			}
		}
	}
}

func TestComposeEmptyElementFallsBackToTitle(t *testing.T) {
	c := New(nil, config.Default())
	doc := testDoc()
	el := document.Element{Kind: document.KindParagraph, Text: "", Position: 1}

	got := c.Compose(context.Background(), doc, el, document.KindAtmospheric, "unsplash")
	if strings.TrimSpace(got) == "" {
		t.Fatal("Compose() returned empty text for empty element")
	}
	if !strings.Contains(got, "Understanding Raft") {
		t.Errorf("Compose() = %q, want document title substituted", got)
	}
}

func TestNormalizeStripsCodeFences(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"```\na misty forest\n```", "a misty forest"},
		{"```text\na misty forest\n```", "a misty forest"},
		{"\"a misty forest\"", "a misty forest"},
		{"a misty forest", "a misty forest"},
	}
	for _, tt := range tests {
		if got := normalize(tt.in); got != tt.want {
			t.Errorf("normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncateAtPunctuation(t *testing.T) {
	in := "a long description, with several clauses, that keeps going well past the limit"
	got := truncateAtPunctuation(in, 40)
	if len([]rune(got)) > 40 {
		t.Fatalf("len = %d, want <= 40", len([]rune(got)))
	}
	if !strings.HasSuffix(got, ",") {
		t.Errorf("truncateAtPunctuation() = %q, want cut at punctuation", got)
	}

	noPunct := strings.Repeat("x", 100)
	if got := truncateAtPunctuation(noPunct, 40); len([]rune(got)) != 40 {
		t.Errorf("hard cut len = %d, want 40", len([]rune(got)))
	}

	short := "short"
	if got := truncateAtPunctuation(short, 40); got != short {
		t.Errorf("truncateAtPunctuation(short) = %q, want unchanged", got)
	}
}
