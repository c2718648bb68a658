package prompt

import (
	"context"
	"regexp"
	"strings"

	"github.com/figmark/figmark/internal/config"
	"github.com/figmark/figmark/internal/document"
	"github.com/figmark/figmark/internal/llm"
)

// Composer builds one generation instruction per placement. The inference
// path is best-effort; every failure mode lands on the template path, so
// Compose is total and never returns empty text.
type Composer struct {
	inferencer llm.Inferencer
	templates  map[string]map[string]string
	maxLen     int
}

const (
	defaultMaxLen = 300

	// Context window: how much following-element text accompanies an
	// inference request.
	contextElements  = 3
	contextCharLimit = 200
)

func New(inferencer llm.Inferencer, cfg config.Config) *Composer {
	maxLen := cfg.LLM.MaxTokens
	if maxLen <= 0 {
		maxLen = defaultMaxLen
	}
	return &Composer{
		inferencer: inferencer,
		templates:  cfg.Prompts,
		maxLen:     maxLen,
	}
}

// Compose produces the instruction text for one placement decision.
func (c *Composer) Compose(ctx context.Context, doc *document.Document, el document.Element, kind document.PlacementKind, source string) string {
	base := ""
	if c.inferencer != nil {
		base = c.inferBase(ctx, doc, el, kind)
	}

	template := c.template(source, kind)
	var result string
	if base != "" {
		result = fillTemplate(template, el.Text, base)
	} else {
		// Deterministic path: the element text stands in for every slot.
		topic := strings.TrimSpace(el.Text)
		if topic == "" {
			topic = doc.Title
		}
		result = fillTemplate(template, topic, topic)
	}

	result = strings.TrimSpace(truncateAtPunctuation(result, c.maxLen))
	if result == "" {
		if doc.Title != "" {
			return doc.Title
		}
		return "illustration"
	}
	return result
}

// inferBase asks the collaborator for a description. Empty return means
// fall back to templates.
func (c *Composer) inferBase(ctx context.Context, doc *document.Document, el document.Element, kind document.PlacementKind) string {
	resp, err := c.inferencer.Infer(ctx, llm.Request{
		Task: llm.TaskComposePrompt,
		Text: el.Text,
		Context: map[string]string{
			"title":    doc.Title,
			"kind":     string(kind),
			"keywords": strings.Join(doc.Keywords, ", "),
			"context":  followingContext(doc, el.Position),
		},
	})
	if err != nil {
		return ""
	}
	return normalize(resp.Result)
}

// followingContext joins the text of the next few elements after pos.
func followingContext(doc *document.Document, pos int) string {
	var parts []string
	for i := pos + 1; i < len(doc.Elements) && len(parts) < contextElements; i++ {
		el := doc.Elements[i]
		if el.Kind != document.KindParagraph && el.Kind != document.KindList {
			continue
		}
		text := el.Text
		if runes := []rune(text); len(runes) > contextCharLimit {
			text = string(runes[:contextCharLimit])
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, " ")
}

func (c *Composer) template(source string, kind document.PlacementKind) string {
	if byKind, ok := c.templates[source]; ok {
		if t, ok := byKind[string(kind)]; ok {
			return t
		}
	}
	if byKind, ok := c.templates["default"]; ok {
		if t, ok := byKind[string(kind)]; ok {
			return t
		}
	}
	return "{title}"
}

// fillTemplate substitutes whichever variable the template carries. A
// template with no variable is appended to the base text.
func fillTemplate(template, title, base string) string {
	switch {
	case strings.Contains(template, "{title}"):
		return strings.ReplaceAll(template, "{title}", title)
	case strings.Contains(template, "{topic}"):
		return strings.ReplaceAll(template, "{topic}", base)
	case strings.Contains(template, "{concept}"):
		return strings.ReplaceAll(template, "{concept}", base)
	default:
		return base + ", " + template
	}
}

var codeFenceRe = regexp.MustCompile("(?s)^```[a-zA-Z0-9_-]*\\n?(.*?)\\n?```$")

// normalize strips wrapping code fences and surrounding quotes from an
// inference response. Image producers cannot use either.
func normalize(s string) string {
	s = strings.TrimSpace(s)
	if m := codeFenceRe.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}
	s = strings.Trim(s, "\"'")
	return strings.TrimSpace(s)
}

var promptPunctuation = map[rune]bool{
	'，': true, '。': true, '、': true, ',': true, '.': true, ';': true, '；': true,
}

// truncateAtPunctuation cuts s to at most maxLen runes, preferring to end
// at the last punctuation mark inside the cut.
func truncateAtPunctuation(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	cut := runes[:maxLen]
	for i := len(cut) - 1; i >= 0; i-- {
		if promptPunctuation[cut[i]] {
			return string(cut[:i+1])
		}
	}
	return string(cut)
}
