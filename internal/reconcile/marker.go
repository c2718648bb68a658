package reconcile

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/figmark/figmark/internal/config"
	"github.com/figmark/figmark/internal/document"
	"github.com/figmark/figmark/internal/produce"
)

// Artifact blocks are framed by HTML comment markers so that the triple
// (element index, placement kind, reference) survives a round trip through
// the document text. Everything between begin and end, markers included,
// is the block; kept blocks are re-emitted byte for byte.
//
//	<!-- figmark:begin index=3 kind=section source=unsplash -->
//	![alt](path)
//	<!-- figmark:end -->

var (
	beginRe = regexp.MustCompile(`^<!-- figmark:begin index=(\d+) kind=([a-z_]+) source=([A-Za-z0-9_.-]+)( status=failed)? -->$`)
	endLine = "<!-- figmark:end -->"
	imageRe = regexp.MustCompile(`!\[[^\]]*\]\(([^)]+)\)`)
)

// Existing is one artifact block recovered from a previously illustrated
// document.
type Existing struct {
	Index  int
	Kind   document.PlacementKind
	Source string
	Ref    string // image path/URL, empty for inline diagrams and failures
	Failed bool
	Block  string // full block text, begin marker through end marker
}

// Scan extracts all artifact blocks from a document in order.
func Scan(text string) []Existing {
	var found []Existing
	lines := strings.Split(text, "\n")

	for i := 0; i < len(lines); i++ {
		m := beginRe.FindStringSubmatch(lines[i])
		if m == nil {
			continue
		}
		end := -1
		for j := i + 1; j < len(lines); j++ {
			if strings.TrimRight(lines[j], "\r") == endLine {
				end = j
				break
			}
		}
		if end == -1 {
			break
		}

		block := strings.Join(lines[i:end+1], "\n")
		index, _ := strconv.Atoi(m[1])
		ex := Existing{
			Index:  index,
			Kind:   document.PlacementKind(m[2]),
			Source: m[3],
			Failed: m[4] != "",
			Block:  block,
		}
		if img := imageRe.FindStringSubmatch(block); img != nil {
			ex.Ref = img[1]
		}
		found = append(found, ex)
		i = end
	}
	return found
}

// Strip removes every artifact block from the text, returning the bare
// document and the blocks. Parsing the stripped text yields the same
// elements at the same positions as the document the blocks were placed
// into.
func Strip(text string) (string, []Existing) {
	blocks := Scan(text)
	lines := strings.Split(text, "\n")
	var out []string

	for i := 0; i < len(lines); i++ {
		if beginRe.MatchString(lines[i]) {
			end := -1
			for j := i + 1; j < len(lines); j++ {
				if strings.TrimRight(lines[j], "\r") == endLine {
					end = j
					break
				}
			}
			if end != -1 {
				i = end
				// Drop the separator blank line that framed the block.
				if len(out) > 0 && out[len(out)-1] == "" &&
					i+1 < len(lines) && lines[i+1] == "" {
					i++
				}
				continue
			}
		}
		out = append(out, lines[i])
	}
	return strings.Join(out, "\n"), blocks
}

// renderArtifact builds a fresh block for a produced artifact.
func renderArtifact(index int, kind document.PlacementKind, artifact produce.Artifact, out config.Output) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<!-- figmark:begin index=%d kind=%s source=%s -->\n", index, kind, artifact.Source)

	if artifact.Inline != "" {
		fmt.Fprintf(&sb, "```%s\n%s\n```\n", artifact.Lang, strings.TrimRight(artifact.Inline, "\n"))
	} else {
		alt := artifact.AltText
		if alt == "" {
			alt = string(kind)
		}
		fmt.Fprintf(&sb, "![%s](%s)\n", alt, artifact.Ref)
		if out.AddCaption && out.CaptionFormat != "" {
			caption := strings.ReplaceAll(out.CaptionFormat, "{description}", alt)
			sb.WriteString(caption + "\n")
		}
	}

	sb.WriteString(endLine)
	return sb.String()
}

// renderFailed builds a placeholder block for a slot whose production
// failed. The status flag makes the slot targetable by failed-only
// regeneration later.
func renderFailed(index int, kind document.PlacementKind, source string) string {
	return fmt.Sprintf("<!-- figmark:begin index=%d kind=%s source=%s status=failed -->\n%s",
		index, kind, source, endLine)
}
