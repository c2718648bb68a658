package reconcile

import (
	"strings"

	"github.com/figmark/figmark/internal/config"
	"github.com/figmark/figmark/internal/document"
	"github.com/figmark/figmark/internal/produce"
)

// Finalize resolves regenerate/missing slots against production outcomes:
// a slot whose production failed becomes missing_failed and stays in the
// document as a targetable placeholder. Keep/dropped slots pass through.
func Finalize(slots []Slot, outcomes map[int]produce.Outcome) []Slot {
	out := make([]Slot, len(slots))
	copy(out, slots)
	for i := range out {
		if !out[i].NeedsProduction() {
			continue
		}
		o, ok := outcomes[out[i].Index]
		if !ok || o.Failed() {
			out[i].Disposition = MissingFailed
		}
	}
	return out
}

// Assemble is the pure merge fold: it walks the document elements in
// order and interleaves artifact blocks at their element indexes. Kept
// blocks are emitted byte-identically; regenerated and missing slots take
// their freshly produced artifact; failed slots leave a placeholder. The
// source document text is never mutated.
func Assemble(doc *document.Document, slots []Slot, outcomes map[int]produce.Outcome, out config.Output) string {
	blockAt := make(map[int]string, len(slots))
	for _, slot := range Finalize(slots, outcomes) {
		switch slot.Disposition {
		case Keep:
			blockAt[slot.Index] = slot.Existing.Block
		case Regenerate, Missing:
			o := outcomes[slot.Index]
			blockAt[slot.Index] = renderArtifact(slot.Index, slot.Kind, o.Artifact, out)
		case MissingFailed:
			blockAt[slot.Index] = renderFailed(slot.Index, slot.Kind, failedSource(slot))
		}
	}

	var segments []string
	for i, el := range doc.Elements {
		raw := el.Raw
		if raw == "" {
			raw = el.Text
		}
		segments = append(segments, raw)
		if block, ok := blockAt[i]; ok {
			segments = append(segments, block)
		}
	}
	return strings.Join(segments, "\n\n") + "\n"
}

func failedSource(slot Slot) string {
	if slot.Decision != nil && slot.Decision.Source != "" {
		return slot.Decision.Source
	}
	if slot.Existing != nil {
		return slot.Existing.Source
	}
	return "unknown"
}

// SlotsForDecisions builds the all-missing slot list for a first run,
// where no prior artifacts exist.
func SlotsForDecisions(decisions []document.Decision) []Slot {
	return Plan(nil, decisions, Targets{})
}
