package reconcile

import (
	"sort"

	"github.com/figmark/figmark/internal/document"
)

// Disposition classifies one slot of an incremental run.
type Disposition string

const (
	// Keep: existing artifact still matches a decision and was not targeted.
	Keep Disposition = "keep"
	// Regenerate: existing artifact matches but the caller targeted it.
	Regenerate Disposition = "regenerate"
	// Missing: a new decision has no existing artifact.
	Missing Disposition = "missing"
	// MissingFailed: production for a missing/regenerate slot failed; the
	// slot is retained in the output for failed-only targeting.
	MissingFailed Disposition = "missing_failed"
	// Dropped: an existing artifact whose trigger no longer fires.
	Dropped Disposition = "dropped"
)

// Slot is one reconciliation unit keyed by element index and kind.
type Slot struct {
	Index       int
	Kind        document.PlacementKind
	Disposition Disposition
	Existing    *Existing          // set for keep/regenerate/dropped
	Decision    *document.Decision // set for keep/regenerate/missing
}

// NeedsProduction reports whether the slot requires a producer call.
func (s Slot) NeedsProduction() bool {
	return s.Disposition == Regenerate || s.Disposition == Missing
}

// Targets selects which matched slots are forced to regenerate.
type Targets struct {
	Indexes    []int
	Kinds      []document.PlacementKind
	FailedOnly bool
}

func (t Targets) matches(ex Existing) bool {
	for _, idx := range t.Indexes {
		if ex.Index == idx {
			return true
		}
	}
	for _, kind := range t.Kinds {
		if ex.Kind == kind {
			return true
		}
	}
	if t.FailedOnly && ex.Failed {
		return true
	}
	return false
}

// Plan computes the disposition of every slot: each existing artifact and
// each new decision lands in exactly one slot, matched by element index
// first and placement kind second. Neither input is mutated. The result is
// ordered by element index.
func Plan(existing []Existing, decisions []document.Decision, targets Targets) []Slot {
	var slots []Slot

	// Spacing invariant upstream guarantees unique decision indexes.
	decisionAt := make(map[int]*document.Decision, len(decisions))
	for i := range decisions {
		decisionAt[decisions[i].ElementIndex] = &decisions[i]
	}

	matched := make(map[int]bool, len(existing))
	for i := range existing {
		ex := &existing[i]
		d, ok := decisionAt[ex.Index]
		if !ok || d.Kind != ex.Kind {
			// Position gone, or same position now wants a different kind.
			slots = append(slots, Slot{
				Index:       ex.Index,
				Kind:        ex.Kind,
				Disposition: Dropped,
				Existing:    ex,
			})
			continue
		}
		matched[ex.Index] = true
		disposition := Keep
		if targets.matches(*ex) {
			disposition = Regenerate
		}
		slots = append(slots, Slot{
			Index:       ex.Index,
			Kind:        ex.Kind,
			Disposition: disposition,
			Existing:    ex,
			Decision:    d,
		})
	}

	for i := range decisions {
		d := &decisions[i]
		if matched[d.ElementIndex] {
			continue
		}
		slots = append(slots, Slot{
			Index:       d.ElementIndex,
			Kind:        d.Kind,
			Disposition: Missing,
			Decision:    d,
		})
	}

	sort.SliceStable(slots, func(i, j int) bool { return slots[i].Index < slots[j].Index })
	return slots
}
