package produce

import (
	"context"

	"github.com/figmark/figmark/internal/document"
)

// Slot is one placement awaiting an artifact.
type Slot struct {
	Index  int
	Kind   document.PlacementKind
	Source string
	Prompt string
}

// Artifact is one produced image reference. Exactly one of Ref and Inline
// is set: Ref points at a saved file or URL, Inline carries diagram code
// embedded directly in the document.
type Artifact struct {
	Ref     string
	Inline  string
	Lang    string // fence language for inline artifacts
	Source  string // backend that actually produced it
	AltText string
}

// Producer turns one slot's prompt into an artifact.
type Producer interface {
	Name() string
	Produce(ctx context.Context, slot Slot) (Artifact, error)
}

// Attempt records one backend try for the per-slot outcome report.
type Attempt struct {
	Source string `json:"source"`
	Error  string `json:"error,omitempty"`
}

// Outcome is the final per-slot result. Err is set only when every source
// in the fallback chain failed.
type Outcome struct {
	Slot     Slot
	Artifact Artifact
	Attempts []Attempt
	Err      error
}

// Failed reports whether the slot produced nothing.
func (o Outcome) Failed() bool { return o.Err != nil }
