package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/figmark/figmark/internal/analyze"
	"github.com/figmark/figmark/internal/classify"
	"github.com/figmark/figmark/internal/config"
	"github.com/figmark/figmark/internal/document"
	"github.com/figmark/figmark/internal/llm"
	"github.com/figmark/figmark/internal/parser"
	"github.com/figmark/figmark/internal/produce"
	"github.com/figmark/figmark/internal/prompt"
	"github.com/figmark/figmark/internal/reconcile"
)

// Options tune one illustration run.
type Options struct {
	// ForceSource overrides the selector's choice for every decision.
	ForceSource string
	// DryRun computes decisions and dispositions but produces nothing.
	DryRun bool
	// Targets forces matched slots to regenerate.
	Targets reconcile.Targets
}

// SlotReport is the per-slot outcome surfaced to callers even under
// partial failure.
type SlotReport struct {
	Index       int                    `json:"index"`
	Kind        document.PlacementKind `json:"kind"`
	Disposition reconcile.Disposition  `json:"disposition"`
	Source      string                 `json:"source,omitempty"`
	Ref         string                 `json:"ref,omitempty"`
	Attempts    []produce.Attempt      `json:"attempts,omitempty"`
	Error       string                 `json:"error,omitempty"`
}

// Result is the outcome of one run.
type Result struct {
	Output         string          `json:"-"`
	Title          string          `json:"title"`
	Classification classify.Result `json:"classification"`
	Decisions      int             `json:"decisions"`
	Slots          []SlotReport    `json:"slots"`
	Partial        bool            `json:"partial"`
}

// Runner is the per-document pipeline: parse, classify, assemble,
// reconcile against prior artifacts, produce the delta, merge. It holds
// no per-run state, so one Runner serves concurrent documents.
type Runner struct {
	cfg        config.Config
	classifier *classify.Classifier
	assembler  *analyze.Assembler
	director   *produce.Director
	log        *slog.Logger
}

func NewRunner(cfg config.Config, inferencer llm.Inferencer, producers []produce.Producer, log *slog.Logger) *Runner {
	composer := prompt.New(inferencer, cfg)
	return &Runner{
		cfg:        cfg,
		classifier: classify.New(inferencer),
		assembler:  analyze.New(cfg, composer),
		director:   produce.NewDirector(cfg, producers, log),
		log:        log,
	}
}

// Run illustrates one document. Prior artifact blocks in the input are
// reconciled rather than regenerated; the raw input is never mutated.
func (r *Runner) Run(ctx context.Context, raw []byte, filename string, opts Options) (*Result, error) {
	text, existing := splitArtifacts(raw, filename)

	p, err := parser.ForFile(filename)
	if err != nil {
		return nil, err
	}
	doc, err := p.Parse(bytes.NewReader(text), filepath.Base(filename))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}

	classification := r.classifier.Classify(ctx, doc)
	r.log.Info("document classified",
		"title", doc.Title,
		"category", classification.Category,
		"confidence", classification.Confidence,
		"method", classification.Method)

	decisions := r.assembler.Assemble(ctx, doc, classification.Category)
	if opts.ForceSource != "" {
		for i := range decisions {
			decisions[i].Source = opts.ForceSource
		}
	}

	slots := reconcile.Plan(existing, decisions, opts.Targets)

	var outcomes map[int]produce.Outcome
	if !opts.DryRun {
		outcomes = r.produceSlots(ctx, slots)
	}

	result := &Result{
		Title:          doc.Title,
		Classification: classification,
		Decisions:      len(decisions),
	}
	if opts.DryRun {
		result.Slots = reportSlots(slots, nil)
		return result, nil
	}

	final := reconcile.Finalize(slots, outcomes)
	result.Output = reconcile.Assemble(doc, slots, outcomes, r.cfg.Output)
	result.Slots = reportSlots(final, outcomes)
	for _, s := range result.Slots {
		if s.Disposition == reconcile.MissingFailed {
			result.Partial = true
		}
	}
	return result, nil
}

// produceSlots fills every slot that needs production, in parallel.
func (r *Runner) produceSlots(ctx context.Context, slots []reconcile.Slot) map[int]produce.Outcome {
	var pending []produce.Slot
	for _, s := range slots {
		if !s.NeedsProduction() {
			continue
		}
		pending = append(pending, produce.Slot{
			Index:  s.Index,
			Kind:   s.Kind,
			Source: s.Decision.Source,
			Prompt: s.Decision.Prompt,
		})
	}
	if len(pending) == 0 {
		return nil
	}

	outcomes := make(map[int]produce.Outcome, len(pending))
	for _, o := range r.director.ProduceAll(ctx, pending) {
		outcomes[o.Slot.Index] = o
		if o.Failed() {
			r.log.Warn("slot production failed",
				"slot_index", o.Slot.Index,
				"kind", o.Slot.Kind,
				"error", o.Err)
		}
	}
	return outcomes
}

func reportSlots(slots []reconcile.Slot, outcomes map[int]produce.Outcome) []SlotReport {
	reports := make([]SlotReport, 0, len(slots))
	for _, s := range slots {
		report := SlotReport{
			Index:       s.Index,
			Kind:        s.Kind,
			Disposition: s.Disposition,
		}
		if s.Existing != nil {
			report.Source = s.Existing.Source
			report.Ref = s.Existing.Ref
		}
		if s.Decision != nil {
			report.Source = s.Decision.Source
		}
		if o, ok := outcomes[s.Index]; ok && (s.Disposition == reconcile.Regenerate ||
			s.Disposition == reconcile.Missing || s.Disposition == reconcile.MissingFailed) {
			report.Attempts = o.Attempts
			if o.Failed() {
				report.Error = o.Err.Error()
			} else {
				report.Source = o.Artifact.Source
				report.Ref = o.Artifact.Ref
			}
		}
		reports = append(reports, report)
	}
	return reports
}

// splitArtifacts strips prior artifact blocks from formats that can carry
// them. Binary formats never hold markers.
func splitArtifacts(raw []byte, filename string) ([]byte, []reconcile.Existing) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".md", ".markdown", ".txt":
		clean, existing := reconcile.Strip(string(raw))
		return []byte(clean), existing
	default:
		return raw, nil
	}
}
