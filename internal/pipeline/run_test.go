package pipeline

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/figmark/figmark/internal/config"
	"github.com/figmark/figmark/internal/produce"
	"github.com/figmark/figmark/internal/reconcile"
)

const runSample = `# Service Overview

This paragraph walks through the service design at a comfortable level of
detail so the reader knows what to expect from the rest of the guide.

## Request Handling

The server accepts a request, validates the payload, runs the handler and
writes the response.

## Storage Layout

Data lives in a single directory tree with one file per record.
`

// testRunner routes every source to the local diagram producer so runs
// are deterministic and offline.
func testRunner(t *testing.T) *Runner {
	t.Helper()
	cfg := config.Default()
	cfg.Rules.MinGapBetweenImages = 1
	cfg.Sources = config.Sources{
		AI:      "mermaid",
		Diagram: "mermaid",
		Stock:   "mermaid",
		Fallback: map[string][]string{
			"mermaid": {},
		},
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRunner(cfg, nil, []produce.Producer{produce.NewMermaidProducer()}, log)
}

func TestRunnerFreshRun(t *testing.T) {
	r := testRunner(t)

	result, err := r.Run(context.Background(), []byte(runSample), "guide.md", Options{})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if result.Partial {
		t.Fatalf("run partial, slot reports: %+v", result.Slots)
	}
	if result.Title != "Service Overview" {
		t.Errorf("title = %q, want Service Overview", result.Title)
	}
	if !strings.Contains(result.Output, "figmark:begin") {
		t.Fatalf("output carries no artifact blocks:\n%s", result.Output)
	}
	for _, s := range result.Slots {
		if s.Disposition != reconcile.Missing {
			t.Errorf("fresh run slot@%d = %s, want missing", s.Index, s.Disposition)
		}
	}
}

func TestRunnerRerunKeepsEverything(t *testing.T) {
	r := testRunner(t)

	first, err := r.Run(context.Background(), []byte(runSample), "guide.md", Options{})
	if err != nil {
		t.Fatalf("first Run() error: %v", err)
	}

	second, err := r.Run(context.Background(), []byte(first.Output), "guide.md", Options{})
	if err != nil {
		t.Fatalf("second Run() error: %v", err)
	}
	for _, s := range second.Slots {
		if s.Disposition != reconcile.Keep {
			t.Errorf("rerun slot@%d = %s, want keep", s.Index, s.Disposition)
		}
	}
	if second.Output != first.Output {
		t.Errorf("rerun changed the document:\nfirst:\n%s\nsecond:\n%s", first.Output, second.Output)
	}
}

func TestRunnerRegenerateByIndex(t *testing.T) {
	r := testRunner(t)

	first, err := r.Run(context.Background(), []byte(runSample), "guide.md", Options{})
	if err != nil {
		t.Fatalf("first Run() error: %v", err)
	}
	if len(first.Slots) == 0 {
		t.Fatal("no slots in first run")
	}
	target := first.Slots[0].Index

	second, err := r.Run(context.Background(), []byte(first.Output), "guide.md", Options{
		Targets: reconcile.Targets{Indexes: []int{target}},
	})
	if err != nil {
		t.Fatalf("second Run() error: %v", err)
	}
	seen := false
	for _, s := range second.Slots {
		switch {
		case s.Index == target:
			seen = true
			if s.Disposition != reconcile.Regenerate {
				t.Errorf("targeted slot@%d = %s, want regenerate", s.Index, s.Disposition)
			}
		case s.Disposition != reconcile.Keep:
			t.Errorf("untargeted slot@%d = %s, want keep", s.Index, s.Disposition)
		}
	}
	if !seen {
		t.Fatalf("target index %d not in slot reports: %+v", target, second.Slots)
	}
}

func TestRunnerDryRun(t *testing.T) {
	r := testRunner(t)

	result, err := r.Run(context.Background(), []byte(runSample), "guide.md", Options{DryRun: true})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if result.Output != "" {
		t.Error("dry run produced output text")
	}
	if len(result.Slots) == 0 {
		t.Error("dry run reported no slots")
	}
}

func TestRunnerUnsupportedExtension(t *testing.T) {
	r := testRunner(t)
	if _, err := r.Run(context.Background(), []byte("data"), "doc.xyz", Options{}); err == nil {
		t.Fatal("expected error for unsupported file type")
	}
}
