package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/figmark/figmark/internal/config"
	"github.com/figmark/figmark/internal/document"
	"github.com/figmark/figmark/internal/llm"
	"github.com/figmark/figmark/internal/pipeline"
	"github.com/figmark/figmark/internal/produce"
	"github.com/joho/godotenv"
)

func main() {
	var (
		inPath      = flag.String("in", "", "input document (md, markdown, txt, html, docx, pdf)")
		outPath     = flag.String("out", "", "output path (default: overwrite input, keeping a backup)")
		configPath  = flag.String("config", "", "path to settings file (optional)")
		forceSource = flag.String("source", "", "route every image through one source (mermaid, unsplash, pexels, ai)")
		dryRun      = flag.Bool("dry-run", false, "print decisions without producing images or writing output")
		noInference = flag.Bool("no-inference", false, "disable the inference collaborator, rules only")
		regenIndex  = flag.String("regenerate-index", "", "comma-separated element indexes to regenerate")
		regenKind   = flag.String("regenerate-kind", "", "comma-separated placement kinds to regenerate")
		regenFailed = flag.Bool("regenerate-failed", false, "regenerate only failed placeholders")
		verbose     = flag.Bool("verbose", false, "debug logging")
	)
	flag.Parse()

	godotenv.Load()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if *inPath == "" {
		fmt.Fprintln(os.Stderr, "figmark: -in is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *noInference {
		cfg.LLM.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	opts, err := runOptions(*forceSource, *dryRun, *regenIndex, *regenKind, *regenFailed)
	if err != nil {
		log.Error("invalid flags", "error", err)
		os.Exit(2)
	}

	raw, err := os.ReadFile(*inPath)
	if err != nil {
		log.Error("failed to read input", "path", *inPath, "error", err)
		os.Exit(1)
	}

	var inferencer llm.Inferencer
	if cfg.LLM.Enabled && cfg.LLM.APIKey != "" {
		client := llm.NewClient(cfg.LLM)
		defer client.Close()
		inferencer = client
	}

	runner := pipeline.NewRunner(cfg, inferencer, produce.FromConfig(cfg), log)
	result, err := runner.Run(context.Background(), raw, filepath.Base(*inPath), opts)
	if err != nil {
		log.Error("run failed", "error", err)
		os.Exit(1)
	}

	printReport(result)

	if *dryRun {
		return
	}

	target := *outPath
	if target == "" {
		target = *inPath
	}
	if target == *inPath && cfg.Output.KeepOriginal {
		backup := backupPath(*inPath, cfg.Output.OriginalSuffix)
		if err := os.WriteFile(backup, raw, 0o644); err != nil {
			log.Error("failed to write backup", "path", backup, "error", err)
			os.Exit(1)
		}
		log.Info("original preserved", "path", backup)
	}
	if err := os.WriteFile(target, []byte(result.Output), 0o644); err != nil {
		log.Error("failed to write output", "path", target, "error", err)
		os.Exit(1)
	}
	log.Info("document illustrated",
		"path", target,
		"decisions", result.Decisions,
		"partial", result.Partial)
	if result.Partial {
		log.Warn("some slots failed; rerun with -regenerate-failed to retry them")
	}
}

// runOptions translates flags into pipeline options.
func runOptions(source string, dryRun bool, regenIndex, regenKind string, regenFailed bool) (pipeline.Options, error) {
	opts := pipeline.Options{
		ForceSource: source,
		DryRun:      dryRun,
	}
	if regenIndex != "" {
		for _, part := range strings.Split(regenIndex, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return opts, fmt.Errorf("-regenerate-index: %q is not an integer", part)
			}
			opts.Targets.Indexes = append(opts.Targets.Indexes, n)
		}
	}
	if regenKind != "" {
		for _, part := range strings.Split(regenKind, ",") {
			kind := document.PlacementKind(strings.TrimSpace(part))
			if !document.ValidPlacementKind(kind) {
				return opts, fmt.Errorf("-regenerate-kind: unknown kind %q", kind)
			}
			opts.Targets.Kinds = append(opts.Targets.Kinds, kind)
		}
	}
	opts.Targets.FailedOnly = regenFailed
	return opts, nil
}

// printReport writes the per-slot summary to stdout as JSON lines.
func printReport(result *pipeline.Result) {
	enc := json.NewEncoder(os.Stdout)
	enc.Encode(map[string]any{
		"title":      result.Title,
		"category":   result.Classification.Category,
		"confidence": result.Classification.Confidence,
		"method":     result.Classification.Method,
		"decisions":  result.Decisions,
	})
	for _, s := range result.Slots {
		enc.Encode(s)
	}
}

// backupPath derives the preserved-original path next to the input.
func backupPath(in, suffix string) string {
	ext := filepath.Ext(in)
	return strings.TrimSuffix(in, ext) + suffix
}
