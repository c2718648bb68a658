package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/figmark/figmark/internal/api"
	"github.com/figmark/figmark/internal/config"
	"github.com/figmark/figmark/internal/llm"
	"github.com/figmark/figmark/internal/pipeline"
	"github.com/figmark/figmark/internal/produce"
	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "", "path to settings file (optional)")
	flag.Parse()

	godotenv.Load()
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize clients.
	inference := llm.NewClient(cfg.LLM)
	var inferencer llm.Inferencer
	if cfg.LLM.Enabled && cfg.LLM.APIKey != "" {
		inferencer = inference
	}

	// Initialize pipeline.
	runner := pipeline.NewRunner(cfg, inferencer, produce.FromConfig(cfg), log)
	orch := pipeline.NewOrchestrator(cfg, runner, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, inference, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		orch.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		inference.Close()
	}()

	log.Info("starting figmark", "port", cfg.Server.Port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
