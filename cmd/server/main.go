// Package main provides the entry point for the research digest service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/heliograph/research-digest/internal/agents"
	"github.com/heliograph/research-digest/internal/config"
	"github.com/heliograph/research-digest/internal/mirror"
	"github.com/heliograph/research-digest/internal/observability"
	"github.com/heliograph/research-digest/internal/papersources/arxiv"
	"github.com/heliograph/research-digest/internal/pipeline"
	"github.com/heliograph/research-digest/internal/registry"
	httpserver "github.com/heliograph/research-digest/internal/server/http"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger.Info().Msg("research-digest server starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics()

	// Optional durable mirror for workflow snapshots.
	var workflowMirror registry.Mirror
	if cfg.Mirror.Enabled {
		store, err := mirror.NewStore(cfg.Mirror.Path)
		if err != nil {
			return fmt.Errorf("open workflow mirror: %w", err)
		}
		defer store.Close()
		workflowMirror = store
		logger.Info().Str("path", cfg.Mirror.Path).Msg("workflow mirror enabled")
	}

	workflowRegistry := registry.New(registry.Config{
		MaxRecords: cfg.Registry.MaxRecords,
	}, workflowMirror, metrics, logger)

	arxivClient := arxiv.New(arxiv.Config{
		BaseURL:    cfg.Sources.ArXiv.BaseURL,
		Timeout:    cfg.Sources.ArXiv.Timeout,
		RateLimit:  cfg.Sources.ArXiv.RateLimit,
		MaxResults: cfg.Sources.ArXiv.MaxResults,
		Enabled:    cfg.Sources.ArXiv.Enabled,
	})

	coordinator := pipeline.New(workflowRegistry, pipeline.Agents{
		Source:      agents.NewDiscoveryAgent(arxivClient, metrics, logger),
		Extractor:   agents.NewExtractionAgent(logger),
		Classifier:  agents.NewClassificationAgent(logger),
		Summarizer:  agents.NewSummarizationAgent(logger),
		Synthesizer: agents.NewSynthesisAgent(logger),
		Narrator:    agents.NewNarrationAgent(nil, cfg.Storage.AudioDir, "/audio", logger),
	}, pipeline.Config{
		MaxPapers:      cfg.Pipeline.MaxPapers,
		MilestoneDelay: cfg.Pipeline.MilestoneDelay,
	}, metrics, logger)

	server := httpserver.NewServer(httpserver.Config{
		Address:              cfg.Server.Address(),
		ReadTimeout:          cfg.Server.ReadTimeout,
		WriteTimeout:         cfg.Server.WriteTimeout,
		IdleTimeout:          cfg.Server.IdleTimeout,
		ShutdownTimeout:      cfg.Server.ShutdownTimeout,
		UploadsDir:           cfg.Storage.UploadsDir,
		AudioDir:             cfg.Storage.AudioDir,
		MetricsEnabled:       cfg.Metrics.Enabled,
		MetricsPath:          cfg.Metrics.Path,
		StreamSampleInterval: cfg.Stream.SampleInterval,
		StreamGraceDelay:     cfg.Stream.GraceDelay,
		StreamMaxDuration:    cfg.Stream.MaxDuration,
	}, coordinator, workflowRegistry, metrics, logger)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	// Let in-flight workflows finish writing their terminal records.
	coordinator.Wait()

	logger.Info().Msg("research-digest server stopped")
	return nil
}
