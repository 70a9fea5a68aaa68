// Package pipeline contains the workflow coordinator. The coordinator owns
// the stage sequencing for both processing flows, drives the capability
// agents in order, and writes a progress milestone to the workflow registry
// after each stage. Agent failures never reach the coordinator; only a
// failure in the sequencing itself marks a workflow failed.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/heliograph/research-digest/internal/agents"
	"github.com/heliograph/research-digest/internal/domain"
	"github.com/heliograph/research-digest/internal/observability"
)

const (
	flowSearch = "search"
	flowUpload = "upload"

	maxTitleInMessage = 50
)

// WorkflowStore is the registry surface the coordinator writes milestones to.
type WorkflowStore interface {
	Create(id string, status domain.WorkflowStatus, message string) *domain.WorkflowRecord
	Update(id string, update domain.WorkflowUpdate)
}

// Agents bundles the six capability agents the coordinator drives.
type Agents struct {
	Source      agents.Source
	Extractor   agents.Extractor
	Classifier  agents.Classifier
	Summarizer  agents.Summarizer
	Synthesizer agents.Synthesizer
	Narrator    agents.Narrator
}

// Config holds coordinator settings.
type Config struct {
	// MaxPapers is the default paper cap for search workflows that do
	// not specify one.
	MaxPapers int

	// MilestoneDelay is an optional pause after each milestone so
	// pollers can observe intermediate progress on fast runs.
	MilestoneDelay time.Duration
}

// SearchRequest describes a search-flow submission.
type SearchRequest struct {
	Query       string
	MaxPapers   int
	YearFrom    int
	YearTo      int
	Category    string
	MustInclude []string
	MustExclude []string
	TopicHints  []string
}

// UploadRequest describes an upload-flow submission.
type UploadRequest struct {
	FilePaths []string
	Topics    []string
}

// Coordinator runs workflows as background jobs and reports their progress
// through the workflow store.
type Coordinator struct {
	store   WorkflowStore
	agents  Agents
	config  Config
	metrics *observability.Metrics
	logger  zerolog.Logger

	wg sync.WaitGroup
}

// New creates a Coordinator.
func New(store WorkflowStore, ag Agents, cfg Config, metrics *observability.Metrics, logger zerolog.Logger) *Coordinator {
	if cfg.MaxPapers <= 0 {
		cfg.MaxPapers = 5
	}
	return &Coordinator{
		store:   store,
		agents:  ag,
		config:  cfg,
		metrics: metrics,
		logger:  logger.With().Str("component", "coordinator").Logger(),
	}
}

// StartSearch registers a workflow for a search request and runs it in the
// background. The returned record reflects the initial pending state.
func (c *Coordinator) StartSearch(workflowID string, req SearchRequest) *domain.WorkflowRecord {
	record := c.store.Create(workflowID, domain.WorkflowStatusPending, "Workflow created")
	c.metrics.WorkflowsStarted.WithLabelValues(flowSearch).Inc()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.runSearch(context.Background(), workflowID, req)
	}()
	return record
}

// StartUpload registers a workflow for an upload request and runs it in the
// background.
func (c *Coordinator) StartUpload(workflowID string, req UploadRequest) *domain.WorkflowRecord {
	record := c.store.Create(workflowID, domain.WorkflowStatusPending, "Workflow created")
	c.metrics.WorkflowsStarted.WithLabelValues(flowUpload).Inc()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.runUpload(context.Background(), workflowID, req)
	}()
	return record
}

// Wait blocks until all in-flight workflows have finished. Used during
// graceful shutdown and in tests.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

func (c *Coordinator) runSearch(ctx context.Context, workflowID string, req SearchRequest) {
	logger := observability.WithWorkflowContext(c.logger, workflowID, flowSearch)
	started := time.Now()
	defer c.recoverToFailed(workflowID, flowSearch, logger)

	logger.Info().Str("query", req.Query).Msg("starting search workflow")

	maxPapers := req.MaxPapers
	if maxPapers <= 0 {
		maxPapers = c.config.MaxPapers
	}

	c.milestone(workflowID, domain.WorkflowStatusProcessing, 20, "Searching paper sources...")

	discoveryStart := time.Now()
	papers := c.agents.Source.Process(ctx, agents.DiscoveryRequest{
		Query:       req.Query,
		MaxPapers:   maxPapers,
		YearFrom:    req.YearFrom,
		YearTo:      req.YearTo,
		Category:    req.Category,
		MustInclude: req.MustInclude,
		MustExclude: req.MustExclude,
		TopicHints:  req.TopicHints,
	})
	c.metrics.StageDuration.WithLabelValues("discovery").Observe(time.Since(discoveryStart).Seconds())

	c.milestone(workflowID, domain.WorkflowStatusProcessing, 30, fmt.Sprintf("Found %d papers", len(papers)))

	if len(papers) == 0 {
		logger.Info().Msg("no papers found, completing early")
		c.completeEmpty(workflowID, flowSearch, "No papers found",
			"No papers found for the search query", started)
		return
	}

	c.milestone(workflowID, domain.WorkflowStatusProcessing, 35, "Starting paper analysis...")

	classifications, summaries := c.analyzePapers(ctx, workflowID, papers, analysisRange{
		start: 35, span: 35, noun: "paper",
	})

	c.milestone(workflowID, domain.WorkflowStatusProcessing, 75, "Synthesizing findings across papers...")
	synthesis := c.synthesize(ctx, papers, classifications, summaries)
	c.milestone(workflowID, domain.WorkflowStatusProcessing, 85, "Synthesis completed")

	c.milestone(workflowID, domain.WorkflowStatusProcessing, 90, "Generating audio summary...")
	audioFiles := c.narrate(ctx, synthesis)
	c.milestone(workflowID, domain.WorkflowStatusProcessing, 95, "Audio generation completed")

	c.milestone(workflowID, domain.WorkflowStatusProcessing, 98, "Finalizing results...")

	c.complete(workflowID, flowSearch, "Processing completed successfully!",
		buildResult(workflowID, papers, classifications, summaries, synthesis, audioFiles), started)

	logger.Info().
		Int("papers", len(papers)).
		Dur("duration", time.Since(started)).
		Msg("search workflow completed")
}

func (c *Coordinator) runUpload(ctx context.Context, workflowID string, req UploadRequest) {
	logger := observability.WithWorkflowContext(c.logger, workflowID, flowUpload)
	started := time.Now()
	defer c.recoverToFailed(workflowID, flowUpload, logger)

	logger.Info().Int("files", len(req.FilePaths)).Msg("starting upload workflow")

	c.milestone(workflowID, domain.WorkflowStatusProcessing, 10, "Processing uploaded files...")

	extractionStart := time.Now()
	papers := c.agents.Extractor.Process(ctx, agents.ExtractionRequest{
		FilePaths:  req.FilePaths,
		TopicHints: req.Topics,
	})
	c.metrics.StageDuration.WithLabelValues("extraction").Observe(time.Since(extractionStart).Seconds())

	c.milestone(workflowID, domain.WorkflowStatusProcessing, 25, fmt.Sprintf("Extracted content from %d files", len(papers)))

	if len(papers) == 0 {
		logger.Info().Msg("no content extracted, completing early")
		c.completeEmpty(workflowID, flowUpload, "No content could be extracted from uploaded files",
			"No content could be extracted from uploaded files", started)
		return
	}

	c.milestone(workflowID, domain.WorkflowStatusProcessing, 30, "Starting document analysis...")

	classifications, summaries := c.analyzePapers(ctx, workflowID, papers, analysisRange{
		start: 30, span: 35, noun: "document",
	})

	c.milestone(workflowID, domain.WorkflowStatusProcessing, 70, "Synthesizing findings across documents...")
	synthesis := c.synthesize(ctx, papers, classifications, summaries)
	c.milestone(workflowID, domain.WorkflowStatusProcessing, 80, "Synthesis completed")

	c.milestone(workflowID, domain.WorkflowStatusProcessing, 85, "Generating audio summary...")
	audioFiles := c.narrate(ctx, synthesis)
	c.milestone(workflowID, domain.WorkflowStatusProcessing, 95, "Audio generation completed")

	c.milestone(workflowID, domain.WorkflowStatusProcessing, 98, "Finalizing results...")

	c.complete(workflowID, flowUpload, "Upload processing completed successfully!",
		buildResult(workflowID, papers, classifications, summaries, synthesis, audioFiles), started)

	logger.Info().
		Int("documents", len(papers)).
		Dur("duration", time.Since(started)).
		Msg("upload workflow completed")
}

// analysisRange positions the per-paper loop within the progress scale.
type analysisRange struct {
	start float64
	span  float64
	noun  string
}

// analyzePapers runs classification then summarization for each paper,
// interpolating progress linearly across the configured range. Topics are
// written onto the paper before summarization so the summarizer can echo
// them.
func (c *Coordinator) analyzePapers(ctx context.Context, workflowID string, papers []*domain.Paper, rng analysisRange) ([][]string, []*domain.Summary) {
	total := len(papers)
	classifications := make([][]string, 0, total)
	summaries := make([]*domain.Summary, 0, total)

	for i, paper := range papers {
		progress := rng.start + float64(i)/float64(total)*rng.span
		c.milestone(workflowID, domain.WorkflowStatusProcessing, progress,
			fmt.Sprintf("Analyzing %s %d/%d: %s...", rng.noun, i+1, total, truncateTitle(paper.Title)))

		classificationStart := time.Now()
		classification := c.agents.Classifier.Process(ctx, paper)
		c.metrics.StageDuration.WithLabelValues("classification").Observe(time.Since(classificationStart).Seconds())
		paper.Topics = classification

		summarizationStart := time.Now()
		summary := c.agents.Summarizer.Process(ctx, paper)
		c.metrics.StageDuration.WithLabelValues("summarization").Observe(time.Since(summarizationStart).Seconds())

		classifications = append(classifications, classification)
		summaries = append(summaries, summary)

		c.metrics.PapersProcessed.Inc()
		c.metrics.SummariesGenerated.WithLabelValues(string(summary.Method)).Inc()
	}
	return classifications, summaries
}

func (c *Coordinator) synthesize(ctx context.Context, papers []*domain.Paper, classifications [][]string, summaries []*domain.Summary) *domain.Synthesis {
	start := time.Now()
	synthesis := c.agents.Synthesizer.Process(ctx, agents.SynthesisInput{
		Papers:          papers,
		Classifications: classifications,
		Summaries:       summaries,
	})
	c.metrics.StageDuration.WithLabelValues("synthesis").Observe(time.Since(start).Seconds())
	return synthesis
}

func (c *Coordinator) narrate(ctx context.Context, synthesis *domain.Synthesis) []string {
	start := time.Now()
	audioFiles := c.agents.Narrator.Process(ctx, synthesis)
	c.metrics.StageDuration.WithLabelValues("narration").Observe(time.Since(start).Seconds())
	return audioFiles
}

// milestone writes a progress update and applies the configured pacing delay.
func (c *Coordinator) milestone(workflowID string, status domain.WorkflowStatus, progress float64, message string) {
	c.store.Update(workflowID, domain.WorkflowUpdate{
		Status:   domain.StatusOf(status),
		Progress: domain.ProgressOf(progress),
		Message:  domain.MessageOf(message),
	})
	if c.config.MilestoneDelay > 0 {
		time.Sleep(c.config.MilestoneDelay)
	}
}

func (c *Coordinator) complete(workflowID, flow, message string, result *domain.ResultPayload, started time.Time) {
	c.store.Update(workflowID, domain.WorkflowUpdate{
		Status:   domain.StatusOf(domain.WorkflowStatusCompleted),
		Progress: domain.ProgressOf(100),
		Message:  domain.MessageOf(message),
		Result:   result,
	})
	c.metrics.WorkflowsCompleted.WithLabelValues(flow).Inc()
	c.metrics.WorkflowDuration.WithLabelValues(flow).Observe(time.Since(started).Seconds())
}

// completeEmpty terminates a workflow whose first stage produced no papers.
// The remaining stages are skipped and the result carries a degenerate
// synthesis.
func (c *Coordinator) completeEmpty(workflowID, flow, message, narrative string, started time.Time) {
	c.complete(workflowID, flow, message, &domain.ResultPayload{
		WorkflowID:      workflowID,
		Papers:          []domain.PaperView{},
		PapersProcessed: 0,
		Classifications: [][]string{},
		Summaries:       []domain.Summary{},
		Synthesis:       &domain.Synthesis{Narrative: narrative, PaperCount: 0},
		AudioFiles:      []string{},
		Status:          string(domain.WorkflowStatusCompleted),
	}, started)
}

// recoverToFailed catches any panic escaping the sequencing logic and
// records the workflow as failed with progress reset to zero.
func (c *Coordinator) recoverToFailed(workflowID, flow string, logger zerolog.Logger) {
	r := recover()
	if r == nil {
		return
	}
	logger.Error().Interface("panic", r).Msg("workflow failed")
	errMsg := fmt.Sprintf("Processing failed: %v", r)
	c.store.Update(workflowID, domain.WorkflowUpdate{
		Status:   domain.StatusOf(domain.WorkflowStatusFailed),
		Progress: domain.ProgressOf(0),
		Message:  domain.MessageOf(errMsg),
		Error:    domain.MessageOf(fmt.Sprintf("%v", r)),
	})
	c.metrics.WorkflowsFailed.WithLabelValues(flow).Inc()
}

func buildResult(workflowID string, papers []*domain.Paper, classifications [][]string, summaries []*domain.Summary, synthesis *domain.Synthesis, audioFiles []string) *domain.ResultPayload {
	views := make([]domain.PaperView, 0, len(papers))
	for _, paper := range papers {
		views = append(views, paper.View())
	}

	summaryValues := make([]domain.Summary, 0, len(summaries))
	for _, s := range summaries {
		if s != nil {
			summaryValues = append(summaryValues, *s)
		}
	}

	if audioFiles == nil {
		audioFiles = []string{}
	}

	return &domain.ResultPayload{
		WorkflowID:      workflowID,
		Papers:          views,
		PapersProcessed: len(papers),
		Classifications: classifications,
		Summaries:       summaryValues,
		Synthesis:       synthesis,
		AudioFiles:      audioFiles,
		Status:          string(domain.WorkflowStatusCompleted),
	}
}

func truncateTitle(title string) string {
	return domain.TruncateBytes(title, maxTitleInMessage)
}
