// Package agents holds the pipeline capability agents. Each agent performs
// one stage of the research digest pipeline and shares a common failure
// policy: local errors are absorbed into degraded but valid output and
// logged, never returned to the coordinator. Only programming errors
// propagate.
package agents

import (
	"context"

	"github.com/heliograph/research-digest/internal/domain"
)

// DiscoveryRequest is the query spec handed to the Source agent.
type DiscoveryRequest struct {
	// Query is the free-text search query.
	Query string

	// MaxPapers bounds the number of papers returned. Zero uses the
	// source default.
	MaxPapers int

	// YearFrom and YearTo bound the submission year. Zero means unbounded.
	YearFrom int
	YearTo   int

	// Category restricts results to a subject family.
	Category string

	// MustInclude and MustExclude refine the query with required and
	// forbidden terms.
	MustInclude []string
	MustExclude []string

	// TopicHints seed the topics of fallback papers when the search
	// degrades.
	TopicHints []string
}

// ExtractionRequest names the uploaded files the Extractor should process.
type ExtractionRequest struct {
	// FilePaths lists the stored upload paths, processed in order.
	FilePaths []string

	// TopicHints are caller-provided topics attached to every extracted
	// paper.
	TopicHints []string
}

// SynthesisInput is the aggregate batch handed to the Synthesizer after all
// per-paper stages have completed.
type SynthesisInput struct {
	Papers          []*domain.Paper
	Classifications [][]string
	Summaries       []*domain.Summary
}

// Source discovers papers from an external database.
type Source interface {
	Process(ctx context.Context, req DiscoveryRequest) []*domain.Paper
}

// Extractor turns uploaded files into papers.
type Extractor interface {
	Process(ctx context.Context, req ExtractionRequest) []*domain.Paper
}

// Classifier assigns topic labels to a single paper. Implementations must
// be pure functions of the paper's text fields and always return between
// one and four labels.
type Classifier interface {
	Process(ctx context.Context, paper *domain.Paper) []string
}

// Summarizer produces a bounded summary for a single paper.
type Summarizer interface {
	Process(ctx context.Context, paper *domain.Paper) *domain.Summary
}

// Synthesizer combines the full batch into a cross-paper synthesis. A
// zero-paper batch yields a defined degenerate synthesis, not an error.
type Synthesizer interface {
	Process(ctx context.Context, input SynthesisInput) *domain.Synthesis
}

// Narrator renders a synthesis into audio artifacts, or placeholder text
// artifacts when rendering is unavailable.
type Narrator interface {
	Process(ctx context.Context, synthesis *domain.Synthesis) []string
}
