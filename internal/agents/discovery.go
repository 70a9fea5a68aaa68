package agents

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/heliograph/research-digest/internal/domain"
	"github.com/heliograph/research-digest/internal/observability"
	"github.com/heliograph/research-digest/internal/papersources"
)

// DiscoveryAgent searches an external paper source. Upstream failures never
// reach the coordinator: a failed or disabled source degrades to a single
// synthetic fallback paper carrying the query.
type DiscoveryAgent struct {
	source  papersources.PaperSource
	metrics *observability.Metrics
	logger  zerolog.Logger
}

var _ Source = (*DiscoveryAgent)(nil)

// NewDiscoveryAgent creates a discovery agent backed by the given source.
func NewDiscoveryAgent(source papersources.PaperSource, metrics *observability.Metrics, logger zerolog.Logger) *DiscoveryAgent {
	return &DiscoveryAgent{
		source:  source,
		metrics: metrics,
		logger:  observability.WithStageContext(logger, "discovery"),
	}
}

// Process searches the configured source. An empty query yields an empty
// list; a source failure yields a single fallback paper.
func (a *DiscoveryAgent) Process(ctx context.Context, req DiscoveryRequest) []*domain.Paper {
	if req.Query == "" {
		a.logger.Warn().Msg("empty search query, nothing to discover")
		return nil
	}

	if a.source == nil || !a.source.IsEnabled() {
		a.logger.Warn().Str("query", req.Query).Msg("paper source disabled, returning fallback paper")
		return []*domain.Paper{a.fallbackPaper(req)}
	}

	result, err := a.source.Search(ctx, papersources.SearchParams{
		Query:       req.Query,
		MaxResults:  req.MaxPapers,
		YearFrom:    req.YearFrom,
		YearTo:      req.YearTo,
		Category:    req.Category,
		MustInclude: req.MustInclude,
		MustExclude: req.MustExclude,
	})
	if err != nil {
		a.logger.Error().Err(err).Str("query", req.Query).Str("source", a.source.Name()).
			Msg("source search failed, returning fallback paper")
		a.metrics.SourceSearches.WithLabelValues(string(a.source.SourceType()), "error").Inc()
		return []*domain.Paper{a.fallbackPaper(req)}
	}

	a.metrics.SourceSearches.WithLabelValues(string(result.Source), "success").Inc()
	a.metrics.SourceSearchDuration.WithLabelValues(string(result.Source)).Observe(result.SearchDuration.Seconds())

	a.logger.Info().
		Str("query", req.Query).
		Int("papers", len(result.Papers)).
		Int("total_results", result.TotalResults).
		Dur("duration", result.SearchDuration).
		Msg("source search complete")

	return result.Papers
}

// fallbackPaper builds the synthetic degraded-search result.
func (a *DiscoveryAgent) fallbackPaper(req DiscoveryRequest) *domain.Paper {
	paper := domain.NewPaper(
		"Fallback: Research Paper on "+req.Query,
		"Fallback paper about "+req.Query+" (source search failed).",
		"Fallback content.",
		domain.SourceTypeFallback,
	)
	paper.Authors = []string{"Unknown"}
	paper.Topics = append(paper.Topics, req.TopicHints...)
	return paper
}
