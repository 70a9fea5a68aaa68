// Package papersources provides interfaces and types for academic paper source clients.
//
// Each academic database implements the PaperSource interface, allowing the
// discovery agent to query sources with a unified API. Clients apply their
// own rate limiting and timeouts; failures surface as errors that the
// discovery agent absorbs into degraded output.
package papersources

import (
	"context"
	"time"

	"github.com/heliograph/research-digest/internal/domain"
)

// SearchParams defines the parameters for searching academic papers.
// All fields except Query are optional.
type SearchParams struct {
	// Query is the free-text search query (required).
	Query string

	// MaxResults limits the number of papers returned in a single request.
	// A value of 0 uses the source's default limit.
	MaxResults int

	// YearFrom filters papers submitted in or after this year. Zero means
	// no lower bound.
	YearFrom int

	// YearTo filters papers submitted in or before this year. Zero means
	// no upper bound.
	YearTo int

	// Category restricts results to a subject category. The value is a
	// source-independent family name (e.g. "cs", "physics", "math") that
	// each client maps to its own category scheme.
	Category string

	// MustInclude lists terms every result must contain.
	MustInclude []string

	// MustExclude lists terms no result may contain.
	MustExclude []string
}

// SearchResult contains the results from a paper source search operation.
type SearchResult struct {
	// Papers contains the papers returned by the search. May be empty.
	Papers []*domain.Paper

	// TotalResults is the total number of papers matching the query,
	// regardless of limits. Provided by the source API and may be an
	// estimate for large result sets.
	TotalResults int

	// Source identifies which paper source provided these results.
	Source domain.SourceType

	// SearchDuration is the time taken to execute the search, including
	// network latency and response parsing.
	SearchDuration time.Duration
}

// PaperSource defines the interface that all paper source clients implement.
type PaperSource interface {
	// Search queries the paper source for papers matching the given
	// parameters. Implementations respect context cancellation, apply
	// their own rate limiting, and transform source responses into
	// domain.Paper values.
	Search(ctx context.Context, params SearchParams) (*SearchResult, error)

	// SourceType returns the type identifier for this paper source.
	SourceType() domain.SourceType

	// Name returns a human-readable name for this paper source.
	Name() string

	// IsEnabled returns whether this source is enabled for searches.
	IsEnabled() bool
}
