package agents

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heliograph/research-digest/internal/domain"
	"github.com/heliograph/research-digest/internal/observability"
	"github.com/heliograph/research-digest/internal/papersources"
)

// mockSource implements papersources.PaperSource with function fields.
type mockSource struct {
	searchFunc func(ctx context.Context, params papersources.SearchParams) (*papersources.SearchResult, error)
	enabled    bool
}

func (m *mockSource) Search(ctx context.Context, params papersources.SearchParams) (*papersources.SearchResult, error) {
	return m.searchFunc(ctx, params)
}

func (m *mockSource) SourceType() domain.SourceType { return domain.SourceTypeArXiv }
func (m *mockSource) Name() string                  { return "mock" }
func (m *mockSource) IsEnabled() bool               { return m.enabled }

func testMetrics() *observability.Metrics {
	return observability.NewMetricsWithRegistry(prometheus.NewRegistry())
}

func TestDiscoveryAgent_Process(t *testing.T) {
	t.Run("returns papers from the source", func(t *testing.T) {
		want := []*domain.Paper{
			domain.NewPaper("First", "a", "a", domain.SourceTypeArXiv),
			domain.NewPaper("Second", "b", "b", domain.SourceTypeArXiv),
		}
		var gotParams papersources.SearchParams
		source := &mockSource{
			enabled: true,
			searchFunc: func(_ context.Context, params papersources.SearchParams) (*papersources.SearchResult, error) {
				gotParams = params
				return &papersources.SearchResult{
					Papers:       want,
					TotalResults: 2,
					Source:       domain.SourceTypeArXiv,
				}, nil
			},
		}

		agent := NewDiscoveryAgent(source, testMetrics(), zerolog.Nop())
		papers := agent.Process(context.Background(), DiscoveryRequest{
			Query:       "quantum error correction",
			MaxPapers:   5,
			YearFrom:    2020,
			MustInclude: []string{"qubits"},
		})

		assert.Equal(t, want, papers)
		assert.Equal(t, "quantum error correction", gotParams.Query)
		assert.Equal(t, 5, gotParams.MaxResults)
		assert.Equal(t, 2020, gotParams.YearFrom)
		assert.Equal(t, []string{"qubits"}, gotParams.MustInclude)
	})

	t.Run("empty query yields no papers", func(t *testing.T) {
		agent := NewDiscoveryAgent(&mockSource{enabled: true}, testMetrics(), zerolog.Nop())
		assert.Empty(t, agent.Process(context.Background(), DiscoveryRequest{}))
	})

	t.Run("source failure degrades to a single fallback paper", func(t *testing.T) {
		source := &mockSource{
			enabled: true,
			searchFunc: func(context.Context, papersources.SearchParams) (*papersources.SearchResult, error) {
				return nil, errors.New("connection refused")
			},
		}

		agent := NewDiscoveryAgent(source, testMetrics(), zerolog.Nop())
		papers := agent.Process(context.Background(), DiscoveryRequest{
			Query:      "graph neural networks",
			TopicHints: []string{"Machine Learning"},
		})

		require.Len(t, papers, 1)
		fallback := papers[0]
		assert.Equal(t, domain.SourceTypeFallback, fallback.Source)
		assert.Contains(t, fallback.Title, "graph neural networks")
		assert.Equal(t, []string{"Machine Learning"}, fallback.Topics)
	})

	t.Run("disabled source degrades to a fallback paper", func(t *testing.T) {
		agent := NewDiscoveryAgent(&mockSource{enabled: false}, testMetrics(), zerolog.Nop())
		papers := agent.Process(context.Background(), DiscoveryRequest{Query: "anything"})

		require.Len(t, papers, 1)
		assert.Equal(t, domain.SourceTypeFallback, papers[0].Source)
	})

	t.Run("empty result passes through without fallback", func(t *testing.T) {
		source := &mockSource{
			enabled: true,
			searchFunc: func(context.Context, papersources.SearchParams) (*papersources.SearchResult, error) {
				return &papersources.SearchResult{Source: domain.SourceTypeArXiv}, nil
			},
		}

		agent := NewDiscoveryAgent(source, testMetrics(), zerolog.Nop())
		assert.Empty(t, agent.Process(context.Background(), DiscoveryRequest{Query: "obscure"}))
	})
}
