package agents

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heliograph/research-digest/internal/domain"
)

func TestSynthesisAgent_Process(t *testing.T) {
	agent := NewSynthesisAgent(zerolog.Nop())
	ctx := context.Background()

	t.Run("zero papers yields the degenerate synthesis", func(t *testing.T) {
		synthesis := agent.Process(ctx, SynthesisInput{})

		require.NotNil(t, synthesis)
		assert.Equal(t, "No papers available for synthesis.", synthesis.Narrative)
		assert.Zero(t, synthesis.PaperCount)
		assert.Nil(t, synthesis.TopicAnalysis)
	})

	t.Run("analyzes topics across the batch", func(t *testing.T) {
		papers := []*domain.Paper{
			domain.NewPaper("One", "", "", domain.SourceTypeArXiv),
			domain.NewPaper("Two", "", "", domain.SourceTypeArXiv),
			domain.NewPaper("Three", "", "", domain.SourceTypeArXiv),
		}
		classifications := [][]string{
			{"Machine Learning", "Computer Vision"},
			{"Machine Learning"},
			{"Machine Learning", "Computer Vision", "Robotics"},
		}
		summaries := []*domain.Summary{
			{KeyInsights: []string{"attention improves accuracy on all vision benchmarks evaluated"}},
			{},
			{KeyInsights: []string{"robot learning transfers across tasks with minimal fine tuning"}},
		}

		synthesis := agent.Process(ctx, SynthesisInput{
			Papers:          papers,
			Classifications: classifications,
			Summaries:       summaries,
		})

		require.NotNil(t, synthesis.TopicAnalysis)
		analysis := synthesis.TopicAnalysis

		assert.Equal(t, 3, analysis.Distribution["Machine Learning"])
		assert.Equal(t, 2, analysis.Distribution["Computer Vision"])
		assert.Equal(t, 1, analysis.Distribution["Robotics"])
		assert.Equal(t, 3, analysis.TotalUniqueTopics)

		require.NotEmpty(t, analysis.MostCommon)
		assert.Equal(t, domain.TopicCount{Topic: "Machine Learning", Count: 3}, analysis.MostCommon[0])

		assert.Equal(t, 2, analysis.Cooccurrence["Computer Vision|Machine Learning"])
		assert.Equal(t, 1, analysis.Cooccurrence["Computer Vision|Robotics"])

		assert.Equal(t, 3, synthesis.PaperCount)
		assert.Equal(t, "enhanced_synthesis", synthesis.Methodology)
	})

	t.Run("narrative names counts and top areas", func(t *testing.T) {
		synthesis := agent.Process(ctx, SynthesisInput{
			Papers: []*domain.Paper{domain.NewPaper("A", "", "", domain.SourceTypeArXiv)},
			Classifications: [][]string{
				{"Quantum Computing"},
			},
			Summaries: []*domain.Summary{{}},
		})

		assert.Contains(t, synthesis.Narrative, "1 research papers")
		assert.Contains(t, synthesis.Narrative, "Quantum Computing")
		assert.Contains(t, synthesis.Narrative, "continued innovation")
	})

	t.Run("numbers distinct findings in the narrative", func(t *testing.T) {
		synthesis := agent.Process(ctx, SynthesisInput{
			Papers: []*domain.Paper{
				domain.NewPaper("A", "", "", domain.SourceTypeArXiv),
				domain.NewPaper("B", "", "", domain.SourceTypeArXiv),
			},
			Classifications: [][]string{{"Data Science"}, {"Data Science"}},
			Summaries: []*domain.Summary{
				{KeyInsights: []string{"streaming aggregation halves the end to end processing latency"}},
				{KeyInsights: []string{"columnar layouts improve scan throughput for analytical queries"}},
			},
		})

		assert.Contains(t, synthesis.Narrative, "(1) Streaming aggregation")
		assert.Contains(t, synthesis.Narrative, "(2) Columnar layouts")
	})
}

func TestAnalyzeTopics(t *testing.T) {
	t.Run("pair keys are order independent", func(t *testing.T) {
		a := analyzeTopics([][]string{{"B", "A"}})
		b := analyzeTopics([][]string{{"A", "B"}})
		assert.Equal(t, a.Cooccurrence, b.Cooccurrence)
		assert.Equal(t, 1, a.Cooccurrence["A|B"])
	})

	t.Run("empty classifications", func(t *testing.T) {
		analysis := analyzeTopics(nil)
		assert.Zero(t, analysis.TotalUniqueTopics)
		assert.Empty(t, analysis.MostCommon)
	})
}

func TestDedupeFindings(t *testing.T) {
	findings := []string{
		"caching reduces latency",
		"Caching reduces latency",
		"replication improves availability",
	}

	unique := dedupeFindings(findings)

	assert.Equal(t, []string{"caching reduces latency", "replication improves availability"}, unique)
}
