package agents

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/heliograph/research-digest/internal/domain"
	"github.com/heliograph/research-digest/internal/observability"
)

// maxMostCommonTopics bounds the ranked topic list in a topic analysis.
const maxMostCommonTopics = 5

// SynthesisAgent combines per-paper results into a cross-paper narrative
// with topic frequency and co-occurrence analysis.
type SynthesisAgent struct {
	logger zerolog.Logger
}

var _ Synthesizer = (*SynthesisAgent)(nil)

// NewSynthesisAgent creates a synthesis agent.
func NewSynthesisAgent(logger zerolog.Logger) *SynthesisAgent {
	return &SynthesisAgent{
		logger: observability.WithStageContext(logger, "synthesis"),
	}
}

// Process synthesizes the batch. A zero-paper batch yields the degenerate
// "no papers" synthesis rather than an error.
func (a *SynthesisAgent) Process(_ context.Context, input SynthesisInput) *domain.Synthesis {
	if len(input.Papers) == 0 {
		return &domain.Synthesis{
			Narrative:  "No papers available for synthesis.",
			PaperCount: 0,
		}
	}

	analysis := analyzeTopics(input.Classifications)
	narrative := buildNarrative(len(input.Papers), input.Summaries, analysis)

	a.logger.Info().
		Int("papers", len(input.Papers)).
		Int("unique_topics", analysis.TotalUniqueTopics).
		Msg("synthesis complete")

	return &domain.Synthesis{
		Narrative:     narrative,
		TopicAnalysis: analysis,
		PaperCount:    len(input.Papers),
		Methodology:   "enhanced_synthesis",
	}
}

// analyzeTopics computes topic frequency, ranking and pairwise
// co-occurrence across the batch.
func analyzeTopics(classifications [][]string) *domain.TopicAnalysis {
	distribution := make(map[string]int)
	cooccurrence := make(map[string]int)

	for _, topics := range classifications {
		for _, topic := range topics {
			distribution[topic]++
		}
		for i := 0; i < len(topics); i++ {
			for j := i + 1; j < len(topics); j++ {
				cooccurrence[pairKey(topics[i], topics[j])]++
			}
		}
	}

	mostCommon := make([]domain.TopicCount, 0, len(distribution))
	for topic, count := range distribution {
		mostCommon = append(mostCommon, domain.TopicCount{Topic: topic, Count: count})
	}
	sort.Slice(mostCommon, func(i, j int) bool {
		if mostCommon[i].Count != mostCommon[j].Count {
			return mostCommon[i].Count > mostCommon[j].Count
		}
		return mostCommon[i].Topic < mostCommon[j].Topic
	})
	if len(mostCommon) > maxMostCommonTopics {
		mostCommon = mostCommon[:maxMostCommonTopics]
	}

	return &domain.TopicAnalysis{
		Distribution:      distribution,
		TotalUniqueTopics: len(distribution),
		MostCommon:        mostCommon,
		Cooccurrence:      cooccurrence,
	}
}

// pairKey builds the canonical key for an unordered topic pair.
func pairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}

// buildNarrative assembles the overview, findings and conclusion sections.
func buildNarrative(paperCount int, summaries []*domain.Summary, analysis *domain.TopicAnalysis) string {
	var parts []string

	overview := fmt.Sprintf("This synthesis analyzes %d research papers covering %d distinct research areas. ",
		paperCount, analysis.TotalUniqueTopics)
	if len(analysis.MostCommon) > 0 {
		top := analysis.MostCommon
		if len(top) > 3 {
			top = top[:3]
		}
		names := make([]string, len(top))
		for i, tc := range top {
			names[i] = tc.Topic
		}
		switch len(names) {
		case 1:
			overview += fmt.Sprintf("The most prevalent research area is %s. ", names[0])
		default:
			overview += fmt.Sprintf("The most prevalent research areas include %s and %s. ",
				strings.Join(names[:len(names)-1], ", "), names[len(names)-1])
		}
	}
	parts = append(parts, overview)

	if len(summaries) > 0 {
		findings := "Key findings across the analyzed papers reveal several important insights: "

		var collected []string
		for _, summary := range summaries {
			if summary == nil {
				continue
			}
			insights := summary.KeyInsights
			if len(insights) > 2 {
				insights = insights[:2]
			}
			collected = append(collected, insights...)
		}

		unique := dedupeFindings(collected)
		if len(unique) > 0 {
			numbered := make([]string, len(unique))
			for i, finding := range unique {
				numbered[i] = fmt.Sprintf("(%d) %s.", i+1, capitalize(finding))
			}
			findings += strings.Join(numbered, " ")
		} else {
			findings += "The papers collectively advance our understanding in their respective domains."
		}
		parts = append(parts, findings)
	}

	parts = append(parts, "The collective findings underscore the rapid advancement in these research areas and point toward significant potential for real-world applications and continued innovation.")

	return strings.Join(parts, " ")
}

// dedupeFindings keeps the first few findings that are not substrings of
// one another.
func dedupeFindings(findings []string) []string {
	if len(findings) > 5 {
		findings = findings[:5]
	}

	var unique []string
	for _, finding := range findings {
		duplicate := false
		for _, existing := range unique {
			if strings.Contains(strings.ToLower(existing), strings.ToLower(finding)) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			unique = append(unique, finding)
		}
		if len(unique) == 3 {
			break
		}
	}
	return unique
}

// capitalize upper-cases the first byte of an ASCII finding.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
