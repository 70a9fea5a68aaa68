package agents

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/heliograph/research-digest/internal/domain"
	"github.com/heliograph/research-digest/internal/observability"
)

// minSummarizableChars is the minimum prepared-text length worth running
// the extractive scorer on; anything shorter degrades to the template
// summary.
const minSummarizableChars = 100

var (
	wordRegex        = regexp.MustCompile(`\b\w+\b`)
	digitStartRegex  = regexp.MustCompile(`^\d`)
	numericOnlyRegex = regexp.MustCompile(`^[\d\s.\-]+$`)
	whitespaceRegex  = regexp.MustCompile(`\s+`)
	specialCharRegex = regexp.MustCompile(`[^\w\s.,;:!?'-]`)

	insightPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:we|the study|research|results?) (?:found|shows?|demonstrates?|reveals?|indicates?) (?:that )?([^.]+)`),
		regexp.MustCompile(`(?i)(?:the|our) (?:findings|results|conclusion) (?:suggest|indicate|show) (?:that )?([^.]+)`),
	}
)

// stopWords are excluded from frequency scoring.
var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "in": {}, "on": {}, "at": {}, "to": {},
	"for": {}, "of": {}, "with": {}, "by": {}, "as": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"this": {}, "that": {}, "these": {}, "those": {}, "be": {}, "been": {}, "being": {}, "have": {},
	"has": {}, "had": {}, "do": {}, "does": {}, "did": {}, "will": {}, "would": {}, "could": {}, "should": {},
}

// importantKeywords boost sentences that carry findings language.
var importantKeywords = map[string]struct{}{
	"research": {}, "study": {}, "finding": {}, "result": {}, "conclusion": {}, "analysis": {},
	"method": {}, "approach": {}, "significant": {}, "important": {}, "novel": {}, "new": {},
	"propose": {}, "demonstrate": {}, "show": {}, "reveal": {}, "indicate": {}, "suggest": {},
	"improve": {}, "effective": {}, "performance": {}, "accuracy": {}, "model": {}, "algorithm": {},
}

// SummarizationAgent produces extractive summaries by ranking sentences on
// word frequency, findings keywords, position and length. Output is always
// bounded by the short-form display cap; papers with too little signal
// degrade to a template summary built from title, topics and abstract.
type SummarizationAgent struct {
	logger zerolog.Logger
}

var _ Summarizer = (*SummarizationAgent)(nil)

// NewSummarizationAgent creates an extractive summarizer.
func NewSummarizationAgent(logger zerolog.Logger) *SummarizationAgent {
	return &SummarizationAgent{
		logger: observability.WithStageContext(logger, "summarization"),
	}
}

// Process summarizes a single paper. It never fails: insufficient text
// yields the fallback template summary.
func (a *SummarizationAgent) Process(_ context.Context, paper *domain.Paper) *domain.Summary {
	text := prepareText(paper)
	if len(strings.TrimSpace(text)) < minSummarizableChars {
		return a.fallbackSummary(paper)
	}

	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return a.fallbackSummary(paper)
	}

	var summaryText string
	if len(sentences) <= 2 {
		summaryText = strings.Join(sentences, " ")
	} else {
		summaryText = selectTopSentences(sentences)
	}
	summaryText = domain.TruncateToDisplayCap(summaryText)

	a.logger.Debug().
		Str("paper_id", paper.ID.String()).
		Int("length", len(summaryText)).
		Msg("generated extractive summary")

	return &domain.Summary{
		PaperID:     paper.ID.String(),
		Text:        summaryText,
		Length:      len(summaryText),
		Method:      domain.SummaryMethodExtractive,
		KeyInsights: extractKeyInsights(summaryText + " " + paper.Abstract),
		Topics:      paper.Topics,
		Title:       paper.Title,
	}
}

// fallbackSummary builds the template summary from title, topics and
// abstract.
func (a *SummarizationAgent) fallbackSummary(paper *domain.Paper) *domain.Summary {
	parts := []string{"This research paper"}
	if paper.Title != "" {
		parts[0] = "This research paper titled '" + paper.Title + "'"
	}

	if len(paper.Topics) > 0 {
		topics := paper.Topics
		if len(topics) > 3 {
			topics = topics[:3]
		}
		parts = append(parts, "focuses on "+strings.Join(topics, ", "))
	}

	if abstract := strings.TrimSpace(paper.Abstract); len(abstract) > 50 {
		abstract = whitespaceRegex.ReplaceAllString(abstract, " ")
		if len(abstract) > 300 {
			abstract = abstract[:300] + "..."
		}
		parts = append(parts, "Abstract: "+abstract)
	} else {
		parts = append(parts, "presents research findings and analysis")
	}

	text := strings.Join(parts, ". ")
	if !strings.HasSuffix(text, ".") {
		text += "."
	}
	text = domain.TruncateToDisplayCap(text)

	a.logger.Debug().Str("paper_id", paper.ID.String()).Msg("generated fallback summary")

	return &domain.Summary{
		PaperID:     paper.ID.String(),
		Text:        text,
		Length:      len(text),
		Method:      domain.SummaryMethodFallback,
		KeyInsights: []string{},
		Topics:      paper.Topics,
		Title:       paper.Title,
	}
}

// prepareText assembles and cleans the text the scorer works on. The
// abstract is preferred when it is substantial, otherwise the first
// meaningful content lines are used.
func prepareText(paper *domain.Paper) string {
	var base string
	if abstract := strings.TrimSpace(paper.Abstract); len(abstract) > 100 {
		base = abstract
	} else if paper.Content != "" {
		var meaningful []string
		for _, line := range strings.Split(paper.Content, "\n") {
			line = strings.TrimSpace(line)
			if len(line) > 50 &&
				line != strings.ToUpper(line) &&
				!strings.HasPrefix(line, "http") &&
				!strings.HasPrefix(strings.ToLower(line), "doi:") &&
				!strings.HasPrefix(line, "References") &&
				!strings.HasPrefix(line, "Bibliography") &&
				!numericOnlyRegex.MatchString(line) {
				meaningful = append(meaningful, line)
			}
			if len(meaningful) >= 5 || len(strings.Join(meaningful, " ")) > 1500 {
				break
			}
		}
		if len(meaningful) > 0 {
			base = strings.Join(meaningful, " ")
		} else if len(paper.Content) > 1000 {
			base = paper.Content[:1000]
		} else {
			base = paper.Content
		}
	}

	text := base
	if paper.Title != "" {
		text = paper.Title + ". " + base
	}

	text = whitespaceRegex.ReplaceAllString(text, " ")
	text = specialCharRegex.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// splitSentences breaks text on sentence punctuation followed by an
// upper-case start, then filters fragments too short or too noisy to be
// useful summary material.
func splitSentences(text string) []string {
	var raw []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		if runes[i] != '.' && runes[i] != '!' && runes[i] != '?' {
			continue
		}
		// Break only when whitespace and a capital letter follow.
		j := i + 1
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		if j > i+1 && j < len(runes) && unicode.IsUpper(runes[j]) {
			raw = append(raw, string(runes[start:i+1]))
			start = j
			i = j - 1
		}
	}
	if start < len(runes) {
		raw = append(raw, string(runes[start:]))
	}

	var sentences []string
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if len(s) > 20 &&
			s != strings.ToUpper(s) &&
			!numericOnlyRegex.MatchString(s) &&
			len(strings.Fields(s)) > 3 {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

type scoredSentence struct {
	text  string
	score float64
	index int
}

// selectTopSentences scores every sentence, keeps an adaptive number of
// the best ones and rejoins them in original order.
func selectTopSentences(sentences []string) string {
	scored := scoreSentences(sentences)

	total := len(sentences)
	var keep int
	switch {
	case total <= 5:
		keep = 2
		if total < keep {
			keep = total
		}
	case total <= 10:
		keep = 3
	default:
		keep = total / 4
		if keep < 3 {
			keep = 3
		}
		if keep > 5 {
			keep = 5
		}
	}

	top := make([]scoredSentence, len(scored))
	copy(top, scored)
	for i := 0; i < keep; i++ {
		best := i
		for j := i + 1; j < len(top); j++ {
			if top[j].score > top[best].score {
				best = j
			}
		}
		top[i], top[best] = top[best], top[i]
	}
	top = top[:keep]

	// Restore document order.
	for i := 1; i < len(top); i++ {
		for j := i; j > 0 && top[j].index < top[j-1].index; j-- {
			top[j], top[j-1] = top[j-1], top[j]
		}
	}

	parts := make([]string, len(top))
	for i, s := range top {
		parts[i] = s.text
	}
	return strings.Join(parts, " ")
}

// scoreSentences ranks sentences by term frequency with bonuses for
// findings keywords, earlier position and ideal length, and a penalty for
// number-heavy sentences.
func scoreSentences(sentences []string) []scoredSentence {
	wordFreq := make(map[string]int)
	sentenceWords := make([][]string, len(sentences))
	for i, sentence := range sentences {
		words := contentWords(sentence)
		sentenceWords[i] = words
		for _, w := range words {
			wordFreq[w]++
		}
	}

	scored := make([]scoredSentence, len(sentences))
	for idx, sentence := range sentences {
		words := sentenceWords[idx]
		if len(words) == 0 {
			scored[idx] = scoredSentence{text: sentence, index: idx}
			continue
		}

		freqSum := 0
		keywordBonus := 0.0
		technical := 0
		for _, w := range words {
			freqSum += wordFreq[w]
			if _, ok := importantKeywords[w]; ok {
				keywordBonus += 2
			}
			if digitStartRegex.MatchString(w) {
				technical++
			}
		}
		baseScore := float64(freqSum) / float64(len(words))

		positionBonus := 1.0 + 0.1*float64(len(sentences)-idx)/float64(len(sentences))

		lengthBonus := 1.0
		sentenceLength := len(strings.Fields(sentence))
		switch {
		case sentenceLength >= 10 && sentenceLength <= 30:
			lengthBonus = 1.2
		case sentenceLength < 5 || sentenceLength > 50:
			lengthBonus = 0.5
		}

		technicalPenalty := 1.0
		if float64(technical)/float64(len(words)) > 0.3 {
			technicalPenalty = 0.7
		}

		scored[idx] = scoredSentence{
			text:  sentence,
			score: (baseScore + keywordBonus) * positionBonus * lengthBonus * technicalPenalty,
			index: idx,
		}
	}
	return scored
}

// contentWords extracts the lowercase non-stopword terms of a sentence.
func contentWords(sentence string) []string {
	var words []string
	for _, w := range wordRegex.FindAllString(sentence, -1) {
		w = strings.ToLower(w)
		if len(w) <= 2 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		words = append(words, w)
	}
	return words
}

// extractKeyInsights pulls findings-shaped phrases out of the text, up to
// the per-summary insight cap.
func extractKeyInsights(text string) []string {
	insights := []string{}
	for _, pattern := range insightPatterns {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			insight := strings.TrimSpace(match[1])
			if len(insight) > 20 && len(insight) < 200 {
				insights = append(insights, insight)
			}
			if len(insights) >= domain.MaxKeyInsights {
				return insights
			}
		}
	}
	return insights
}
