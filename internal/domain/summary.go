package domain

import "strings"

// SummaryMethod identifies how a summary was produced.
type SummaryMethod string

const (
	SummaryMethodAbstractive SummaryMethod = "abstractive"
	SummaryMethodExtractive  SummaryMethod = "extractive"
	SummaryMethodFallback    SummaryMethod = "fallback"
)

// SummaryMaxChars is the short-form display cap. Every summary respects
// it regardless of the method that produced it.
const SummaryMaxChars = 150

// MaxKeyInsights bounds the derived insight snippets per summary.
const MaxKeyInsights = 3

// Summary is the per-paper summarization result.
type Summary struct {
	// PaperID is the id of the summarized paper.
	PaperID string `json:"paper_id"`

	// Text is the summary text, bounded by SummaryMaxChars.
	Text string `json:"summary"`

	// Length is the character length of Text.
	Length int `json:"length"`

	// Method records which summarization path produced the text.
	Method SummaryMethod `json:"method"`

	// KeyInsights holds up to MaxKeyInsights short derived snippets.
	KeyInsights []string `json:"key_insights"`

	// Topics and Title are echoed from the paper for display convenience.
	Topics []string `json:"topics"`
	Title  string   `json:"title"`
}

// TruncateToDisplayCap bounds text to the short-form cap, preferring a
// sentence boundary, then a word boundary, before cutting mid-word.
func TruncateToDisplayCap(text string) string {
	if len(text) <= SummaryMaxChars {
		return text
	}
	truncated := TruncateBytes(text, SummaryMaxChars)
	lastPeriod := strings.LastIndexByte(truncated, '.')
	lastSpace := strings.LastIndexByte(truncated, ' ')
	switch {
	case lastPeriod > SummaryMaxChars-50:
		return truncated[:lastPeriod+1]
	case lastSpace > SummaryMaxChars-20:
		return truncated[:lastSpace] + "..."
	default:
		return truncated + "..."
	}
}
