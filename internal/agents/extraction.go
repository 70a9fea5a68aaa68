package agents

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/heliograph/research-digest/internal/domain"
	"github.com/heliograph/research-digest/internal/observability"
)

// maxExtractAbstractChars bounds the abstract lifted from an uploaded
// document.
const maxExtractAbstractChars = 100

var (
	doiRegex = regexp.MustCompile(`(?i)(?:doi:|https?://(?:dx\.)?doi\.org/)?\s*(10\.\d+/\S+)`)

	// Author line heuristics: "First Last, First Last" or "F. Last, F. Last".
	authorNameRegex     = regexp.MustCompile(`^([A-Z][a-z]+ [A-Z][a-z]+(?:,?\s+[A-Z][a-z]+ [A-Z][a-z]+)*)`)
	authorInitialsRegex = regexp.MustCompile(`^([A-Z]\. [A-Z][a-z]+(?:,?\s+[A-Z]\. [A-Z][a-z]+)*)`)
	authorSplitRegex    = regexp.MustCompile(`,|\sand\s|\s&\s`)
)

// ExtractionAgent turns uploaded documents into papers. Each file is one
// independent attempt: a file that cannot be read or parsed yields a
// fallback paper instead of failing the batch.
type ExtractionAgent struct {
	logger zerolog.Logger
}

var _ Extractor = (*ExtractionAgent)(nil)

// NewExtractionAgent creates an extraction agent.
func NewExtractionAgent(logger zerolog.Logger) *ExtractionAgent {
	return &ExtractionAgent{
		logger: observability.WithStageContext(logger, "extraction"),
	}
}

// Process extracts one paper per input file, in order.
func (a *ExtractionAgent) Process(ctx context.Context, req ExtractionRequest) []*domain.Paper {
	papers := make([]*domain.Paper, 0, len(req.FilePaths))

	for _, path := range req.FilePaths {
		if err := ctx.Err(); err != nil {
			a.logger.Warn().Err(err).Str("file", path).Msg("extraction canceled, remaining files become fallbacks")
			papers = append(papers, fallbackExtractionPaper(path, req.TopicHints))
			continue
		}

		paper, err := a.extractFile(path, req.TopicHints)
		if err != nil {
			a.logger.Error().Err(err).Str("file", path).Msg("extraction failed, using fallback paper")
			paper = fallbackExtractionPaper(path, req.TopicHints)
		} else {
			a.logger.Info().Str("file", filepath.Base(path)).Str("title", paper.Title).Msg("extracted document")
		}
		papers = append(papers, paper)
	}

	return papers
}

// extractFile reads a plain-text document and lifts title, authors,
// abstract and DOI out of its leading lines. Binary formats are not
// parsed and degrade to a fallback paper.
func (a *ExtractionAgent) extractFile(path string, topicHints []string) (*domain.Paper, error) {
	if !strings.EqualFold(filepath.Ext(path), ".txt") {
		return nil, domain.NewValidationError("file", "unsupported format "+filepath.Ext(path))
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	text := string(raw)
	meta := extractMetadata(text)

	paper := domain.NewPaper(meta.title, meta.abstract, text, domain.SourceTypeUpload)
	paper.Authors = meta.authors
	paper.DOI = meta.doi
	paper.Topics = append(paper.Topics, topicHints...)
	return paper, nil
}

// fallbackExtractionPaper is the degraded result for an unreadable or
// unsupported file.
func fallbackExtractionPaper(path string, topicHints []string) *domain.Paper {
	paper := domain.NewPaper(
		"Document: "+filepath.Base(path),
		"Content extraction failed or unsupported file format",
		"Content extraction failed",
		domain.SourceTypeUpload,
	)
	paper.Authors = []string{"Unknown Author"}
	paper.Topics = append(paper.Topics, topicHints...)
	return paper
}

type documentMetadata struct {
	title    string
	authors  []string
	abstract string
	doi      string
}

// extractMetadata applies line heuristics to the head of the document.
func extractMetadata(text string) documentMetadata {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}

	meta := documentMetadata{
		title: extractTitle(lines),
	}

	if m := doiRegex.FindStringSubmatch(text); m != nil {
		meta.doi = m[1]
	}

	meta.abstract = extractAbstract(lines)
	meta.authors = extractAuthors(lines)

	if meta.title == "" {
		meta.title = "Extracted Document"
	}
	if len(meta.authors) == 0 {
		meta.authors = []string{"Unknown Author"}
	}
	if meta.abstract == "" {
		meta.abstract = "No abstract extracted"
	}
	return meta
}

// extractTitle picks the title from the first few lines, preferring the
// first line when it is long enough, otherwise the highest scoring
// candidate (longer lines earlier in the document score higher).
func extractTitle(lines []string) string {
	type candidate struct {
		score int
		line  string
		index int
	}

	var candidates []candidate
	for i, line := range lines {
		if i >= 5 {
			break
		}
		lower := strings.ToLower(line)
		if len(line) <= 10 ||
			strings.HasPrefix(lower, "abstract") ||
			strings.HasPrefix(lower, "introduction") ||
			strings.HasPrefix(lower, "keywords") ||
			strings.HasPrefix(lower, "author") {
			continue
		}
		candidates = append(candidates, candidate{
			score: len(line)*2 - i*10,
			line:  line,
			index: i,
		})
	}

	if len(candidates) == 0 {
		return ""
	}

	for _, c := range candidates {
		if c.index == 0 && len(c.line) > 15 {
			return c.line
		}
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.score > best.score {
			best = c
		}
	}
	return best.line
}

// extractAbstract locates the "Abstract" section and accumulates whole
// sentences up to the display budget.
func extractAbstract(lines []string) string {
	start := -1
	for i, line := range lines {
		if strings.HasPrefix(strings.ToLower(line), "abstract") {
			start = i
			break
		}
	}
	if start == -1 {
		return ""
	}

	endMarkers := []string{"introduction", "keywords", "key words", "1.", "i.", "background"}
	end := start + 1
	for ; end < len(lines) && end < start+20; end++ {
		lower := strings.ToLower(lines[end])
		stop := false
		for _, marker := range endMarkers {
			if strings.HasPrefix(lower, marker) {
				stop = true
				break
			}
		}
		if stop {
			break
		}
	}
	if end > start+15 {
		end = start + 15
	}

	section := lines[start:end]
	if strings.HasPrefix(strings.ToLower(section[0]), "abstract") {
		section = section[1:]
	}

	abstract := strings.TrimSpace(strings.Join(section, " "))
	return capAbstract(abstract)
}

// capAbstract bounds the abstract to whole sentences within the budget,
// falling back to a hard cut when the first sentence is already too long.
func capAbstract(abstract string) string {
	if len(abstract) <= maxExtractAbstractChars {
		return abstract
	}

	sentences := strings.Split(abstract, ". ")
	if len(sentences) > 1 {
		var b strings.Builder
		for _, sentence := range sentences {
			if b.Len()+len(sentence)+2 > maxExtractAbstractChars {
				break
			}
			b.WriteString(sentence)
			b.WriteString(". ")
		}
		if capped := strings.TrimSpace(b.String()); capped != "" {
			return capped
		}
	}
	return abstract[:maxExtractAbstractChars] + "..."
}

// extractAuthors scans the lines after the title for name-shaped text.
func extractAuthors(lines []string) []string {
	for i, line := range lines {
		if i == 0 {
			continue
		}
		if i >= 6 {
			break
		}
		for _, re := range []*regexp.Regexp{authorNameRegex, authorInitialsRegex} {
			m := re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			var authors []string
			for _, part := range authorSplitRegex.Split(m[1], -1) {
				if part = strings.TrimSpace(part); part != "" {
					authors = append(authors, part)
				}
			}
			if len(authors) > 0 {
				return authors
			}
		}
	}
	return nil
}
