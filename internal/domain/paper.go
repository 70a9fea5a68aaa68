// Package domain provides domain models and business logic for the research digest service.
package domain

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Display budgets applied when papers are serialized for API responses.
const (
	// AbstractPreviewWords is the maximum number of words kept in an
	// abstract preview.
	AbstractPreviewWords = 100

	// ContentPreviewChars is the number of characters kept in a content
	// preview when the content is longer than ContentPreviewThreshold.
	ContentPreviewChars = 100

	// ContentPreviewThreshold is the content length above which the
	// preview is truncated.
	ContentPreviewThreshold = 150
)

// SourceType identifies where a paper came from.
type SourceType string

const (
	SourceTypeArXiv    SourceType = "arxiv"
	SourceTypeUpload   SourceType = "upload"
	SourceTypeFallback SourceType = "fallback"
)

// Paper represents a research paper flowing through the pipeline.
// A paper is created by the discovery or extraction agent, owned by the
// coordinator for the duration of one workflow run, and discarded after
// the run serializes its results.
type Paper struct {
	// ID is the immutable opaque identifier assigned at creation.
	ID uuid.UUID

	// Title is the paper title.
	Title string

	// Authors is the ordered author list. May be empty.
	Authors []string

	// Abstract is the short descriptive text.
	Abstract string

	// Content is the full text. May be large.
	Content string

	// DOI is the document identifier, if known.
	DOI string

	// URL is the origin reference, if known.
	URL string

	// Source records which agent produced the paper.
	Source SourceType

	// Topics is assigned exactly once per run by the classification
	// agent, before the summarization agent consumes the paper.
	Topics []string
}

// NewPaper creates a Paper with a generated ID and no topics.
func NewPaper(title, abstract, content string, source SourceType) *Paper {
	return &Paper{
		ID:       uuid.New(),
		Title:    title,
		Abstract: abstract,
		Content:  content,
		Source:   source,
	}
}

// PaperView is the truncated representation of a paper embedded in API
// result payloads. Abstract and content are bounded by the display budgets.
type PaperView struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Authors  []string `json:"authors"`
	Abstract string   `json:"abstract"`
	Content  string   `json:"content"`
	DOI      string   `json:"doi,omitempty"`
	URL      string   `json:"url,omitempty"`
	Topics   []string `json:"topics"`
}

// View returns the bounded representation of the paper for API responses.
func (p *Paper) View() PaperView {
	authors := p.Authors
	if authors == nil {
		authors = []string{}
	}
	topics := p.Topics
	if topics == nil {
		topics = []string{}
	}
	return PaperView{
		ID:       p.ID.String(),
		Title:    p.Title,
		Authors:  authors,
		Abstract: TruncateWords(p.Abstract, AbstractPreviewWords),
		Content:  ContentPreview(p.Content),
		DOI:      p.DOI,
		URL:      p.URL,
		Topics:   topics,
	}
}

// TruncateWords truncates text to at most maxWords words, appending an
// ellipsis when anything was cut.
func TruncateWords(text string, maxWords int) string {
	if text == "" {
		return ""
	}
	words := strings.Fields(text)
	if len(words) <= maxWords {
		return text
	}
	return strings.Join(words[:maxWords], " ") + "..."
}

// ContentPreview bounds full-text content for display. Content at or
// below the threshold passes through unchanged.
func ContentPreview(content string) string {
	if len(content) <= ContentPreviewThreshold {
		return content
	}
	return TruncateBytes(content, ContentPreviewChars) + "..."
}

// TruncateBytes cuts s at or just before n bytes without splitting a
// multibyte rune, so truncated text stays valid UTF-8.
func TruncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
