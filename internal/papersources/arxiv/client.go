// Package arxiv implements the papersources.PaperSource interface for the
// arXiv Atom API.
package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/heliograph/research-digest/internal/domain"
	"github.com/heliograph/research-digest/internal/papersources"
)

const (
	// DefaultBaseURL is the default arXiv API base URL.
	DefaultBaseURL = "https://export.arxiv.org/api"

	// DefaultRateLimit is the default rate limit (3 requests per second).
	DefaultRateLimit = 3.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 3

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per request.
	DefaultMaxResults = 10

	// sourceName is the human-readable name for this source.
	sourceName = "arXiv"
)

// arxivIDRegex extracts the arXiv ID from the abstract page URL.
// Matches patterns like "http://arxiv.org/abs/2301.12345v1" or "http://arxiv.org/abs/hep-th/9901001v1".
var arxivIDRegex = regexp.MustCompile(`arxiv\.org/abs/(.+)$`)

// categoryFamilies maps source-independent category family names to arXiv
// category wildcards.
var categoryFamilies = map[string]string{
	"cs":      "cat:cs.*",
	"physics": "cat:physics.*",
	"math":    "cat:math.*",
	"stat":    "cat:stat.*",
	"econ":    "cat:econ.*",
	"bio":     "cat:q-bio.*",
	"finance": "cat:q-fin.*",
}

// Config holds configuration for the arXiv client.
type Config struct {
	// BaseURL is the arXiv API base URL.
	BaseURL string

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxResults is the maximum results to return per search request.
	MaxResults int

	// Enabled indicates whether this source is enabled for searches.
	Enabled bool
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
	if c.MaxResults == 0 {
		c.MaxResults = DefaultMaxResults
	}
}

// Client implements the papersources.PaperSource interface for arXiv.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

// Ensure Client implements PaperSource interface.
var _ papersources.PaperSource = (*Client)(nil)

// New creates a new arXiv client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: cfg.BurstSize,
		UserAgent: "ResearchDigest/1.0",
	})

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// NewWithHTTPClient creates a new arXiv client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Search queries arXiv for papers matching the given parameters.
func (c *Client) Search(ctx context.Context, params papersources.SearchParams) (*papersources.SearchResult, error) {
	startTime := time.Now()

	searchURL, err := c.buildSearchURL(params)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, domain.NewExternalAPIError(
			sourceName,
			resp.StatusCode,
			string(body),
			nil,
		)
	}

	// Parse the Atom XML response (limit body to 10MB).
	var feed Feed
	if err := xml.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	papers := make([]*domain.Paper, 0, len(feed.Entries))
	for i := range feed.Entries {
		paper := c.entryToPaper(&feed.Entries[i])
		if paper != nil {
			papers = append(papers, paper)
		}
	}

	return &papersources.SearchResult{
		Papers:         papers,
		TotalResults:   feed.TotalResults,
		Source:         domain.SourceTypeArXiv,
		SearchDuration: time.Since(startTime),
	}, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeArXiv
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// buildSearchURL constructs the arXiv search API URL. The free-text query,
// required terms and excluded terms are combined into a single search_query
// expression; year bounds become a submittedDate range and the category
// family becomes a cat: wildcard clause.
func (c *Client) buildSearchURL(params papersources.SearchParams) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/query"

	terms := []string{"all:" + params.Query}
	for _, t := range params.MustInclude {
		terms = append(terms, "all:"+t)
	}
	for _, t := range params.MustExclude {
		terms = append(terms, "ANDNOT all:"+t)
	}
	searchQuery := strings.Join(terms, " AND ")

	if filter := buildYearFilter(params.YearFrom, params.YearTo); filter != "" {
		searchQuery += " AND " + filter
	}

	if params.Category != "" {
		searchQuery += " AND " + categoryClause(params.Category)
	}

	query := url.Values{}
	query.Set("search_query", searchQuery)
	query.Set("start", "0")

	maxResults := params.MaxResults
	if maxResults == 0 {
		maxResults = c.config.MaxResults
	}
	query.Set("max_results", strconv.Itoa(maxResults))

	// Most relevant first
	query.Set("sortBy", "relevance")
	query.Set("sortOrder", "descending")

	baseURL.RawQuery = query.Encode()
	return baseURL.String(), nil
}

// buildYearFilter constructs the arXiv submittedDate range clause. A missing
// upper bound defaults to the current year; a missing lower bound defaults
// to 1990 (arXiv started in 1991). Returns "" when no bound is set.
func buildYearFilter(from, to int) string {
	if from == 0 && to == 0 {
		return ""
	}
	if from == 0 {
		from = 1990
	}
	if to == 0 {
		to = time.Now().Year()
	}
	return fmt.Sprintf("submittedDate:[%d0101000000 TO %d1231235959]", from, to)
}

// categoryClause maps a category family name to an arXiv cat: clause.
// Unknown families are passed through as a prefix wildcard.
func categoryClause(family string) string {
	if clause, ok := categoryFamilies[strings.ToLower(family)]; ok {
		return clause
	}
	return "cat:" + family + "*"
}

// entryToPaper converts an arXiv Atom entry to a domain Paper. The abstract
// doubles as content because the Atom feed carries no full text.
func (c *Client) entryToPaper(entry *Entry) *domain.Paper {
	if entry == nil {
		return nil
	}

	// Normalize title and abstract (arXiv includes leading/trailing whitespace and newlines)
	title := normalizeWhitespace(entry.Title)
	abstract := normalizeWhitespace(entry.Summary)
	if title == "" {
		return nil
	}

	paper := domain.NewPaper(title, abstract, abstract, domain.SourceTypeArXiv)

	for _, a := range entry.Authors {
		name := strings.TrimSpace(a.Name)
		if name == "" {
			continue
		}
		paper.Authors = append(paper.Authors, name)
	}

	// Prefer the abstract page link; fall back to the entry ID, which is
	// the same URL in practice.
	absURL := ""
	for _, link := range entry.Links {
		if strings.Contains(link.Href, "arxiv.org/abs/") {
			absURL = link.Href
			break
		}
	}
	if absURL == "" {
		absURL = entry.ID
	}
	paper.URL = absURL

	if arxivID := extractArXivID(absURL); arxivID != "" {
		paper.DOI = "arXiv:" + arxivID
	}

	return paper
}

// extractArXivID extracts the arXiv ID from the abstract page URL.
// Input: "http://arxiv.org/abs/2301.12345v1" yields "2301.12345v1".
func extractArXivID(entryURL string) string {
	matches := arxivIDRegex.FindStringSubmatch(entryURL)
	if len(matches) < 2 {
		return ""
	}
	return matches[1]
}

// normalizeWhitespace trims and collapses multiple whitespace characters.
func normalizeWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
