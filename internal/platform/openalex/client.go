// Package openalex implements search.Searcher on the OpenAlex works API.
package openalex

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/athenus/review-api/internal/config"
	"github.com/athenus/review-api/internal/search"
)

const (
	defaultTimeout = 30 * time.Second
	maxPerPage     = 200
)

// Client queries the OpenAlex works endpoint. Requests carry the configured
// mailto parameter to join OpenAlex's polite pool when one is set.
type Client struct {
	baseURL    string
	mailTo     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client from the search configuration.
func NewClient(cfg config.SearchConfig, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		mailTo:     cfg.MailTo,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger.With("component", "openalex_client"),
	}
}

// SearchPapers implements search.Searcher.
func (c *Client) SearchPapers(ctx context.Context, query string, limit int) ([]search.Paper, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query cannot be empty", search.ErrInvalidQuery)
	}
	if limit <= 0 || limit > maxPerPage {
		limit = maxPerPage
	}

	params := url.Values{}
	params.Set("search", query)
	params.Set("per-page", strconv.Itoa(limit))
	params.Set("sort", "relevance_score:desc")
	if c.mailTo != "" {
		params.Set("mailto", c.mailTo)
	}

	endpoint := c.baseURL + "/works?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build request: %v", search.ErrSearchFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("openalex request failed", "query", query, "error", err)
		return nil, fmt.Errorf("%w: %v", search.ErrSearchFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("openalex returned non-200 status",
			"query", query, "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: unexpected status %d", search.ErrSearchFailed, resp.StatusCode)
	}

	var body worksResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", search.ErrSearchFailed, err)
	}

	papers := make([]search.Paper, 0, len(body.Results))
	for _, work := range body.Results {
		papers = append(papers, work.toPaper())
	}

	c.logger.Debug("openalex search completed",
		"query", query, "results", len(papers))
	return papers, nil
}

// worksResponse is the subset of the OpenAlex works listing we consume.
type worksResponse struct {
	Results []work `json:"results"`
}

type work struct {
	DisplayName     string `json:"display_name"`
	PublicationYear int    `json:"publication_year"`
	DOI             string `json:"doi"`
	ID              string `json:"id"`
	CitedByCount    int    `json:"cited_by_count"`
	Authorships     []struct {
		Author struct {
			DisplayName string `json:"display_name"`
		} `json:"author"`
	} `json:"authorships"`
	PrimaryLocation struct {
		Source struct {
			DisplayName string `json:"display_name"`
		} `json:"source"`
	} `json:"primary_location"`
	AbstractInvertedIndex map[string][]int `json:"abstract_inverted_index"`
}

func (w work) toPaper() search.Paper {
	authors := make([]string, 0, len(w.Authorships))
	for _, authorship := range w.Authorships {
		if authorship.Author.DisplayName != "" {
			authors = append(authors, authorship.Author.DisplayName)
		}
	}

	return search.Paper{
		Title:         w.DisplayName,
		Authors:       authors,
		Abstract:      reconstructAbstract(w.AbstractInvertedIndex),
		Year:          w.PublicationYear,
		Venue:         w.PrimaryLocation.Source.DisplayName,
		DOI:           strings.TrimPrefix(w.DOI, "https://doi.org/"),
		URL:           w.ID,
		CitationCount: w.CitedByCount,
	}
}

// reconstructAbstract rebuilds the abstract text from OpenAlex's inverted
// index representation (word -> positions).
func reconstructAbstract(index map[string][]int) string {
	if len(index) == 0 {
		return ""
	}

	type positioned struct {
		pos  int
		word string
	}
	var words []positioned
	for word, positions := range index {
		for _, pos := range positions {
			words = append(words, positioned{pos: pos, word: word})
		}
	}
	sort.Slice(words, func(i, j int) bool { return words[i].pos < words[j].pos })

	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.word
	}
	return strings.Join(parts, " ")
}
