// Package search provides the interface for querying external academic
// databases. The orchestration core treats results as opaque bibliographic
// records; provider specifics live under internal/platform.
package search

import (
	"context"
	"errors"
)

// Common errors returned by search implementations
var (
	// ErrSearchFailed is returned when a search request fails outright
	ErrSearchFailed = errors.New("academic search failed")

	// ErrInvalidQuery is returned when the query is empty or malformed
	ErrInvalidQuery = errors.New("invalid search query")
)

// Paper is one bibliographic record returned by an academic search backend.
type Paper struct {
	Title         string   `json:"title"`
	Authors       []string `json:"authors"`
	Abstract      string   `json:"abstract,omitempty"`
	Year          int      `json:"year,omitempty"`
	Venue         string   `json:"venue,omitempty"`
	DOI           string   `json:"doi,omitempty"`
	URL           string   `json:"url,omitempty"`
	CitationCount int      `json:"citation_count,omitempty"`
}

// Searcher defines the interface for academic database queries.
type Searcher interface {
	// SearchPapers returns up to limit papers matching the query, most
	// relevant first.
	SearchPapers(ctx context.Context, query string, limit int) ([]Paper, error)
}
