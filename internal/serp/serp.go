package serp

import (
	"context"
	"strings"
)

// MaxResults is the number of organic results the pipeline works with.
const MaxResults = 5

// Result is one organic search result. Providers put the link under either
// "link" or "url" depending on their schema; use Href to read it.
type Result struct {
	Title   string `json:"title"`
	Link    string `json:"link,omitempty"`
	URL     string `json:"url,omitempty"`
	Snippet string `json:"snippet"`
}

// Href returns the result's link, checking both recognised key names.
func (r Result) Href() string {
	if link := strings.TrimSpace(r.Link); link != "" {
		return link
	}
	return strings.TrimSpace(r.URL)
}

// Provider abstracts a search engine that returns organic results for a
// query. limit caps the number of results; providers return them in
// relevance order.
type Provider interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > MaxResults {
		return MaxResults
	}
	return limit
}
