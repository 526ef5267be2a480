package scraper

import (
	"context"
	"errors"
)

var (
	// ErrBlocked means a bot protection layer answered instead of the site.
	ErrBlocked = errors.New("blocked by bot protection")
	// ErrDisallowed means robots.txt forbids fetching the page.
	ErrDisallowed = errors.New("disallowed by robots.txt")
	// ErrRejected means the content service refused or failed the scrape.
	ErrRejected = errors.New("scrape rejected")
)

// Page is the readable content of one listing page.
type Page struct {
	URL     string
	Title   string
	Content string
}

// ContentFetcher turns a URL into readable page content. Implementations
// must honour ctx deadlines.
type ContentFetcher interface {
	FetchContent(ctx context.Context, url string) (*Page, error)
}
