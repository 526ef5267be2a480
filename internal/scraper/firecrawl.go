package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/FranksOps/pricewise/pkg/httpclient"
)

// DefaultFirecrawlEndpoint is the hosted scrape API.
const DefaultFirecrawlEndpoint = "https://api.firecrawl.dev/v0/scrape"

// FirecrawlConfig configures the Firecrawl content fetcher.
type FirecrawlConfig struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
	// IncludeChrome disables onlyMainContent, keeping nav, header and footer.
	IncludeChrome bool
}

// Firecrawl fetches rendered page content through the Firecrawl scrape API.
// It implements ContentFetcher.
type Firecrawl struct {
	client   *httpclient.Client
	endpoint string
	apiKey   string
	mainOnly bool
}

var _ ContentFetcher = (*Firecrawl)(nil)

type firecrawlRequest struct {
	URL         string `json:"url"`
	PageOptions struct {
		OnlyMainContent bool `json:"onlyMainContent"`
	} `json:"pageOptions"`
}

type firecrawlResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    struct {
		Content  string `json:"content"`
		Markdown string `json:"markdown"`
		Title    string `json:"title"`
		Metadata struct {
			Title string `json:"title"`
		} `json:"metadata"`
	} `json:"data"`
}

// NewFirecrawl creates a Firecrawl client.
func NewFirecrawl(cfg FirecrawlConfig) (*Firecrawl, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("firecrawl: api key is required")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultFirecrawlEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	client, err := httpclient.New(httpclient.Config{Timeout: cfg.Timeout})
	if err != nil {
		return nil, fmt.Errorf("firecrawl: %w", err)
	}
	return &Firecrawl{
		client:   client,
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		mainOnly: !cfg.IncludeChrome,
	}, nil
}

// FetchContent asks Firecrawl to scrape url.
func (f *Firecrawl) FetchContent(ctx context.Context, url string) (*Page, error) {
	var req firecrawlRequest
	req.URL = url
	req.PageOptions.OnlyMainContent = f.mainOnly

	var resp firecrawlResponse
	headers := map[string]string{"Authorization": "Bearer " + f.apiKey}
	if err := f.client.PostJSON(ctx, f.endpoint, headers, req, &resp); err != nil {
		return nil, fmt.Errorf("firecrawl: %s: %w", url, err)
	}
	if !resp.Success {
		reason := resp.Error
		if reason == "" {
			reason = "success=false"
		}
		return nil, fmt.Errorf("firecrawl: %s: %s: %w", url, reason, ErrRejected)
	}

	content := resp.Data.Content
	if strings.TrimSpace(content) == "" {
		content = resp.Data.Markdown
	}
	title := resp.Data.Title
	if title == "" {
		title = resp.Data.Metadata.Title
	}
	return &Page{URL: url, Title: title, Content: content}, nil
}
