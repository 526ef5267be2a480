package serp

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/FranksOps/pricewise/internal/scraper"
	"github.com/PuerkitoBio/goquery"
)

// DefaultGoogleURL is the HTML results page GoogleScrape reads.
const DefaultGoogleURL = "https://www.google.com/search"

// PageGetter is the subset of scraper.Fetcher GoogleScrape needs.
type PageGetter interface {
	Fetch(ctx context.Context, targetURL string) (*scraper.Response, error)
}

// GoogleScrape reads organic results from Google's HTML results page through
// the direct fetcher, so TLS fingerprinting, User-Agent rotation, proxies and
// rate limiting all apply. Use it when no search API key is available.
type GoogleScrape struct {
	getter  PageGetter
	baseURL string
	logger  *slog.Logger
}

var _ Provider = (*GoogleScrape)(nil)

// NewGoogleScrape creates the provider. An empty baseURL means DefaultGoogleURL.
func NewGoogleScrape(getter PageGetter, baseURL string, logger *slog.Logger) *GoogleScrape {
	if baseURL == "" {
		baseURL = DefaultGoogleURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GoogleScrape{getter: getter, baseURL: baseURL, logger: logger}
}

// Search fetches one results page for query and returns up to limit results.
func (g *GoogleScrape) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	limit = clampLimit(limit)

	u, err := url.Parse(g.baseURL)
	if err != nil {
		return nil, fmt.Errorf("google: base url: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("num", strconv.Itoa(limit*2))
	q.Set("hl", "en")
	u.RawQuery = q.Encode()

	res, _ := g.getter.Fetch(ctx, u.String())
	if res.Failed() {
		return nil, fmt.Errorf("google: %s", res.Error)
	}
	if res.Detection.Detected {
		return nil, fmt.Errorf("google: challenged by %s: %w", res.Detection.Source, scraper.ErrBlocked)
	}
	if res.StatusCode != 200 {
		return nil, fmt.Errorf("google: unexpected status %d", res.StatusCode)
	}

	results, err := parseGoogleResults(res.Body, limit)
	if err != nil {
		return nil, err
	}
	g.logger.Debug("parsed google results", "query", query, "count", len(results))
	return results, nil
}

// parseGoogleResults extracts organic results: every anchor wrapping an h3
// heading is a result title; its snippet sits in the enclosing div.g block.
func parseGoogleResults(body []byte, limit int) ([]Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("google: parse html: %w", err)
	}

	seen := make(map[string]struct{})
	var results []Result
	doc.Find("a:has(h3)").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		link := unwrapGoogleLink(a.AttrOr("href", ""))
		if link == "" {
			return true
		}
		if _, dup := seen[link]; dup {
			return true
		}
		seen[link] = struct{}{}

		block := a.Closest("div.g")
		snippet := block.Find("div.VwiC3b, span.aCOpRe, div[data-sncf]").First().Text()

		results = append(results, Result{
			Title:   strings.TrimSpace(a.Find("h3").First().Text()),
			Link:    link,
			Snippet: strings.Join(strings.Fields(snippet), " "),
		})
		return len(results) < limit
	})
	return results, nil
}

// unwrapGoogleLink resolves "/url?q=" redirect links and drops anything that
// isn't an external http(s) URL.
func unwrapGoogleLink(href string) string {
	if strings.HasPrefix(href, "/url?") {
		u, err := url.Parse(href)
		if err != nil {
			return ""
		}
		href = u.Query().Get("q")
	}
	u, err := url.Parse(href)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	host := u.Hostname()
	if host == "google.com" || strings.HasSuffix(host, ".google.com") {
		return ""
	}
	return u.String()
}
