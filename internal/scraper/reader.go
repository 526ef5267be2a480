package scraper

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// ReaderConfig configures the direct content fetcher.
type ReaderConfig struct {
	RespectRobots bool
	// RobotsAgent is matched against robots.txt groups; "*" when empty.
	RobotsAgent string
}

// Reader fetches listing pages directly and reduces them to plain text.
// It implements ContentFetcher.
type Reader struct {
	fetcher *Fetcher
	auditor *RobotsTxtAuditor
	agent   string
	logger  *slog.Logger
}

var _ ContentFetcher = (*Reader)(nil)

// NewReader creates a Reader on top of fetcher.
func NewReader(fetcher *Fetcher, cfg ReaderConfig, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RobotsAgent == "" {
		cfg.RobotsAgent = "*"
	}
	r := &Reader{fetcher: fetcher, agent: cfg.RobotsAgent, logger: logger}
	if cfg.RespectRobots {
		r.auditor = NewRobotsTxtAuditor(fetcher, logger)
	}
	return r
}

// FetchContent GETs rawURL and returns its readable text. Transport errors,
// HTTP errors and bot walls are all reported as errors.
func (r *Reader) FetchContent(ctx context.Context, rawURL string) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("reader: invalid url %q", rawURL)
	}

	if r.auditor != nil {
		allowed, err := r.auditor.IsAllowed(ctx, rawURL, r.agent)
		if err == nil && !allowed {
			return nil, fmt.Errorf("reader: %s: %w", rawURL, ErrDisallowed)
		}
	}

	res, _ := r.fetcher.Fetch(ctx, rawURL)
	if res.Failed() {
		return nil, fmt.Errorf("reader: %s", res.Error)
	}
	if res.Detection.Detected {
		return nil, fmt.Errorf("reader: %s (%s): %w", rawURL, res.Detection.Source, ErrBlocked)
	}
	if res.StatusCode >= 400 {
		return nil, fmt.Errorf("reader: %s: unexpected status %d", rawURL, res.StatusCode)
	}

	r.logger.Debug("fetched listing page", "url", rawURL, "status", res.StatusCode, "bytes", len(res.Body), "duration", res.Duration)

	if !isHTML(res.Header.Get("Content-Type")) {
		return &Page{URL: rawURL, Content: strings.TrimSpace(string(res.Body))}, nil
	}
	return extractPage(u, res.Body)
}

func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return true
	}
	return mt == "text/html" || mt == "application/xhtml+xml"
}

// extractPage reduces an HTML document to its main text. Readability isolates
// the article body; when it finds nothing the whole visible body is used.
// Structured price markup (schema.org, Open Graph) is appended as "Price:"
// lines because readability usually drops buy boxes.
func extractPage(u *url.URL, body []byte) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("reader: parse html: %w", err)
	}

	page := &Page{URL: u.String(), Title: collapse(doc.Find("title").First().Text())}

	var text string
	rp := readability.NewParser()
	article, err := rp.Parse(bytes.NewReader(body), u)
	if err == nil {
		if article.Title != "" {
			page.Title = collapse(article.Title)
		}
		text = htmlText(article.Content)
	}
	if text == "" {
		visible := doc.Find("body").Clone()
		visible.Find("script, style, noscript, template").Remove()
		visible.Find("p, li, td, th, h1, h2, h3, h4, br, div").AppendHtml(" ")
		text = collapse(visible.Text())
	}

	hints := structuredPrices(doc)
	if len(hints) > 0 {
		text = strings.TrimSpace(text + "\n" + strings.Join(hints, "\n"))
	}

	page.Content = text
	return page, nil
}

func htmlText(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	// keep block boundaries so adjacent cells don't fuse into one number
	doc.Find("p, li, td, th, h1, h2, h3, h4, br, div").AppendHtml(" ")
	return collapse(doc.Text())
}

func structuredPrices(doc *goquery.Document) []string {
	var hints []string
	add := func(v string) {
		v = strings.TrimSpace(v)
		if v != "" {
			hints = append(hints, "Price: $"+strings.TrimPrefix(v, "$"))
		}
	}
	doc.Find(`meta[property="product:price:amount"], meta[property="og:price:amount"]`).Each(func(_ int, s *goquery.Selection) {
		add(s.AttrOr("content", ""))
	})
	doc.Find(`[itemprop="price"]`).Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr("content"); ok {
			add(v)
			return
		}
		add(s.Text())
	})
	return hints
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
