package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/FranksOps/pricewise/internal/bypass"
	"github.com/FranksOps/pricewise/internal/fingerprint"
	"github.com/FranksOps/pricewise/internal/metrics"
	"github.com/FranksOps/pricewise/pkg/httpclient"
	"github.com/FranksOps/pricewise/pkg/proxy"
	"github.com/FranksOps/pricewise/pkg/ratelimit"
	"github.com/FranksOps/pricewise/pkg/useragent"
	"github.com/google/uuid"
)

type contextKey string

const proxyKey contextKey = "proxy_url"

// defaultMaxBody bounds how much of a listing page is read into memory.
const defaultMaxBody = 4 << 20

// FetchConfig configures the direct HTTP fetcher.
type FetchConfig struct {
	Timeout time.Duration
	// MaxRedirects of 0 means 10; negative disables redirects.
	MaxRedirects int
	UseCookieJar bool
	MaxBodyBytes int64
	ProxyPool    *proxy.Pool
	UAPool       *useragent.Pool
	Fingerprint  fingerprint.Profile
	Limiter      *ratelimit.Limiter
	Detectors    []bypass.Detector
}

// Response is the raw outcome of one GET. Transport failures are reported in
// Error rather than as a Go error so callers can still inspect timing.
type Response struct {
	ID         string
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
	Duration   time.Duration
	Detection  bypass.Verdict
	FetchedAt  time.Time
	Error      string
}

// Failed reports whether the request never produced a response.
func (r *Response) Failed() bool { return r.Error != "" }

// Fetcher performs single URL fetches using the configured bypass strategies.
type Fetcher struct {
	config FetchConfig
	client *httpclient.Client
}

// NewFetcher initializes a Fetcher. A single client is held across requests
// so connection pooling and the cookie jar (if enabled) persist.
func NewFetcher(cfg FetchConfig) (*Fetcher, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRedirects == 0 {
		cfg.MaxRedirects = 10
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBody
	}
	if cfg.UAPool == nil {
		cfg.UAPool = useragent.NewPool(nil)
	}
	if cfg.Fingerprint == "" {
		cfg.Fingerprint = fingerprint.ProfileChrome
	}
	if cfg.Detectors == nil {
		cfg.Detectors = bypass.DefaultDetectors()
	}

	// Per-request proxy rotation: the proxy chosen in Fetch travels in the
	// request context and is read back here.
	proxyFunc := func(req *http.Request) (*url.URL, error) {
		if u, ok := req.Context().Value(proxyKey).(*url.URL); ok && u != nil {
			return u, nil
		}
		return http.ProxyFromEnvironment(req)
	}

	transport, err := fingerprint.Transport(cfg.Fingerprint, proxyFunc)
	if err != nil {
		return nil, fmt.Errorf("scraper: setup transport: %w", err)
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
		UseCookieJar: cfg.UseCookieJar,
		Transport:    transport,
	})
	if err != nil {
		return nil, fmt.Errorf("scraper: create client: %w", err)
	}

	return &Fetcher{config: cfg, client: client}, nil
}

// UserAgent returns the next User-Agent from the fetcher's pool.
func (f *Fetcher) UserAgent() string { return f.config.UAPool.Pick() }

// Fetch GETs targetURL and captures the outcome. The returned error is
// always nil; failures are reported through Response.Error.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string) (*Response, error) {
	start := time.Now()
	res := &Response{
		ID:        uuid.NewString(),
		URL:       targetURL,
		FetchedAt: start.UTC(),
	}
	defer f.record(res)

	if err := f.config.Limiter.Wait(ctx); err != nil {
		res.Error = fmt.Sprintf("rate limiter failed: %v", err)
		return res, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		res.Error = fmt.Sprintf("failed to create request: %v", err)
		res.Duration = time.Since(start)
		return res, nil
	}

	var activeProxy *url.URL
	if f.config.ProxyPool != nil {
		activeProxy = f.config.ProxyPool.Next()
	}
	if activeProxy != nil {
		req = req.WithContext(context.WithValue(req.Context(), proxyKey, activeProxy))
	}

	req.Header.Set("User-Agent", f.config.UAPool.Pick())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req.Context(), req)
	if err != nil {
		if activeProxy != nil {
			_ = f.config.ProxyPool.MarkFailure(activeProxy)
			metrics.ProxyFailures.WithLabelValues(activeProxy.String()).Inc()
		}
		res.Error = fmt.Sprintf("request failed: %v", err)
		res.Duration = time.Since(start)
		return res, nil
	}
	defer resp.Body.Close()

	if activeProxy != nil {
		_ = f.config.ProxyPool.MarkSuccess(activeProxy)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBodyBytes))
	if err != nil {
		res.Error = fmt.Sprintf("failed to read body: %v", err)
	}

	res.StatusCode = resp.StatusCode
	res.Header = resp.Header
	res.Body = body
	res.Duration = time.Since(start)
	res.Detection = bypass.Analyze(bypass.Response{
		StatusCode: res.StatusCode,
		Header:     res.Header,
		Body:       res.Body,
	}, f.config.Detectors)

	return res, nil
}

func (f *Fetcher) record(res *Response) {
	domain := ""
	if u, err := url.Parse(res.URL); err == nil {
		domain = u.Hostname()
	}
	metrics.RecordFetch(metrics.Fetch{
		Domain:       domain,
		StatusCode:   res.StatusCode,
		Failed:       res.Failed(),
		DetectedBot:  res.Detection.Detected,
		DetectionSrc: res.Detection.Source,
		Bytes:        len(res.Body),
	})
}
