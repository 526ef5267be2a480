package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
)

// RobotsTxtAuditor fetches, caches and evaluates robots.txt per host.
type RobotsTxtAuditor struct {
	fetcher *Fetcher
	logger  *slog.Logger
	mu      sync.Mutex
	cache   map[string]*robotsEntry
}

type robotsEntry struct {
	once sync.Once
	data *robotstxt.RobotsData
	err  error
}

// NewRobotsTxtAuditor creates an auditor fetching through fetcher.
func NewRobotsTxtAuditor(fetcher *Fetcher, logger *slog.Logger) *RobotsTxtAuditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &RobotsTxtAuditor{
		fetcher: fetcher,
		logger:  logger,
		cache:   make(map[string]*robotsEntry),
	}
}

// IsAllowed reports whether userAgent may fetch targetURL. Hosts whose
// robots.txt is missing or unreadable are allowed.
func (r *RobotsTxtAuditor) IsAllowed(ctx context.Context, targetURL string, userAgent string) (bool, error) {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false, fmt.Errorf("invalid url: %w", err)
	}

	host := u.Scheme + "://" + u.Host
	data, err := r.rules(ctx, host)
	if err != nil {
		r.logger.Debug("robots.txt fetch failed, defaulting to allow", "host", host, "err", err)
		return true, nil
	}
	if data == nil {
		return true, nil
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return data.FindGroup(userAgent).Test(path), nil
}

// rules returns the cached rules for host, fetching them on first use. A nil
// result means "no rules". Callers for the same new host wait on the one fetch
// in flight; other hosts are not blocked by it.
func (r *RobotsTxtAuditor) rules(ctx context.Context, host string) (*robotstxt.RobotsData, error) {
	r.mu.Lock()
	e, ok := r.cache[host]
	if !ok {
		e = &robotsEntry{}
		r.cache[host] = e
	}
	r.mu.Unlock()

	e.once.Do(func() {
		e.data, e.err = r.fetch(ctx, host)
	})
	return e.data, e.err
}

func (r *RobotsTxtAuditor) fetch(ctx context.Context, host string) (*robotstxt.RobotsData, error) {
	res, _ := r.fetcher.Fetch(ctx, host+"/robots.txt")
	if res.Failed() {
		return nil, fmt.Errorf("fetch error: %s", res.Error)
	}
	if res.StatusCode >= 400 {
		return nil, nil
	}

	parsed, err := robotstxt.FromBytes(res.Body)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	return parsed, nil
}
