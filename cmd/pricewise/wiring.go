package main

import (
	"context"
	"fmt"

	"github.com/FranksOps/pricewise/internal/config"
	"github.com/FranksOps/pricewise/internal/fingerprint"
	"github.com/FranksOps/pricewise/internal/logging"
	"github.com/FranksOps/pricewise/internal/pipeline"
	"github.com/FranksOps/pricewise/internal/predict"
	"github.com/FranksOps/pricewise/internal/scraper"
	"github.com/FranksOps/pricewise/internal/serp"
	"github.com/FranksOps/pricewise/internal/storage"
	"github.com/FranksOps/pricewise/internal/storage/csvbackend"
	"github.com/FranksOps/pricewise/internal/storage/jsonbackend"
	"github.com/FranksOps/pricewise/internal/storage/postgres"
	"github.com/FranksOps/pricewise/internal/storage/sqlite"
	"github.com/FranksOps/pricewise/pkg/proxy"
	"github.com/FranksOps/pricewise/pkg/ratelimit"
	"github.com/FranksOps/pricewise/pkg/useragent"
)

// newDirectFetcher builds the fingerprinted HTTP fetcher shared by the
// direct content reader and the google search provider.
func newDirectFetcher(fc config.FetchConfig) (*scraper.Fetcher, error) {
	profile, err := fingerprint.ParseProfile(fc.Fingerprint)
	if err != nil {
		return nil, err
	}

	uas, err := useragent.NewPoolWithStrategy(fc.UserAgents, useragent.Strategy(fc.UserAgentOrder))
	if err != nil {
		return nil, err
	}

	var proxies *proxy.Pool
	if len(fc.Proxies) > 0 || fc.ProxyFile != "" {
		proxies, err = proxy.NewPool(proxy.Config{
			URLs:        fc.Proxies,
			MaxFailures: fc.ProxyMaxFailures,
			Cooldown:    fc.ProxyCooldown,
		})
		if err != nil {
			return nil, fmt.Errorf("proxies: %w", err)
		}
		if fc.ProxyFile != "" {
			if err := proxies.LoadFile(fc.ProxyFile); err != nil {
				return nil, fmt.Errorf("proxies: %w", err)
			}
		}
	}

	return scraper.NewFetcher(scraper.FetchConfig{
		Timeout:      fc.Timeout,
		UseCookieJar: true,
		MaxBodyBytes: fc.MaxBodyBytes,
		ProxyPool:    proxies,
		UAPool:       uas,
		Fingerprint:  profile,
		Limiter:      ratelimit.NewLimiter(fc.RateLimit, fc.Jitter),
	})
}

// collaborators builds the search and content collaborators, sharing one
// direct fetcher between them when both need it.
type collaborators struct {
	direct *scraper.Fetcher
}

func (w *collaborators) fetcher(c *config.Config) (*scraper.Fetcher, error) {
	if w.direct != nil {
		return w.direct, nil
	}
	f, err := newDirectFetcher(c.Fetch)
	if err != nil {
		return nil, fmt.Errorf("direct fetcher: %w", err)
	}
	w.direct = f
	return f, nil
}

func (w *collaborators) search(c *config.Config) (serp.Provider, error) {
	switch c.Search.Provider {
	case "google":
		f, err := w.fetcher(c)
		if err != nil {
			return nil, err
		}
		return serp.NewGoogleScrape(f, c.Search.Endpoint, logging.New("serp")), nil
	default:
		return serp.NewSerper(serp.SerperConfig{
			Endpoint: c.Search.Endpoint,
			APIKey:   c.Search.APIKey,
			Timeout:  c.Search.Timeout,
		})
	}
}

func (w *collaborators) content(c *config.Config) (scraper.ContentFetcher, error) {
	switch c.Fetch.Provider {
	case "direct":
		f, err := w.fetcher(c)
		if err != nil {
			return nil, err
		}
		return scraper.NewReader(f, scraper.ReaderConfig{
			RespectRobots: c.Fetch.RespectRobots,
			RobotsAgent:   c.Fetch.RobotsAgent,
		}, logging.New("reader")), nil
	default:
		return scraper.NewFirecrawl(scraper.FirecrawlConfig{
			Endpoint:      c.Fetch.Endpoint,
			APIKey:        c.Fetch.APIKey,
			Timeout:       c.Fetch.Timeout,
			IncludeChrome: c.Fetch.IncludeChrome,
		})
	}
}

// newPipeline validates c and wires a ready-to-run pipeline.
func newPipeline(c *config.Config) (*pipeline.Pipeline, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	predictor, err := predict.NewClient(predict.ClientConfig{BaseURL: c.Predictor.URL, Timeout: c.Predictor.Timeout})
	if err != nil {
		return nil, err
	}

	var w collaborators
	search, err := w.search(c)
	if err != nil {
		return nil, err
	}
	content, err := w.content(c)
	if err != nil {
		return nil, err
	}

	return pipeline.New(pipeline.Config{
		Predictor:                predictor,
		Search:                   search,
		Content:                  content,
		PredictTimeout:           c.Predictor.Timeout,
		SearchTimeout:            c.Search.Timeout,
		FetchTimeout:             c.Fetch.Timeout,
		SearchSuffix:             c.Search.Suffix,
		MaxResults:               c.Search.MaxResults,
		Concurrency:              c.Fetch.Concurrency,
		SearchRequiresPrediction: c.Pipeline.SearchRequiresPrediction,
		Logger:                   logging.New("pipeline"),
	})
}

// openStorage opens the configured run history backend. It returns a nil
// backend when storage is disabled.
func openStorage(ctx context.Context, sc config.StorageConfig) (storage.Backend, error) {
	switch sc.Backend {
	case "none", "":
		return nil, nil
	case "sqlite":
		return sqlite.New(sc.DSN)
	case "postgres":
		return postgres.New(ctx, sc.DSN)
	case "csv":
		return csvbackend.New(sc.DSN)
	case "json":
		return jsonbackend.New(sc.DSN)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", sc.Backend)
	}
}
