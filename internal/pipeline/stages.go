package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/FranksOps/pricewise/internal/analyzer"
	"github.com/FranksOps/pricewise/internal/metrics"
	"github.com/FranksOps/pricewise/internal/predict"
	"github.com/FranksOps/pricewise/internal/scraper"
	"github.com/FranksOps/pricewise/internal/serp"
	"golang.org/x/sync/errgroup"
)

// contain turns a collaborator panic into an ordinary error.
func contain[T any](fn func() (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("collaborator panicked: %v", r)
		}
	}()
	return fn()
}

func (p *Pipeline) predict(ctx context.Context, s State) Delta {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.PredictTimeout)
	defer cancel()

	start := time.Now()
	price, err := contain(func() (float64, error) {
		return p.cfg.Predictor.Predict(ctx, s.Query)
	})
	metrics.ObserveCollaborator("predict", time.Since(start))

	if err != nil {
		category := predict.Category(err)
		p.logger.Warn("price prediction failed", "run_id", s.RunID, "category", category, "error", err)
		metrics.RecordStage(StagePredict.String(), metrics.OutcomeFailed)
		return Delta{Trace: []string{"Price prediction failed: " + category}}
	}

	p.logger.Debug("price predicted", "run_id", s.RunID, "price", price)
	metrics.RecordStage(StagePredict.String(), metrics.OutcomeOK)
	return Delta{
		PredictedPrice: &price,
		Trace:          []string{"Predicted price: " + analyzer.FormatUSD(price)},
	}
}

func (p *Pipeline) search(ctx context.Context, s State) Delta {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.SearchTimeout)
	defer cancel()

	phrase := strings.TrimSpace(s.Query + " " + strings.TrimSpace(p.cfg.SearchSuffix))
	start := time.Now()
	results, err := contain(func() ([]serp.Result, error) {
		return p.cfg.Search.Search(ctx, phrase, p.cfg.MaxResults)
	})
	metrics.ObserveCollaborator("search", time.Since(start))

	if err != nil {
		p.logger.Warn("search failed", "run_id", s.RunID, "phrase", phrase, "error", err)
		metrics.RecordStage(StageSearch.String(), metrics.OutcomeFailed)
		return Delta{SearchResults: []serp.Result{}, Trace: []string{"Search failed, continuing without market evidence"}}
	}
	if len(results) > p.cfg.MaxResults {
		results = results[:p.cfg.MaxResults]
	}
	if results == nil {
		results = []serp.Result{}
	}

	outcome := metrics.OutcomeOK
	if len(results) == 0 {
		outcome = metrics.OutcomeEmpty
	}
	metrics.RecordStage(StageSearch.String(), outcome)
	p.logger.Debug("search complete", "run_id", s.RunID, "phrase", phrase, "results", len(results))
	return Delta{
		SearchResults: results,
		Trace:         []string{fmt.Sprintf("Found %d search results", len(results))},
	}
}

func (p *Pipeline) scrape(ctx context.Context, s State) Delta {
	results := s.SearchResults
	if len(results) > p.cfg.MaxResults {
		results = results[:p.cfg.MaxResults]
	}

	targets := make([]serp.Result, 0, len(results))
	for _, r := range results {
		if r.Href() == "" {
			continue
		}
		targets = append(targets, r)
	}

	pages := make([]ScrapedPage, len(targets))
	g := new(errgroup.Group)
	g.SetLimit(p.cfg.Concurrency)
	for i, r := range targets {
		g.Go(func() error {
			pages[i] = p.fetchPage(ctx, s.RunID, r)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, pg := range pages {
		if pg.Failed() {
			failed++
		}
	}

	outcome := metrics.OutcomeOK
	switch {
	case len(pages) == 0:
		outcome = metrics.OutcomeEmpty
	case failed == len(pages):
		outcome = metrics.OutcomeFailed
	}
	metrics.RecordStage(StageScrape.String(), outcome)

	return Delta{
		ScrapedPages: pages,
		Trace:        []string{fmt.Sprintf("Scraped %d pages (%d failed)", len(pages), failed)},
	}
}

func (p *Pipeline) fetchPage(ctx context.Context, runID string, r serp.Result) ScrapedPage {
	url := r.Href()
	page := ScrapedPage{URL: url, Title: r.Title}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.FetchTimeout)
	defer cancel()

	start := time.Now()
	fetched, err := contain(func() (*scraper.Page, error) {
		return p.cfg.Content.FetchContent(ctx, url)
	})
	metrics.ObserveCollaborator("fetch", time.Since(start))

	if err != nil || fetched == nil {
		if err == nil {
			err = errors.New("no content returned")
		}
		p.logger.Warn("page fetch failed", "run_id", runID, "url", url, "error", err)
		page.Error = err.Error()
		return page
	}

	page.Content = fetched.Content
	if strings.TrimSpace(page.Title) == "" {
		page.Title = fetched.Title
	}
	p.logger.Debug("page fetched", "run_id", runID, "url", url, "chars", len(page.Content))
	return page
}

func (p *Pipeline) finalize(_ context.Context, s State) Delta {
	docs := make([]analyzer.Document, 0, len(s.ScrapedPages))
	for _, pg := range s.ScrapedPages {
		if pg.Failed() {
			continue
		}
		docs = append(docs, analyzer.Document{URL: pg.URL, Title: pg.Title, Content: pg.Content})
	}

	sources, stats := analyzer.Aggregate(docs)
	for _, src := range sources {
		metrics.ExtractedPricesTotal.Add(float64(len(src.Prices)))
	}

	answer := analyzer.Compare(s.Query, s.PredictedPrice, sources, stats)
	metrics.RecordAssessment(string(answer.Assessment()))
	metrics.RecordStage(StageFinalize.String(), metrics.OutcomeOK)

	return Delta{
		FinalAnswer: &answer,
		Trace:       []string{fmt.Sprintf("Analysis complete. Found %d sources with pricing data.", len(sources))},
	}
}
