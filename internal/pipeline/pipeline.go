// Package pipeline runs the price comparison state machine: predict, search,
// scrape and finalize.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/FranksOps/pricewise/internal/analyzer"
	"github.com/FranksOps/pricewise/internal/predict"
	"github.com/FranksOps/pricewise/internal/scraper"
	"github.com/FranksOps/pricewise/internal/serp"
	"github.com/google/uuid"
)

// Defaults applied by New.
const (
	DefaultPredictTimeout = 120 * time.Second
	DefaultSearchTimeout  = 15 * time.Second
	DefaultFetchTimeout   = 30 * time.Second
	DefaultSearchSuffix   = "price buy online"
)

// Config wires the collaborators and tunes the run.
type Config struct {
	Predictor predict.Predictor
	Search    serp.Provider
	Content   scraper.ContentFetcher

	PredictTimeout time.Duration
	SearchTimeout  time.Duration
	FetchTimeout   time.Duration

	// SearchSuffix is appended to the query to form the search phrase.
	SearchSuffix string
	// MaxResults caps search results and pages fetched (at most serp.MaxResults).
	MaxResults int
	// Concurrency bounds parallel page fetches.
	Concurrency int
	// SearchRequiresPrediction skips search and scrape when prediction failed.
	SearchRequiresPrediction bool

	Logger *slog.Logger
}

type stageFunc func(ctx context.Context, s State) Delta

// Pipeline is safe for concurrent use; every run owns its own State.
type Pipeline struct {
	cfg    Config
	logger *slog.Logger
	stages map[Stage]stageFunc
}

// New validates cfg and fills in defaults.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Predictor == nil {
		return nil, errors.New("pipeline: predictor is nil")
	}
	if cfg.Search == nil {
		return nil, errors.New("pipeline: search provider is nil")
	}
	if cfg.Content == nil {
		return nil, errors.New("pipeline: content fetcher is nil")
	}
	if cfg.PredictTimeout <= 0 {
		cfg.PredictTimeout = DefaultPredictTimeout
	}
	if cfg.SearchTimeout <= 0 {
		cfg.SearchTimeout = DefaultSearchTimeout
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if strings.TrimSpace(cfg.SearchSuffix) == "" {
		cfg.SearchSuffix = DefaultSearchSuffix
	}
	if cfg.MaxResults <= 0 || cfg.MaxResults > serp.MaxResults {
		cfg.MaxResults = serp.MaxResults
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = cfg.MaxResults
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	p := &Pipeline{cfg: cfg, logger: cfg.Logger}
	p.stages = map[Stage]stageFunc{
		StagePredict:  p.predict,
		StageSearch:   p.search,
		StageScrape:   p.scrape,
		StageFinalize: p.finalize,
	}
	return p, nil
}

// Run drives one query through the state machine and returns the final
// state. Collaborator failures are recorded in the trace; the only error
// is ErrInvariantViolation. An empty query still yields an answer.
func (p *Pipeline) Run(ctx context.Context, query string) (*State, error) {
	query = strings.TrimSpace(query)

	start := time.Now()
	state := newState(uuid.NewString(), query)
	log := p.logger.With("run_id", state.RunID)
	log.Info("comparison started", "query", query)

	stage := StagePredict
	for steps := 0; stage != StageDone; steps++ {
		if steps >= len(p.stages) {
			return state, fmt.Errorf("%w: run did not terminate", ErrInvariantViolation)
		}
		run, ok := p.stages[stage]
		if !ok {
			return state, fmt.Errorf("%w: no handler for %s", ErrInvariantViolation, stage)
		}

		log.Debug("entering stage", "stage", stage)
		if err := state.apply(stage, run(ctx, state.snapshot())); err != nil {
			return state, err
		}
		stage = next(stage, state, p.cfg.SearchRequiresPrediction)
	}

	if state.FinalAnswer == nil {
		return state, fmt.Errorf("%w: reached done without an answer", ErrInvariantViolation)
	}

	log.Info("comparison finished",
		"duration", time.Since(start),
		"sources", state.FinalAnswer.Statistics.SourceCount,
		"assessment", state.FinalAnswer.Assessment(),
	)
	return state, nil
}

// Compare runs the pipeline and returns only its answer.
func (p *Pipeline) Compare(ctx context.Context, query string) (*analyzer.FinalAnswer, error) {
	state, err := p.Run(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoAnswer, err)
	}
	return state.FinalAnswer, nil
}
