package pipeline

import (
	"errors"
	"fmt"
	"slices"

	"github.com/FranksOps/pricewise/internal/analyzer"
	"github.com/FranksOps/pricewise/internal/serp"
)

var (
	// ErrInvariantViolation reports a broken pipeline contract: an owned
	// field written twice, a stage visited twice, or a run that finished
	// without an answer. It indicates a bug, never an upstream outage.
	ErrInvariantViolation = errors.New("pipeline invariant violated")

	// ErrNoAnswer is returned by Compare when no FinalAnswer could be
	// produced at all. An answer without market data is not an error.
	ErrNoAnswer = errors.New("pipeline could not produce an answer")
)

// Stage identifies a node of the pipeline state machine.
type Stage int

const (
	StagePredict Stage = iota
	StageSearch
	StageScrape
	StageFinalize
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StagePredict:
		return "predict"
	case StageSearch:
		return "search"
	case StageScrape:
		return "scrape"
	case StageFinalize:
		return "finalize"
	case StageDone:
		return "done"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// ScrapedPage is the fetch outcome for one search result. A failed fetch
// has empty Content and a non-empty Error.
type ScrapedPage struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
}

func (p ScrapedPage) Failed() bool { return p.Error != "" }

// State is threaded through every stage of one run. Stages never modify it
// directly; they return a Delta that the controller merges.
type State struct {
	RunID          string                `json:"run_id"`
	Query          string                `json:"query"`
	PredictedPrice *float64              `json:"predicted_price,omitempty"`
	SearchResults  []serp.Result         `json:"search_results"`
	ScrapedPages   []ScrapedPage         `json:"scraped_pages"`
	FinalAnswer    *analyzer.FinalAnswer `json:"final_answer,omitempty"`
	Trace          []string              `json:"trace"`

	applied map[Stage]bool
}

// Delta is a stage's contribution to the state. Only the fields owned by the
// stage that produced it may be set.
type Delta struct {
	PredictedPrice *float64
	SearchResults  []serp.Result
	ScrapedPages   []ScrapedPage
	FinalAnswer    *analyzer.FinalAnswer
	Trace          []string
}

func newState(runID, query string) *State {
	return &State{RunID: runID, Query: query, applied: make(map[Stage]bool)}
}

// snapshot returns a copy a stage can read without sharing backing arrays.
func (s *State) snapshot() State {
	c := *s
	c.SearchResults = slices.Clone(s.SearchResults)
	c.ScrapedPages = slices.Clone(s.ScrapedPages)
	c.Trace = slices.Clone(s.Trace)
	c.applied = nil
	return c
}

// apply merges d, produced by stage, into s. Each stage's fields are written
// at most once and only by that stage; trace entries are appended.
func (s *State) apply(stage Stage, d Delta) error {
	if s.applied[stage] {
		return fmt.Errorf("%w: %s applied twice", ErrInvariantViolation, stage)
	}

	foreign := func(field string) error {
		return fmt.Errorf("%w: %s wrote %s", ErrInvariantViolation, stage, field)
	}
	if d.PredictedPrice != nil && stage != StagePredict {
		return foreign("predicted price")
	}
	if d.SearchResults != nil && stage != StageSearch {
		return foreign("search results")
	}
	if d.ScrapedPages != nil && stage != StageScrape {
		return foreign("scraped pages")
	}
	if d.FinalAnswer != nil && stage != StageFinalize {
		return foreign("final answer")
	}
	if stage == StageFinalize && d.FinalAnswer == nil {
		return fmt.Errorf("%w: finalize produced no answer", ErrInvariantViolation)
	}

	switch stage {
	case StagePredict:
		s.PredictedPrice = d.PredictedPrice
	case StageSearch:
		s.SearchResults = d.SearchResults
	case StageScrape:
		s.ScrapedPages = d.ScrapedPages
	case StageFinalize:
		s.FinalAnswer = d.FinalAnswer
	}
	s.Trace = append(s.Trace, d.Trace...)
	s.applied[stage] = true
	return nil
}

// next is the transition function of the state machine.
func next(stage Stage, s *State, searchRequiresPrediction bool) Stage {
	switch stage {
	case StagePredict:
		if searchRequiresPrediction && s.PredictedPrice == nil {
			return StageFinalize
		}
		return StageSearch
	case StageSearch:
		if len(s.SearchResults) > 0 {
			return StageScrape
		}
		return StageFinalize
	case StageScrape:
		return StageFinalize
	default:
		return StageDone
	}
}
