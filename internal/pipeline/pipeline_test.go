package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/FranksOps/pricewise/internal/analyzer"
	"github.com/FranksOps/pricewise/internal/predict"
	"github.com/FranksOps/pricewise/internal/scraper"
	"github.com/FranksOps/pricewise/internal/serp"
	"github.com/google/go-cmp/cmp"
)

type fakeSearch struct {
	results []serp.Result
	err     error
	calls   atomic.Int32
	phrase  string
}

func (f *fakeSearch) Search(ctx context.Context, query string, limit int) ([]serp.Result, error) {
	f.calls.Add(1)
	f.phrase = query
	return f.results, f.err
}

type fakeContent struct {
	pages  map[string]string
	delays map[string]time.Duration

	mu       sync.Mutex
	inflight int
	peak     int
	fetched  []string
}

func (f *fakeContent) FetchContent(ctx context.Context, url string) (*scraper.Page, error) {
	f.mu.Lock()
	f.inflight++
	f.peak = max(f.peak, f.inflight)
	f.fetched = append(f.fetched, url)
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inflight--
		f.mu.Unlock()
	}()

	if d := f.delays[url]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	content, ok := f.pages[url]
	if !ok {
		return nil, fmt.Errorf("fetch %s: connection refused", url)
	}
	return &scraper.Page{URL: url, Title: "fetched " + url, Content: content}, nil
}

func fixedPrice(v float64) predict.Predictor {
	return predict.PredictorFunc(func(ctx context.Context, content string) (float64, error) {
		return v, nil
	})
}

func failingPredictor(err error) predict.Predictor {
	return predict.PredictorFunc(func(ctx context.Context, content string) (float64, error) {
		return 0, err
	})
}

func newTestPipeline(t *testing.T, cfg Config) *Pipeline {
	t.Helper()
	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func hasTrace(s *State, frag string) bool {
	for _, line := range s.Trace {
		if strings.Contains(line, frag) {
			return true
		}
	}
	return false
}

func TestRun_DellXPSScenario(t *testing.T) {
	search := &fakeSearch{results: []serp.Result{
		{Title: "Dell XPS 13 at Shop A", Link: "https://a.example/xps"},
		{Title: "Dell XPS 13 at Shop B", URL: "https://b.example/xps"},
		{Title: "", Link: "https://c.example/xps"},
	}}
	content := &fakeContent{pages: map[string]string{
		"https://a.example/xps": "Dell XPS 13 laptop. Our price: $850.00. Free shipping.",
		"https://c.example/xps": "Deal of the day, only 920 USD",
	}}
	p := newTestPipeline(t, Config{Predictor: fixedPrice(899), Search: search, Content: content})

	state, err := p.Run(context.Background(), "Dell XPS 13 laptop")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if search.phrase != "Dell XPS 13 laptop price buy online" {
		t.Errorf("unexpected search phrase %q", search.phrase)
	}
	if len(state.ScrapedPages) != 3 {
		t.Fatalf("expected 3 scraped pages, got %d", len(state.ScrapedPages))
	}
	var urls []string
	for _, pg := range state.ScrapedPages {
		urls = append(urls, pg.URL)
	}
	if diff := cmp.Diff([]string{"https://a.example/xps", "https://b.example/xps", "https://c.example/xps"}, urls); diff != "" {
		t.Errorf("page order mismatch (-want +got):\n%s", diff)
	}
	failed := state.ScrapedPages[1]
	if !failed.Failed() || failed.Content != "" {
		t.Errorf("expected failed page with empty content, got %+v", failed)
	}
	if state.ScrapedPages[2].Title != "fetched https://c.example/xps" {
		t.Errorf("expected fetched title fallback, got %q", state.ScrapedPages[2].Title)
	}

	ans := state.FinalAnswer
	stats := ans.Statistics
	if stats.SourceCount != 2 || *stats.Average != 885 || *stats.Min != 850 || *stats.Max != 920 {
		t.Errorf("unexpected statistics: count=%d avg=%v min=%v max=%v", stats.SourceCount, *stats.Average, *stats.Min, *stats.Max)
	}
	if ans.Assessment() != analyzer.WithinRange {
		t.Errorf("expected within_range, got %q", ans.Assessment())
	}
	if ans.PredictedPrice != "$899.00" || ans.MarketPrice != "$885.00" {
		t.Errorf("unexpected labels %q / %q", ans.PredictedPrice, ans.MarketPrice)
	}
	for _, frag := range []string{"Predicted price: $899.00", "Found 3 search results", "Scraped 3 pages (1 failed)", "Found 2 sources"} {
		if !hasTrace(state, frag) {
			t.Errorf("trace %q missing %q", state.Trace, frag)
		}
	}
	if state.RunID == "" {
		t.Error("expected a run id")
	}
}

func TestRun_AllCollaboratorsFail(t *testing.T) {
	search := &fakeSearch{err: errors.New("search quota exceeded")}
	content := &fakeContent{}
	p := newTestPipeline(t, Config{
		Predictor: failingPredictor(fmt.Errorf("%w: 503", predict.ErrBadStatus)),
		Search:    search,
		Content:   content,
	})

	ans, err := p.Compare(context.Background(), "Dell XPS 13 laptop")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if ans.PredictedPrice != analyzer.LabelUnavailable {
		t.Errorf("expected unavailable label, got %q", ans.PredictedPrice)
	}
	if ans.Statistics.HasData() || ans.Statistics.Min != nil || ans.Statistics.Max != nil {
		t.Errorf("expected empty statistics, got %+v", ans.Statistics)
	}
	if len(ans.Sources) != 0 || ans.Comparison != nil {
		t.Errorf("expected no sources and no comparison, got %+v", ans)
	}
	if !strings.Contains(ans.Description, "No market pricing data was found") ||
		!strings.Contains(ans.Description, "also currently unavailable") {
		t.Errorf("unexpected description %q", ans.Description)
	}
	if search.calls.Load() != 1 {
		t.Errorf("expected search to run despite prediction failure, got %d calls", search.calls.Load())
	}
	if len(content.fetched) != 0 {
		t.Errorf("expected no fetches, got %v", content.fetched)
	}
}

func TestRun_ZeroSearchResults(t *testing.T) {
	content := &fakeContent{}
	p := newTestPipeline(t, Config{Predictor: fixedPrice(50), Search: &fakeSearch{}, Content: content})

	state, err := p.Run(context.Background(), "usb cable")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(state.ScrapedPages) != 0 || len(state.FinalAnswer.Sources) != 0 {
		t.Errorf("expected no pages and no sources, got %d / %d", len(state.ScrapedPages), len(state.FinalAnswer.Sources))
	}
	if hasTrace(state, "Scraped") {
		t.Errorf("scrape stage should not run, trace %q", state.Trace)
	}
	if state.FinalAnswer.PredictedPrice != "$50.00" || state.FinalAnswer.Comparison != nil {
		t.Errorf("unexpected answer %+v", state.FinalAnswer)
	}
}

func TestRun_PredictionFailureCategoryInTrace(t *testing.T) {
	p := newTestPipeline(t, Config{
		Predictor: failingPredictor(fmt.Errorf("%w: price field absent", predict.ErrMissingPrice)),
		Search:    &fakeSearch{results: []serp.Result{{Link: "https://a.example"}}},
		Content:   &fakeContent{pages: map[string]string{"https://a.example": "$120"}},
	})

	state, err := p.Run(context.Background(), "desk lamp")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.PredictedPrice != nil {
		t.Error("expected no predicted price")
	}
	if !hasTrace(state, "no price in response") {
		t.Errorf("expected failure category in trace, got %q", state.Trace)
	}
	ans := state.FinalAnswer
	if ans.PredictedPrice != analyzer.LabelUnavailable || ans.Comparison != nil || ans.MarketPrice != "$120.00" {
		t.Errorf("unexpected answer %+v", ans)
	}
}

func TestRun_SearchRequiresPrediction(t *testing.T) {
	search := &fakeSearch{results: []serp.Result{{Link: "https://a.example"}}}
	p := newTestPipeline(t, Config{
		Predictor:                failingPredictor(predict.ErrRequest),
		Search:                   search,
		Content:                  &fakeContent{},
		SearchRequiresPrediction: true,
	})

	state, err := p.Run(context.Background(), "desk lamp")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if search.calls.Load() != 0 {
		t.Errorf("expected search to be skipped, got %d calls", search.calls.Load())
	}
	if state.FinalAnswer == nil {
		t.Fatal("expected an answer")
	}
}

func TestRun_ConcurrentFetchesKeepOrder(t *testing.T) {
	var results []serp.Result
	pages := map[string]string{}
	delays := map[string]time.Duration{}
	for i := 0; i < 7; i++ {
		u := fmt.Sprintf("https://shop%d.example", i)
		results = append(results, serp.Result{Title: fmt.Sprintf("shop %d", i), Link: u})
		pages[u] = fmt.Sprintf("$%d", 100+i)
		delays[u] = time.Duration(5-i) * 10 * time.Millisecond
	}
	results = append(results[:2], append([]serp.Result{{Title: "no link"}}, results[2:]...)...)

	content := &fakeContent{pages: pages, delays: delays}
	p := newTestPipeline(t, Config{Predictor: fixedPrice(102), Search: &fakeSearch{results: results}, Content: content, Concurrency: 2})

	state, err := p.Run(context.Background(), "thing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(state.SearchResults) != 5 {
		t.Fatalf("expected results truncated to 5, got %d", len(state.SearchResults))
	}

	var got []string
	for _, pg := range state.ScrapedPages {
		got = append(got, pg.URL)
	}
	want := []string{"https://shop0.example", "https://shop1.example", "https://shop2.example", "https://shop3.example"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("scraped order mismatch (-want +got):\n%s", diff)
	}
	if content.peak > 2 {
		t.Errorf("expected at most 2 concurrent fetches, saw %d", content.peak)
	}
}

func TestRun_TimeoutsAreContained(t *testing.T) {
	hang := predict.PredictorFunc(func(ctx context.Context, content string) (float64, error) {
		<-ctx.Done()
		return 0, fmt.Errorf("%w: %v", predict.ErrTimeout, ctx.Err())
	})
	content := &fakeContent{
		pages:  map[string]string{"https://slow.example": "$10"},
		delays: map[string]time.Duration{"https://slow.example": time.Second},
	}
	p := newTestPipeline(t, Config{
		Predictor:      hang,
		Search:         &fakeSearch{results: []serp.Result{{Link: "https://slow.example"}}},
		Content:        content,
		PredictTimeout: 20 * time.Millisecond,
		FetchTimeout:   20 * time.Millisecond,
	})

	start := time.Now()
	state, err := p.Run(context.Background(), "slow thing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Errorf("run took %v, timeouts not enforced", time.Since(start))
	}
	if !hasTrace(state, "timeout") {
		t.Errorf("expected timeout in trace, got %q", state.Trace)
	}
	if !state.ScrapedPages[0].Failed() {
		t.Error("expected timed-out fetch to be marked failed")
	}
	if state.FinalAnswer.Statistics.HasData() {
		t.Error("expected no market data")
	}
}

func TestRun_PanickingCollaboratorIsContained(t *testing.T) {
	boom := predict.PredictorFunc(func(ctx context.Context, content string) (float64, error) {
		panic("model exploded")
	})
	p := newTestPipeline(t, Config{Predictor: boom, Search: &fakeSearch{}, Content: &fakeContent{}})

	ans, err := p.Compare(context.Background(), "anything")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ans.PredictedPrice != analyzer.LabelUnavailable {
		t.Errorf("expected unavailable label, got %q", ans.PredictedPrice)
	}
}

func TestRun_EmptyQuery(t *testing.T) {
	for _, q := range []string{"", "   "} {
		search := &fakeSearch{}
		p := newTestPipeline(t, Config{Predictor: fixedPrice(100), Search: search, Content: &fakeContent{}})

		state, err := p.Run(context.Background(), q)
		if err != nil {
			t.Fatalf("Run(%q): unexpected error: %v", q, err)
		}
		if state.Query != "" {
			t.Errorf("Run(%q): expected trimmed query, got %q", q, state.Query)
		}
		ans := state.FinalAnswer
		if ans == nil {
			t.Fatalf("Run(%q): expected a final answer", q)
		}
		if ans.PredictedPrice != "$100.00" || ans.MarketPrice != analyzer.LabelNoMarketData || ans.Comparison != nil {
			t.Errorf("Run(%q): unexpected answer %+v", q, ans)
		}
		if search.calls.Load() != 1 || search.phrase != DefaultSearchSuffix {
			t.Errorf("Run(%q): expected one search for %q, got %d calls with %q", q, DefaultSearchSuffix, search.calls.Load(), search.phrase)
		}
	}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	if _, err := New(Config{Search: &fakeSearch{}, Content: &fakeContent{}}); err == nil {
		t.Error("expected error without predictor")
	}
	if _, err := New(Config{Predictor: fixedPrice(1), Content: &fakeContent{}}); err == nil {
		t.Error("expected error without search provider")
	}
	if _, err := New(Config{Predictor: fixedPrice(1), Search: &fakeSearch{}}); err == nil {
		t.Error("expected error without content fetcher")
	}
}
