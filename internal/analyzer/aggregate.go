package analyzer

// Document is a fetched page as the aggregator sees it.
type Document struct {
	URL     string
	Title   string
	Content string
}

// Source is a page that yielded at least one price.
type Source struct {
	URL    string    `json:"url" yaml:"url"`
	Title  string    `json:"title" yaml:"title"`
	Prices []float64 `json:"prices" yaml:"prices"`
}

// Statistics summarises every price of every source. Average, Min and Max
// are nil when there are no sources.
type Statistics struct {
	Average     *float64 `json:"average_price" yaml:"average_price"`
	Min         *float64 `json:"min_price" yaml:"min_price"`
	Max         *float64 `json:"max_price" yaml:"max_price"`
	SourceCount int      `json:"total_sources" yaml:"total_sources"`
}

// HasData reports whether any price evidence was found.
func (s Statistics) HasData() bool { return s.Average != nil }

// Aggregate extracts prices from each document, keeps the documents that
// yielded any, and computes statistics over the concatenation of their price
// sets. Prices are deduplicated within a page, not across pages. Sources keep
// document order.
func Aggregate(docs []Document) ([]Source, Statistics) {
	sources := make([]Source, 0, len(docs))
	var all []float64
	for _, d := range docs {
		prices := ExtractPrices(d.Content)
		if len(prices) == 0 {
			continue
		}
		sources = append(sources, Source{URL: d.URL, Title: d.Title, Prices: prices})
		all = append(all, prices...)
	}

	stats := Statistics{SourceCount: len(sources)}
	if len(all) == 0 {
		return sources, stats
	}

	lo, hi, sum := all[0], all[0], 0.0
	for _, v := range all {
		sum += v
		lo = min(lo, v)
		hi = max(hi, v)
	}
	avg := sum / float64(len(all))
	stats.Average, stats.Min, stats.Max = &avg, &lo, &hi
	return sources, stats
}
