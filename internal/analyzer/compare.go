package analyzer

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// Threshold is the absolute difference, in dollars, under which a
// prediction counts as matching the market.
const Threshold = 40.0

// Labels used when one side of the comparison is missing.
const (
	LabelUnavailable  = "service unavailable"
	LabelNoMarketData = "no market data found"
)

// Assessment classifies a prediction against the market average.
type Assessment string

const (
	WithinRange  Assessment = "within_range"
	OutsideRange Assessment = "outside_range"
)

// Comparison is present only when both a prediction and a market average
// exist. Delta is predicted minus average.
type Comparison struct {
	Delta      float64    `json:"prediction_vs_market" yaml:"prediction_vs_market"`
	Assessment Assessment `json:"accuracy_assessment" yaml:"accuracy_assessment"`
}

// FinalAnswer is the explained result of one comparison run.
type FinalAnswer struct {
	Description    string      `json:"description" yaml:"description"`
	PredictedPrice string      `json:"predicted_price" yaml:"predicted_price"`
	MarketPrice    string      `json:"market_price" yaml:"market_price"`
	Statistics     Statistics  `json:"market_analysis" yaml:"market_analysis"`
	Sources        []Source    `json:"sources" yaml:"sources"`
	Comparison     *Comparison `json:"comparison" yaml:"comparison"`
}

// Assessment returns the comparison's assessment, or "" when there is none.
func (a *FinalAnswer) Assessment() Assessment {
	if a == nil || a.Comparison == nil {
		return ""
	}
	return a.Comparison.Assessment
}

// FormatUSD renders v as "$1,234.56". Cents are rounded the way %.2f
// rounds, so a value that prints as -0.00 renders as "$0.00".
func FormatUSD(v float64) string {
	v, _ = strconv.ParseFloat(strconv.FormatFloat(v, 'f', 2, 64), 64)
	if v < 0 {
		return "-$" + humanize.FormatFloat("#,###.##", -v)
	}
	return "$" + humanize.FormatFloat("#,###.##", v)
}

// Compare reconciles an optional prediction with the aggregated market
// evidence. It never fails: every combination of missing inputs yields a
// complete answer.
func Compare(query string, predicted *float64, sources []Source, stats Statistics) FinalAnswer {
	if sources == nil {
		sources = []Source{}
	}
	ans := FinalAnswer{
		PredictedPrice: LabelUnavailable,
		MarketPrice:    LabelNoMarketData,
		Statistics:     stats,
		Sources:        sources,
	}
	if predicted != nil {
		ans.PredictedPrice = FormatUSD(*predicted)
	}
	if stats.HasData() {
		ans.MarketPrice = FormatUSD(*stats.Average)
	}
	if predicted != nil && stats.HasData() {
		delta := *predicted - *stats.Average
		c := &Comparison{Delta: delta, Assessment: OutsideRange}
		if math.Abs(delta) < Threshold {
			c.Assessment = WithinRange
		}
		ans.Comparison = c
	}
	ans.Description = describe(query, predicted, stats, ans.Comparison)
	return ans
}

func describe(query string, predicted *float64, stats Statistics, c *Comparison) string {
	var b strings.Builder
	if !stats.HasData() {
		fmt.Fprintf(&b, "No market pricing data was found online for '%s'. ", query)
		if predicted != nil {
			fmt.Fprintf(&b, "However, our AI prediction estimates the price at %s.", FormatUSD(*predicted))
		} else {
			b.WriteString("Our AI prediction service is also currently unavailable.")
		}
		return b.String()
	}

	fmt.Fprintf(&b, "Based on %d %s found online, the market price for '%s' ranges from %s to %s with an average price of %s. ",
		stats.SourceCount, plural(stats.SourceCount, "source", "sources"), query,
		FormatUSD(*stats.Min), FormatUSD(*stats.Max), FormatUSD(*stats.Average))

	switch {
	case predicted == nil:
		b.WriteString("Our AI prediction service is currently unavailable.")
	case c.Assessment == WithinRange:
		fmt.Fprintf(&b, "Our AI prediction of %s is very close to the market average, within %s.",
			FormatUSD(*predicted), FormatUSD(math.Abs(c.Delta)))
	default:
		fmt.Fprintf(&b, "Our AI prediction of %s differs from the market average by %s.",
			FormatUSD(*predicted), FormatUSD(math.Abs(c.Delta)))
	}
	return b.String()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
