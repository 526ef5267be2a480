// Package analyzer turns fetched listing text into market statistics and
// reconciles them with a predicted price.
package analyzer

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Plausible price bounds, inclusive.
const (
	MinPrice = 1.0
	MaxPrice = 10000.0
)

// Pattern is one named price-mention shape. Re has exactly one capture
// group holding the amount.
type Pattern struct {
	Name string
	Re   *regexp.Regexp
}

const amount = `(\d+(?:,\d{3})*(?:\.\d{1,2})?)`

// Patterns are applied in order to every page.
var Patterns = []Pattern{
	{Name: "dollar-prefix", Re: regexp.MustCompile(`(?i)\$\s?` + amount)},
	{Name: "usd-suffix", Re: regexp.MustCompile(`(?i)` + amount + `\s?USD\b`)},
	{Name: "label-prefix", Re: regexp.MustCompile(`(?i)price[:\s]*\$?` + amount)},
	{Name: "dollars-suffix", Re: regexp.MustCompile(`(?i)` + amount + `\s?dollars?\b`)},
}

// ExtractPrices returns the distinct plausible prices mentioned in text,
// sorted ascending. Values that fail to parse or fall outside
// [MinPrice, MaxPrice] are dropped.
func ExtractPrices(text string) []float64 {
	seen := make(map[float64]struct{})
	var prices []float64
	for _, p := range Patterns {
		for _, m := range p.Re.FindAllStringSubmatch(text, -1) {
			v, ok := parseAmount(m[1])
			if !ok {
				continue
			}
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			prices = append(prices, v)
		}
	}
	slices.Sort(prices)
	return prices
}

func parseAmount(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil || v < MinPrice || v > MaxPrice {
		return 0, false
	}
	return v, true
}
