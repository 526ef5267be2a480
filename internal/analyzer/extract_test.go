package analyzer

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestExtractPrices(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []float64
	}{
		{"dollar prefix with separators", "Now only $1,234.56!", []float64{1234.56}},
		{"dollar prefix with space", "from $ 899", []float64{899}},
		{"usd suffix", "Listed at 1234.56 USD today", []float64{1234.56}},
		{"usd suffix lowercase", "costs 45 usd", []float64{45}},
		{"label prefix", "Price: $1234.56", []float64{1234.56}},
		{"label prefix without dollar", "price 349.99 incl. tax", []float64{349.99}},
		{"dollars suffix", "about 20 dollars or 1 dollar", []float64{1, 20}},
		{"below minimum", "clearance $0.50", nil},
		{"above maximum", "yours for $15000", nil},
		{"boundaries kept", "$1 and $10,000", []float64{1, 10000}},
		{"deduplicated across patterns", "Price: $899.99 was $899.99 or 899.99 USD", []float64{899.99}},
		{"sorted", "$920 then $850", []float64{850, 920}},
		{"no prices", "In stock. Free shipping.", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractPrices(tt.text)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ExtractPrices(%q) mismatch (-want +got):\n%s", tt.text, diff)
			}
		})
	}
}

func TestExtractPrices_SameValueThreeWays(t *testing.T) {
	for _, text := range []string{"$1,234.56", "1234.56 USD", "Price: $1234.56"} {
		got := ExtractPrices(text)
		if len(got) != 1 || got[0] != 1234.56 {
			t.Errorf("ExtractPrices(%q) = %v, want [1234.56]", text, got)
		}
	}
}

func TestPatterns_Named(t *testing.T) {
	want := []string{"dollar-prefix", "usd-suffix", "label-prefix", "dollars-suffix"}
	var got []string
	for _, p := range Patterns {
		got = append(got, p.Name)
		if p.Re.NumSubexp() != 1 {
			t.Errorf("pattern %s has %d capture groups", p.Name, p.Re.NumSubexp())
		}
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("pattern order mismatch (-want +got):\n%s", diff)
	}
}
