package analyzer

import (
	"encoding/json"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func ptr(v float64) *float64 { return &v }

func statsOf(avg, lo, hi float64, n int) Statistics {
	return Statistics{Average: ptr(avg), Min: ptr(lo), Max: ptr(hi), SourceCount: n}
}

func TestCompare_Threshold(t *testing.T) {
	tests := []struct {
		name      string
		predicted float64
		average   float64
		want      Comparison
	}{
		{"within", 100, 130, Comparison{Delta: -30, Assessment: WithinRange}},
		{"outside", 100, 200, Comparison{Delta: -100, Assessment: OutsideRange}},
		{"exactly threshold is outside", 140, 100, Comparison{Delta: 40, Assessment: OutsideRange}},
		{"above average within", 120, 100, Comparison{Delta: 20, Assessment: WithinRange}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ans := Compare("q", ptr(tt.predicted), nil, statsOf(tt.average, tt.average, tt.average, 1))
			if ans.Comparison == nil {
				t.Fatal("expected a comparison")
			}
			if diff := cmp.Diff(tt.want, *ans.Comparison); diff != "" {
				t.Errorf("comparison mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCompare_AllCombinations(t *testing.T) {
	evidence := statsOf(885, 850, 920, 2)
	tests := []struct {
		name        string
		predicted   *float64
		stats       Statistics
		wantPred    string
		wantMarket  string
		wantCompare bool
		wantDesc    []string
	}{
		{
			name: "both", predicted: ptr(899), stats: evidence,
			wantPred: "$899.00", wantMarket: "$885.00", wantCompare: true,
			wantDesc: []string{
				"Based on 2 sources found online",
				"ranges from $850.00 to $920.00 with an average price of $885.00.",
				"Our AI prediction of $899.00 is very close to the market average, within $14.00.",
			},
		},
		{
			name: "both far apart", predicted: ptr(1200), stats: evidence,
			wantPred: "$1,200.00", wantMarket: "$885.00", wantCompare: true,
			wantDesc: []string{"differs from the market average by $315.00."},
		},
		{
			name: "evidence only", stats: evidence,
			wantPred: LabelUnavailable, wantMarket: "$885.00",
			wantDesc: []string{"Our AI prediction service is currently unavailable."},
		},
		{
			name: "prediction only", predicted: ptr(899),
			wantPred: "$899.00", wantMarket: LabelNoMarketData,
			wantDesc: []string{
				"No market pricing data was found online for 'Dell XPS 13 laptop'.",
				"However, our AI prediction estimates the price at $899.00.",
			},
		},
		{
			name:     "neither",
			wantPred: LabelUnavailable, wantMarket: LabelNoMarketData,
			wantDesc: []string{"Our AI prediction service is also currently unavailable."},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ans := Compare("Dell XPS 13 laptop", tt.predicted, nil, tt.stats)
			if ans.PredictedPrice != tt.wantPred {
				t.Errorf("predicted label = %q, want %q", ans.PredictedPrice, tt.wantPred)
			}
			if ans.MarketPrice != tt.wantMarket {
				t.Errorf("market label = %q, want %q", ans.MarketPrice, tt.wantMarket)
			}
			if (ans.Comparison != nil) != tt.wantCompare {
				t.Errorf("comparison present = %v, want %v", ans.Comparison != nil, tt.wantCompare)
			}
			for _, frag := range tt.wantDesc {
				if !strings.Contains(ans.Description, frag) {
					t.Errorf("description %q missing %q", ans.Description, frag)
				}
			}
			if ans.Sources == nil {
				t.Error("expected non-nil sources")
			}
		})
	}
}

func TestCompare_SingleSourceWording(t *testing.T) {
	ans := Compare("q", nil, nil, statsOf(10, 10, 10, 1))
	if !strings.HasPrefix(ans.Description, "Based on 1 source found online") {
		t.Errorf("unexpected description %q", ans.Description)
	}
}

func TestFinalAnswer_JSONShape(t *testing.T) {
	ans := Compare("q", nil, nil, Statistics{})
	data, err := json.Marshal(ans)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"description", "predicted_price", "market_price", "market_analysis", "sources", "comparison"} {
		if _, ok := got[key]; !ok {
			t.Errorf("missing key %q in %s", key, data)
		}
	}
	if got["comparison"] != nil {
		t.Errorf("expected null comparison, got %v", got["comparison"])
	}
	analysis := got["market_analysis"].(map[string]any)
	if analysis["average_price"] != nil || analysis["total_sources"] != float64(0) {
		t.Errorf("unexpected market_analysis %v", analysis)
	}
}

func TestFormatUSD(t *testing.T) {
	tests := map[float64]string{
		885:      "$885.00",
		1234.56:  "$1,234.56",
		10000:    "$10,000.00",
		-30:      "-$30.00",
		0.5:      "$0.50",
		999999.9: "$999,999.90",
	}
	for in, want := range tests {
		if got := FormatUSD(in); got != want {
			t.Errorf("FormatUSD(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatUSD_RoundsLikePrintf(t *testing.T) {
	tests := map[float64]string{
		0.015:  "$0.01",
		2.675:  "$2.67",
		0.125:  "$0.12",
		-0.001: "$0.00",
		-2.675: "-$2.67",
	}
	for in, want := range tests {
		if got := FormatUSD(in); got != want {
			t.Errorf("FormatUSD(%v) = %q, want %q", in, got, want)
		}
	}

	for i := 0; i <= 200000; i++ {
		v := float64(i) / 1000
		if got, want := FormatUSD(v), "$"+strconv.FormatFloat(v, 'f', 2, 64); got != want {
			t.Fatalf("FormatUSD(%v) = %q, want %q", v, got, want)
		}
	}
}

func TestFinalAnswer_Assessment(t *testing.T) {
	var nilAns *FinalAnswer
	if nilAns.Assessment() != "" {
		t.Error("expected empty assessment for nil answer")
	}
	ans := Compare("q", ptr(100), nil, statsOf(130, 130, 130, 1))
	if ans.Assessment() != WithinRange {
		t.Errorf("expected within_range, got %q", ans.Assessment())
	}
}
