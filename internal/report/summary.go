package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"text/template"
	"time"

	"github.com/FranksOps/pricewise/internal/storage"
)

// Run is one line of the history listing.
type Run struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	Query      string    `json:"query"`
	Predicted  string    `json:"predicted"`
	Market     string    `json:"market"`
	Assessment string    `json:"assessment"`
	Sources    int       `json:"sources"`
}

// Summary aggregates stored comparison runs.
type Summary struct {
	TotalRuns          int            `json:"total_runs"`
	Assessments        map[string]int `json:"assessments"`
	PredictionFailures int            `json:"prediction_failures"`
	NoMarketData       int            `json:"no_market_data"`
	MeanAbsDelta       *float64       `json:"mean_abs_delta,omitempty"`
	AvgSources         float64        `json:"avg_sources"`
	AvgRunDuration     time.Duration  `json:"avg_run_duration"`
	StartTime          time.Time      `json:"start_time"`
	EndTime            time.Time      `json:"end_time"`
	Runs               []Run          `json:"runs"`
}

// GenerateSummary processes stored runs, in the order given, into a summary.
func GenerateSummary(records []*storage.RunRecord) Summary {
	s := Summary{
		Assessments: make(map[string]int),
		Runs:        make([]Run, 0, len(records)),
	}

	if len(records) == 0 {
		return s
	}

	s.StartTime = records[0].CreatedAt
	s.EndTime = records[0].CreatedAt

	var sources int
	var total time.Duration
	var deltaSum float64
	var compared int
	for _, r := range records {
		s.TotalRuns++
		assessment := r.Assessment
		if assessment == "" {
			assessment = storage.AssessmentNone
		}
		s.Assessments[assessment]++

		if r.PredictedPrice == nil {
			s.PredictionFailures++
		}
		if r.MarketAverage == nil {
			s.NoMarketData++
		}
		if r.PredictedPrice != nil && r.MarketAverage != nil {
			deltaSum += math.Abs(*r.PredictedPrice - *r.MarketAverage)
			compared++
		}
		sources += r.SourceCount
		total += r.Duration

		if r.CreatedAt.Before(s.StartTime) {
			s.StartTime = r.CreatedAt
		}
		if r.CreatedAt.After(s.EndTime) {
			s.EndTime = r.CreatedAt
		}

		s.Runs = append(s.Runs, Run{
			ID:         r.ID,
			CreatedAt:  r.CreatedAt,
			Query:      r.Query,
			Predicted:  r.Answer.PredictedPrice,
			Market:     r.Answer.MarketPrice,
			Assessment: assessment,
			Sources:    r.SourceCount,
		})
	}

	if compared > 0 {
		mean := deltaSum / float64(compared)
		s.MeanAbsDelta = &mean
	}
	s.AvgSources = float64(sources) / float64(s.TotalRuns)
	s.AvgRunDuration = total / time.Duration(s.TotalRuns)
	return s
}

// WriteSummary renders the summary as "text" or "json".
func WriteSummary(w io.Writer, format string, summary Summary) error {
	switch format {
	case FormatJSON:
		return WriteSummaryJSON(w, summary)
	case FormatText, "":
		return WriteSummaryText(w, summary)
	default:
		return fmt.Errorf("report: unknown summary format %q", format)
	}
}

// WriteSummaryJSON writes the summary to the provided writer in JSON format.
func WriteSummaryJSON(w io.Writer, summary Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("report: encode json: %w", err)
	}
	return nil
}

const summaryTmpl = `Pricewise History
-----------------
{{- if .TotalRuns}}
Time:                {{.StartTime.Format "2006-01-02 15:04:05"}} - {{.EndTime.Format "2006-01-02 15:04:05"}}
{{- end}}
Runs:                {{.TotalRuns}}
Prediction failures: {{.PredictionFailures}}
No market data:      {{.NoMarketData}}
Avg sources:         {{printf "%.1f" .AvgSources}}
Avg run duration:    {{.AvgRunDuration}}
{{- with .MeanAbsDelta}}
Mean |delta|:        {{usd .}}
{{- end}}

Assessments:
{{- range $name, $count := .Assessments}}
  {{$name}}: {{$count}}
{{- else}}
  None
{{- end}}

Runs:
{{- range .Runs}}
  {{.CreatedAt.Format "2006-01-02 15:04"}}  {{printf "%-32.32s" .Query}}  predicted {{.Predicted}}  market {{.Market}}  {{.Assessment}}
{{- else}}
  None
{{- end}}
`

// WriteSummaryText writes a human-readable text summary to the provided writer.
func WriteSummaryText(w io.Writer, summary Summary) error {
	t, err := template.New("textSummary").Funcs(funcs).Parse(summaryTmpl)
	if err != nil {
		return fmt.Errorf("report: parse template: %w", err)
	}
	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("report: render text: %w", err)
	}
	return nil
}

