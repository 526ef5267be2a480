package storage

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/FranksOps/pricewise/internal/analyzer"
)

// AssessmentNone selects runs that produced no comparison.
const AssessmentNone = "none"

// RunRecord is the stored outcome of one comparison run.
type RunRecord struct {
	ID             string               `json:"id"`
	Query          string               `json:"query"`
	PredictedPrice *float64             `json:"predicted_price,omitempty"`
	MarketAverage  *float64             `json:"market_average,omitempty"`
	Assessment     string               `json:"assessment,omitempty"` // "within_range", "outside_range" or empty
	SourceCount    int                  `json:"source_count"`
	Answer         analyzer.FinalAnswer `json:"answer"`
	Trace          []string             `json:"trace"`
	Duration       time.Duration        `json:"duration"`
	CreatedAt      time.Time            `json:"created_at"`
}

// NewRunRecord builds a record from a finished run, deriving the indexed
// columns from the answer.
func NewRunRecord(id, query string, predicted *float64, answer analyzer.FinalAnswer, trace []string, d time.Duration) *RunRecord {
	return &RunRecord{
		ID:             id,
		Query:          query,
		PredictedPrice: predicted,
		MarketAverage:  answer.Statistics.Average,
		Assessment:     string(answer.Assessment()),
		SourceCount:    answer.Statistics.SourceCount,
		Answer:         answer,
		Trace:          slices.Clone(trace),
		Duration:       d,
		CreatedAt:      time.Now().UTC(),
	}
}

// Filter allows querying for specific RunRecords.
type Filter struct {
	// Query matches records whose query contains it, case-insensitively.
	Query string
	// Assessment matches exactly; AssessmentNone selects runs without a comparison.
	Assessment string
	Since      *time.Time
	Limit      int
	Offset     int
}

// StoredAssessment is the column value the Assessment filter compares to.
func (f Filter) StoredAssessment() string {
	if f.Assessment == AssessmentNone {
		return ""
	}
	return f.Assessment
}

// Matches applies the filter's predicates to r. Backends without a query
// engine use it to filter in memory.
func (f Filter) Matches(r *RunRecord) bool {
	if f.Query != "" && !strings.Contains(strings.ToLower(r.Query), strings.ToLower(f.Query)) {
		return false
	}
	if f.Assessment != "" && r.Assessment != f.StoredAssessment() {
		return false
	}
	if f.Since != nil && r.CreatedAt.Before(*f.Since) {
		return false
	}
	return true
}

// Paginate orders records newest first and applies Offset and Limit.
func (f Filter) Paginate(records []*RunRecord) []*RunRecord {
	slices.SortStableFunc(records, func(a, b *RunRecord) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if f.Offset > 0 {
		if f.Offset >= len(records) {
			return []*RunRecord{}
		}
		records = records[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(records) {
		records = records[:f.Limit]
	}
	return records
}

// Backend defines the interface for storing and querying run records.
type Backend interface {
	Save(ctx context.Context, record *RunRecord) error
	Query(ctx context.Context, filter Filter) ([]*RunRecord, error)
	Close() error
}
