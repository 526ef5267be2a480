package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/FranksOps/pricewise/internal/report"
	"github.com/FranksOps/pricewise/internal/storage"
	"github.com/spf13/cobra"
)

var historyFlags struct {
	limit      int
	offset     int
	query      string
	assessment string
	since      time.Duration
	format     string
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Summarise recorded comparison runs",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	f := historyCmd.Flags()
	f.IntVar(&historyFlags.limit, "limit", 20, "Maximum number of runs")
	f.IntVar(&historyFlags.offset, "offset", 0, "Skip this many of the newest runs")
	f.StringVar(&historyFlags.query, "query", "", "Only runs whose query contains this text")
	f.StringVar(&historyFlags.assessment, "assessment", "", "Only runs with this assessment: within_range, outside_range or none")
	f.DurationVar(&historyFlags.since, "since", 0, "Only runs newer than this, e.g. 24h")
	f.StringVarP(&historyFlags.format, "format", "f", "text", "Output format: text or json")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	switch historyFlags.assessment {
	case "", "within_range", "outside_range", storage.AssessmentNone:
	default:
		return fmt.Errorf("unknown assessment %q", historyFlags.assessment)
	}

	backend, err := openStorage(cmd.Context(), cfg.Storage)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	if backend == nil {
		return errors.New("history needs a storage backend; storage.backend is none")
	}
	defer backend.Close()

	filter := storage.Filter{
		Query:      historyFlags.query,
		Assessment: historyFlags.assessment,
		Limit:      historyFlags.limit,
		Offset:     historyFlags.offset,
	}
	if historyFlags.since > 0 {
		since := time.Now().Add(-historyFlags.since)
		filter.Since = &since
	}

	records, err := backend.Query(cmd.Context(), filter)
	if err != nil {
		return fmt.Errorf("query history: %w", err)
	}

	return report.WriteSummary(cmd.OutOrStdout(), historyFlags.format, report.GenerateSummary(records))
}
