package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/FranksOps/pricewise/internal/metrics"
	"github.com/FranksOps/pricewise/internal/pipeline"
	"github.com/FranksOps/pricewise/internal/report"
	"github.com/FranksOps/pricewise/internal/storage"
	"github.com/spf13/cobra"
)

var compareFlags struct {
	format      string
	save        bool
	trace       bool
	metricsPort int
}

var compareCmd = &cobra.Command{
	Use:   "compare <product description...>",
	Short: "Compare a predicted price with prices found online",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCompare,
}

func init() {
	f := compareCmd.Flags()
	f.StringVarP(&compareFlags.format, "format", "f", "text", "Output format: json, text, html or yaml")
	f.BoolVar(&compareFlags.save, "save", false, "Record the run in the configured history store")
	f.BoolVar(&compareFlags.trace, "trace", false, "Print the stage trace to stderr")
	f.IntVar(&compareFlags.metricsPort, "metrics-port", 0, "Serve Prometheus metrics on this port while running (overrides metrics.port)")
}

func runCompare(cmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return errors.New("product description is empty")
	}
	ctx := cmd.Context()

	port := cfg.Metrics.Port
	if compareFlags.metricsPort > 0 {
		port = compareFlags.metricsPort
	}
	if port > 0 {
		srv := metrics.Start(port)
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Stop(stopCtx)
		}()
	}

	p, err := newPipeline(cfg)
	if err != nil {
		return fmt.Errorf("setup: %w", err)
	}

	var backend storage.Backend
	if compareFlags.save {
		backend, err = openStorage(ctx, cfg.Storage)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		if backend == nil {
			return errors.New("--save needs a storage backend; storage.backend is none")
		}
		defer backend.Close()
	}

	return compare(ctx, p, query, compareOutput{
		out:     cmd.OutOrStdout(),
		traceTo: traceWriter(cmd),
		format:  compareFlags.format,
		backend: backend,
	})
}

func traceWriter(cmd *cobra.Command) io.Writer {
	if !compareFlags.trace {
		return nil
	}
	return cmd.ErrOrStderr()
}

type compareOutput struct {
	out     io.Writer
	traceTo io.Writer
	format  string
	backend storage.Backend
}

// compare runs one query, renders the answer and optionally records the run.
func compare(ctx context.Context, p *pipeline.Pipeline, query string, o compareOutput) error {
	start := time.Now()
	state, err := p.Run(ctx, query)
	if err != nil {
		return fmt.Errorf("%w: %w", pipeline.ErrNoAnswer, err)
	}
	elapsed := time.Since(start)

	if err := report.WriteAnswer(o.out, o.format, state.FinalAnswer); err != nil {
		return err
	}

	if o.traceTo != nil {
		fmt.Fprintf(o.traceTo, "run %s (%s)\n", state.RunID, elapsed.Round(time.Millisecond))
		for _, line := range state.Trace {
			fmt.Fprintf(o.traceTo, "  %s\n", line)
		}
	}

	if o.backend != nil {
		rec := storage.NewRunRecord(state.RunID, state.Query, state.PredictedPrice, *state.FinalAnswer, state.Trace, elapsed)
		if err := o.backend.Save(ctx, rec); err != nil {
			return fmt.Errorf("save run: %w", err)
		}
		slog.Info("run saved", "run_id", rec.ID, "backend", cfg.Storage.Backend)
	}
	return nil
}
