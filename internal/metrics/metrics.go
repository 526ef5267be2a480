package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Stage outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeEmpty   = "empty"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

var (
	StageRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricewise_stage_runs_total",
			Help: "Pipeline stage executions by outcome",
		},
		[]string{"stage", "outcome"},
	)

	CollaboratorDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pricewise_collaborator_duration_seconds",
			Help:    "Duration of calls to the prediction, search and content-fetch services",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"collaborator"},
	)

	FetchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricewise_fetch_requests_total",
			Help: "Direct page fetches by status and bot detection",
		},
		[]string{"domain", "status", "detected", "detection_src"},
	)

	FetchBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricewise_fetch_bytes_total",
			Help: "Bytes downloaded by direct page fetches",
		},
		[]string{"domain"},
	)

	ProxyFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricewise_proxy_failures_total",
			Help: "Proxy failures during direct page fetches",
		},
		[]string{"proxy_url"},
	)

	ExtractedPricesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pricewise_extracted_prices_total",
			Help: "Plausible prices extracted from fetched pages",
		},
	)

	AssessmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricewise_assessments_total",
			Help: "Final answers by prediction-versus-market assessment",
		},
		[]string{"assessment"},
	)
)

// RecordStage counts one stage execution.
func RecordStage(stage, outcome string) {
	StageRunsTotal.WithLabelValues(stage, outcome).Inc()
}

// ObserveCollaborator records how long a collaborator call took.
func ObserveCollaborator(collaborator string, d time.Duration) {
	CollaboratorDuration.WithLabelValues(collaborator).Observe(d.Seconds())
}

// Fetch describes one direct page fetch for RecordFetch.
type Fetch struct {
	Domain       string
	StatusCode   int
	Failed       bool
	DetectedBot  bool
	DetectionSrc string
	Bytes        int
}

// RecordFetch updates the fetch counters.
func RecordFetch(f Fetch) {
	status := strconv.Itoa(f.StatusCode)
	if f.Failed {
		status = "error"
	}
	FetchRequestsTotal.WithLabelValues(f.Domain, status, strconv.FormatBool(f.DetectedBot), f.DetectionSrc).Inc()
	FetchBytesTotal.WithLabelValues(f.Domain).Add(float64(f.Bytes))
}

// RecordAssessment counts a final answer; an empty assessment is counted as
// "none" (no comparison was possible).
func RecordAssessment(assessment string) {
	if assessment == "" {
		assessment = "none"
	}
	AssessmentsTotal.WithLabelValues(assessment).Inc()
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on the specified port and exposes /metrics.
func Start(port int) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "port", port, "err", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s == nil || s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
