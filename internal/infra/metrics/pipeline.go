package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courier_runs_total",
			Help: "Finished pipeline runs by outcome and delivery method.",
		},
		[]string{"outcome", "method"},
	)

	runDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "courier_run_duration_seconds",
			Help:    "End-to-end run duration distribution.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"outcome"},
	)

	fetchedBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "courier_fetched_bytes_total",
			Help: "Total bytes brought into workspaces.",
		},
	)

	stageDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "courier_stage_duration_seconds",
			Help:    "Per-stage latency (resolve, fetch, deliver).",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"stage"},
	)

	ingestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courier_ingest_total",
			Help: "Inbound requests by ingestion variant (poll/webhook/http).",
		},
		[]string{"variant"},
	)
)

var registerOnce sync.Once

// MustRegister installs the courier collectors with the default registry.
// Safe to call more than once; only the first call registers.
func MustRegister() {
	registerOnce.Do(func() {
		prometheus.MustRegister(runsTotal, runDurationSeconds, stageDurationSeconds, fetchedBytesTotal, ingestTotal)
	})
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// ObserveRun records one finished run.
func ObserveRun(outcome, method string, elapsed time.Duration) {
	if method == "" {
		method = "none"
	}
	runsTotal.WithLabelValues(norm(outcome), norm(method)).Inc()
	runDurationSeconds.WithLabelValues(norm(outcome)).Observe(elapsed.Seconds())
}

// ObserveStage records the latency of one pipeline stage.
func ObserveStage(stage string, elapsed time.Duration) {
	stageDurationSeconds.WithLabelValues(norm(stage)).Observe(elapsed.Seconds())
}

// AddFetchedBytes accumulates downloaded artifact sizes.
func AddFetchedBytes(n int64) {
	fetchedBytesTotal.Add(float64(n))
}

// IncIngest counts an admitted inbound request per ingestion variant.
func IncIngest(variant string) {
	ingestTotal.WithLabelValues(norm(variant)).Inc()
}
