// Package metrics exposes Prometheus collectors for the ingestion service.
package metrics

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ingestItemsTotal          *prometheus.CounterVec
	ingestRunsTotal           *prometheus.CounterVec
	ingestRunDurationSeconds  *prometheus.HistogramVec
	imageProbesTotal          *prometheus.CounterVec
	imageProbeDurationSeconds prometheus.Histogram
	probeRecommendationsTotal *prometheus.CounterVec
	fetchStageAttemptsTotal   *prometheus.CounterVec
	articleUpsertsTotal       *prometheus.CounterVec
	activeSourceWorkers       prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		ingestItemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_items_total",
				Help: "Total candidate items processed, labeled by source and outcome.",
			},
			[]string{"source", "outcome"},
		)

		ingestRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_runs_total",
				Help: "Total ingest runs, labeled by status.",
			},
			[]string{"status"},
		)

		ingestRunDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ingest_run_duration_seconds",
				Help:    "Histogram of per-source run durations.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"source"},
		)

		imageProbesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "image_probes_total",
				Help: "Total image usability probes, labeled by result.",
			},
			[]string{"result"},
		)

		imageProbeDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "image_probe_duration_seconds",
				Help:    "Histogram of outbound image probe latencies.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
		)

		probeRecommendationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "probe_recommendations_total",
				Help: "Total source probes, labeled by recommended method.",
			},
			[]string{"method"},
		)

		fetchStageAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetch_stage_attempts_total",
				Help: "Fetch dispatcher stage attempts, labeled by stage and outcome.",
			},
			[]string{"stage", "outcome"},
		)

		articleUpsertsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "article_upserts_total",
				Help: "Article store writes, labeled by created vs updated.",
			},
			[]string{"result"},
		)

		activeSourceWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "ingest_active_source_workers",
				Help: "Number of workers currently ingesting a source.",
			},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveItem increments the item counter for a source/outcome pair.
func ObserveItem(source, outcome string) {
	Init()
	ingestItemsTotal.WithLabelValues(SanitizeSite(source), outcome).Inc()
}

// ObserveRun records a finished per-source run.
func ObserveRun(source, status string, duration time.Duration) {
	Init()
	ingestRunsTotal.WithLabelValues(status).Inc()
	ingestRunDurationSeconds.WithLabelValues(SanitizeSite(source)).Observe(duration.Seconds())
}

// ObserveImageProbe records one outbound image probe.
func ObserveImageProbe(result string, duration time.Duration) {
	Init()
	imageProbesTotal.WithLabelValues(result).Inc()
	imageProbeDurationSeconds.Observe(duration.Seconds())
}

// IncImageProbeCached counts a cache-served verdict. No duration is
// recorded since nothing went over the wire.
func IncImageProbeCached() {
	Init()
	imageProbesTotal.WithLabelValues("cached").Inc()
}

// ObserveRecommendation counts a probe recommendation by method.
func ObserveRecommendation(method string) {
	Init()
	probeRecommendationsTotal.WithLabelValues(method).Inc()
}

// ObserveFetchStage counts one dispatcher stage attempt.
func ObserveFetchStage(stage, outcome string) {
	Init()
	fetchStageAttemptsTotal.WithLabelValues(stage, outcome).Inc()
}

// ObserveUpsert counts an article write as created or updated.
func ObserveUpsert(created bool) {
	Init()
	result := "updated"
	if created {
		result = "created"
	}
	articleUpsertsTotal.WithLabelValues(result).Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	activeSourceWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	activeSourceWorkers.Dec()
}
