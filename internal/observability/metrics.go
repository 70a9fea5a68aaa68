package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the research digest service.
// Counters and histograms are registered via promauto for automatic
// registration with the default Prometheus registry.
type Metrics struct {
	// WorkflowsStarted counts workflows initiated, labeled by flow
	// ("search" or "upload").
	WorkflowsStarted *prometheus.CounterVec

	// WorkflowsCompleted counts workflows that reached terminal success,
	// labeled by flow.
	WorkflowsCompleted *prometheus.CounterVec

	// WorkflowsFailed counts workflows that ended in failure, labeled by flow.
	WorkflowsFailed *prometheus.CounterVec

	// WorkflowDuration observes end-to-end workflow duration in seconds,
	// labeled by flow.
	WorkflowDuration *prometheus.HistogramVec

	// StageDuration observes per-stage duration in seconds, labeled by
	// stage (discovery, extraction, classification, summarization,
	// synthesis, narration).
	StageDuration *prometheus.HistogramVec

	// PapersProcessed counts papers that completed the per-paper analysis
	// loop across all workflows.
	PapersProcessed prometheus.Counter

	// SourceSearches counts source queries, labeled by source and outcome
	// ("success", "error").
	SourceSearches *prometheus.CounterVec

	// SourceSearchDuration observes source query duration in seconds,
	// labeled by source.
	SourceSearchDuration *prometheus.HistogramVec

	// SummariesGenerated counts summaries, labeled by method
	// (abstractive, extractive, fallback).
	SummariesGenerated *prometheus.CounterVec

	// StreamSubscribers tracks currently connected progress stream
	// subscribers.
	StreamSubscribers prometheus.Gauge

	// MirrorWriteFailures counts best-effort mirror writes that failed.
	MirrorWriteFailures prometheus.Counter
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	return newMetricsWithFactory(promauto.With(prometheus.DefaultRegisterer))
}

// NewMetricsWithRegistry creates metrics registered with a custom registry.
// Useful in tests to avoid duplicate registration panics.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	return newMetricsWithFactory(promauto.With(reg))
}

func newMetricsWithFactory(factory promauto.Factory) *Metrics {
	return &Metrics{
		WorkflowsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "research_digest_workflows_started_total",
			Help: "Total number of processing workflows initiated.",
		}, []string{"flow"}),

		WorkflowsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "research_digest_workflows_completed_total",
			Help: "Total number of workflows that completed successfully.",
		}, []string{"flow"}),

		WorkflowsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "research_digest_workflows_failed_total",
			Help: "Total number of workflows that ended in failure.",
		}, []string{"flow"}),

		WorkflowDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "research_digest_workflow_duration_seconds",
			Help:    "End-to-end workflow duration in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"flow"}),

		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "research_digest_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		}, []string{"stage"}),

		PapersProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "research_digest_papers_processed_total",
			Help: "Total number of papers that completed classification and summarization.",
		}),

		SourceSearches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "research_digest_source_searches_total",
			Help: "Total number of paper source queries by source and outcome.",
		}, []string{"source", "outcome"}),

		SourceSearchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "research_digest_source_search_duration_seconds",
			Help:    "Paper source query duration in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"source"}),

		SummariesGenerated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "research_digest_summaries_generated_total",
			Help: "Total number of summaries generated by method.",
		}, []string{"method"}),

		StreamSubscribers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "research_digest_stream_subscribers",
			Help: "Number of currently connected progress stream subscribers.",
		}),

		MirrorWriteFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "research_digest_mirror_write_failures_total",
			Help: "Total number of failed best-effort workflow mirror writes.",
		}),
	}
}
