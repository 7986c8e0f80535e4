package services

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all custom Prometheus metrics for the application
type Metrics struct {
	// Orchestrator metrics
	Acquisitions     *prometheus.CounterVec
	AcquireLatency   *prometheus.HistogramVec
	StageFailures    *prometheus.CounterVec
	ValidationErrors *prometheus.CounterVec
	BackgroundEnrich *prometheus.CounterVec

	// Upstream metrics
	CompletionAttempts *prometheus.CounterVec
	ImageResolutions   *prometheus.CounterVec
	FeedErrors         *prometheus.CounterVec

	// Chat metrics
	ChatRequests       prometheus.Counter
	ChatRequestLatency prometheus.Histogram
	ChatErrors         *prometheus.CounterVec
}

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// GetMetrics returns the process-wide metrics, registering them on first use
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = newMetrics()
	})
	return globalMetrics
}

func newMetrics() *Metrics {
	return &Metrics{
		// Dataset acquisitions by the stage that produced the records
		Acquisitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "astrohub_acquisitions_total",
			Help: "Total number of dataset acquisitions by producing stage",
		}, []string{"dataset", "source"}), // source: cache, generated, secondary, fallback

		AcquireLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "astrohub_acquire_duration_seconds",
			Help:    "Dataset acquisition latency in seconds",
			Buckets: []float64{0.005, 0.05, 0.25, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"dataset", "source"}),

		StageFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "astrohub_stage_failures_total",
			Help: "Total number of orchestrator stage failures by stage and reason",
		}, []string{"dataset", "stage", "reason"}),

		ValidationErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "astrohub_validation_errors_total",
			Help: "Total number of completions rejected by the validator",
		}, []string{"dataset", "reason"}), // reason: empty, malformed, schema

		BackgroundEnrich: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "astrohub_background_enrichments_total",
			Help: "Total number of deferred image enrichments by outcome",
		}, []string{"dataset", "outcome"}),

		CompletionAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "astrohub_completion_attempts_total",
			Help: "Total number of completion upstream calls by model and outcome",
		}, []string{"model", "outcome"}),

		ImageResolutions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "astrohub_image_resolutions_total",
			Help: "Total number of image resolutions by source",
		}, []string{"source"}), // source: cache, search, placeholder

		FeedErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "astrohub_feed_errors_total",
			Help: "Total number of read-only feed failures by feed and code",
		}, []string{"feed", "code"}),

		ChatRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "astrohub_chat_requests_total",
			Help: "Total number of chat requests processed",
		}),

		ChatRequestLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "astrohub_chat_request_duration_seconds",
			Help:    "Chat request latency in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),

		ChatErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "astrohub_chat_errors_total",
			Help: "Total number of chat errors by type",
		}, []string{"error_type"}),
	}
}

// RecordAcquisition records which stage served a dataset and how long it took
func (m *Metrics) RecordAcquisition(dataset, source string, seconds float64) {
	m.Acquisitions.WithLabelValues(dataset, source).Inc()
	m.AcquireLatency.WithLabelValues(dataset, source).Observe(seconds)
}

// RecordStageFailure records a non-fatal stage failure
func (m *Metrics) RecordStageFailure(dataset, stage, reason string) {
	m.StageFailures.WithLabelValues(dataset, stage, reason).Inc()
}

// RecordValidationError records a completion rejected by the validator
func (m *Metrics) RecordValidationError(dataset, reason string) {
	m.ValidationErrors.WithLabelValues(dataset, reason).Inc()
}

// RecordBackgroundEnrichment records the outcome of a deferred enrichment
func (m *Metrics) RecordBackgroundEnrichment(dataset, outcome string) {
	m.BackgroundEnrich.WithLabelValues(dataset, outcome).Inc()
}

// RecordCompletionAttempt records one completion upstream call
func (m *Metrics) RecordCompletionAttempt(model, outcome string) {
	m.CompletionAttempts.WithLabelValues(model, outcome).Inc()
}

// RecordImageResolution records where an image URL came from
func (m *Metrics) RecordImageResolution(source string) {
	m.ImageResolutions.WithLabelValues(source).Inc()
}

// RecordFeedError records a read-only feed failure
func (m *Metrics) RecordFeedError(feed, code string) {
	m.FeedErrors.WithLabelValues(feed, code).Inc()
}

// RecordChatRequest records a chat request
func (m *Metrics) RecordChatRequest() {
	m.ChatRequests.Inc()
}

// RecordChatLatency records chat request latency
func (m *Metrics) RecordChatLatency(seconds float64) {
	m.ChatRequestLatency.Observe(seconds)
}

// RecordChatError records a chat error
func (m *Metrics) RecordChatError(errorType string) {
	m.ChatErrors.WithLabelValues(errorType).Inc()
}
