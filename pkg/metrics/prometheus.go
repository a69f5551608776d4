// Package metrics provides Prometheus-based metrics recording for the
// interview engine and the workflow stages, plus a query service for
// aggregating per-session numbers.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusRecorder records engine activity as Prometheus metrics.
type PrometheusRecorder struct {
	interviewTurns *prometheus.CounterVec
	stageRuns      *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	workflowRuns   *prometheus.CounterVec
	llmRequests    *prometheus.CounterVec
	llmDuration    *prometheus.HistogramVec
}

// NewPrometheusRecorder creates a recorder registered on the default
// registry. Create it once per process.
func NewPrometheusRecorder() *PrometheusRecorder {
	return &PrometheusRecorder{
		interviewTurns: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "interview_turns_total",
				Help: "Total interview turns by session and kind (intro, navigation, answer, completion)",
			},
			[]string{"session_id", "kind"},
		),
		stageRuns: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stage_runs_total",
				Help: "Total generation stage runs by stage and status",
			},
			[]string{"session_id", "stage", "status"},
		),
		stageDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stage_duration_seconds",
				Help:    "Duration of generation stage runs in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"session_id", "stage"},
		),
		workflowRuns: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workflow_runs_total",
				Help: "Total documentation workflow runs by terminal status",
			},
			[]string{"session_id", "status"},
		),
		llmRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_requests_total",
				Help: "Total text-generation requests by model and status",
			},
			[]string{"model", "session_id", "status", "error_type"},
		),
		llmDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "llm_request_duration_seconds",
				Help:    "Duration of text-generation requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"model", "session_id"},
		),
	}
}

// ObserveTurn records an interview turn.
func (p *PrometheusRecorder) ObserveTurn(sessionID, kind string) {
	p.interviewTurns.WithLabelValues(sessionID, kind).Inc()
}

// ObserveStage records a completed stage run.
func (p *PrometheusRecorder) ObserveStage(sessionID, stage string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	p.stageRuns.WithLabelValues(sessionID, stage, status).Inc()
	p.stageDuration.WithLabelValues(sessionID, stage).Observe(duration.Seconds())
}

// ObserveWorkflow records a finished workflow run.
func (p *PrometheusRecorder) ObserveWorkflow(sessionID string, success bool) {
	status := "completed"
	if !success {
		status = "error"
	}
	p.workflowRuns.WithLabelValues(sessionID, status).Inc()
}

// ObserveLLMRequest records a text-generation call.
func (p *PrometheusRecorder) ObserveLLMRequest(model, sessionID string, success bool, errorType string, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	p.llmRequests.WithLabelValues(model, sessionID, status, errorType).Inc()
	p.llmDuration.WithLabelValues(model, sessionID).Observe(duration.Seconds())
}
