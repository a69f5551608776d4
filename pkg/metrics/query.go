package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// SessionMetrics aggregates the activity of one interview session.
type SessionMetrics struct {
	SessionID      string  `json:"session_id"`
	InterviewTurns int64   `json:"interview_turns"`
	LLMRequests    int64   `json:"llm_requests"`
	LLMErrors      int64   `json:"llm_errors"`
	StageErrors    int64   `json:"stage_errors"`
	WorkflowRuns   int64   `json:"workflow_runs"`
	AvgStageTime   float64 `json:"avg_stage_time_seconds"`
}

// QueryService queries session metrics back out of Prometheus.
type QueryService struct {
	client   api.Client
	queryAPI v1.API
}

// NewQueryService creates a metrics query service.
func NewQueryService(prometheusURL string) (*QueryService, error) {
	client, err := api.NewClient(api.Config{
		Address: prometheusURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}

	return &QueryService{
		client:   client,
		queryAPI: v1.NewAPI(client),
	}, nil
}

func (q *QueryService) scalar(ctx context.Context, query string) (float64, error) {
	result, _, err := q.queryAPI.Query(ctx, query, time.Now())
	if err != nil {
		return 0, err
	}
	if vector, ok := result.(model.Vector); ok && len(vector) > 0 {
		return float64(vector[0].Value), nil
	}
	return 0, nil
}

// GetSessionMetrics aggregates counters for a specific session.
func (q *QueryService) GetSessionMetrics(ctx context.Context, sessionID string) (*SessionMetrics, error) {
	m := &SessionMetrics{SessionID: sessionID}

	turns, err := q.scalar(ctx, fmt.Sprintf(`sum(interview_turns_total{session_id=%q})`, sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to query interview turns: %w", err)
	}
	m.InterviewTurns = int64(turns)

	requests, err := q.scalar(ctx, fmt.Sprintf(`sum(llm_requests_total{session_id=%q})`, sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to query llm requests: %w", err)
	}
	m.LLMRequests = int64(requests)

	llmErrors, err := q.scalar(ctx, fmt.Sprintf(`sum(llm_requests_total{session_id=%q, status="error"})`, sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to query llm errors: %w", err)
	}
	m.LLMErrors = int64(llmErrors)

	stageErrors, err := q.scalar(ctx, fmt.Sprintf(`sum(stage_runs_total{session_id=%q, status="error"})`, sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to query stage errors: %w", err)
	}
	m.StageErrors = int64(stageErrors)

	runs, err := q.scalar(ctx, fmt.Sprintf(`sum(workflow_runs_total{session_id=%q})`, sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow runs: %w", err)
	}
	m.WorkflowRuns = int64(runs)

	avg, err := q.scalar(ctx, fmt.Sprintf(
		`sum(stage_duration_seconds_sum{session_id=%q}) / sum(stage_duration_seconds_count{session_id=%q})`,
		sessionID, sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to query stage durations: %w", err)
	}
	m.AvgStageTime = avg

	return m, nil
}
