package agent

import (
	"context"
	"sync"
	"time"

	"specsmith/pkg/logx"
)

// HealthState describes whether a handle's backend is reachable.
type HealthState string

const (
	HealthConnected    HealthState = "connected"
	HealthDisconnected HealthState = "disconnected"
	HealthUnknown      HealthState = "unknown"
)

// CompletionRecorder receives one observation per completion call.
// Satisfied by metrics.PrometheusRecorder.
type CompletionRecorder interface {
	ObserveLLMRequest(model, sessionID string, success bool, errorType string, duration time.Duration)
}

// Handle is the typed client handle the interview engine and generation
// stages receive at construction time. It wraps an LLMClient, tracks the
// health of the last call, and exposes the backend's model name so callers
// never reach into process-global state to find their client.
type Handle struct {
	client LLMClient
	model  string

	mu        sync.RWMutex
	health    HealthState
	lastError error
	lastCall  time.Time
	recorder  CompletionRecorder

	logger *logx.Logger
}

// NewHandle wraps a client in a handle. The handle starts in the unknown
// health state until the first call settles.
func NewHandle(client LLMClient, model string) *Handle {
	return &Handle{
		client: client,
		model:  model,
		health: HealthUnknown,
		logger: logx.NewLogger("agent"),
	}
}

// SetRecorder installs the completion recorder. Call before the handle is
// shared; a nil recorder disables observation.
func (h *Handle) SetRecorder(rec CompletionRecorder) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recorder = rec
}

// Complete forwards to the underlying client, records health, and reports
// the call to the recorder when one is installed.
func (h *Handle) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	start := time.Now()
	resp, err := h.client.Complete(ctx, req)
	duration := time.Since(start)

	h.mu.Lock()
	h.lastCall = time.Now().UTC()
	if err != nil {
		h.health = HealthDisconnected
		h.lastError = err
	} else {
		h.health = HealthConnected
		h.lastError = nil
	}
	rec := h.recorder
	h.mu.Unlock()

	if rec != nil {
		errorType := ""
		if err != nil {
			errorType = Classify(err).Type.String()
		}
		rec.ObserveLLMRequest(h.model, req.SessionID, err == nil, errorType, duration)
	}

	if err != nil {
		h.logger.Warn("completion failed on %s: %v", h.model, err)
	}
	return resp, err
}

// Health returns the health observed on the most recent call.
func (h *Handle) Health() HealthState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.health
}

// LastError returns the error from the most recent failed call, or nil.
func (h *Handle) LastError() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastError
}

// Model returns the backend model name.
func (h *Handle) Model() string {
	return h.model
}

// HealthCheck issues a minimal completion to probe the backend.
func (h *Handle) HealthCheck(ctx context.Context) error {
	req := NewCompletionRequest([]CompletionMessage{NewUserMessage("ping")})
	req.MaxTokens = 8
	_, err := h.Complete(ctx, req)
	return err
}
