package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2.0,
		Jitter:        false,
	}
}

func TestRetryableClientSucceedsAfterTransientErrors(t *testing.T) {
	mock := NewMockLLMClient(
		[]CompletionResponse{{Content: "ok"}},
		[]error{
			NewError(ErrorTypeTransient, "connection reset"),
			NewError(ErrorTypeRateLimit, "429 too many requests"),
			nil,
		},
	)
	client := NewRetryableClient(mock, fastRetryConfig())

	resp, err := client.Complete(context.Background(), NewCompletionRequest([]CompletionMessage{NewUserMessage("hi")}))
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 3, mock.CallCount())
}

func TestRetryableClientStopsOnNonRetryableError(t *testing.T) {
	authErr := NewError(ErrorTypeAuth, "401 invalid api key")
	mock := NewMockLLMClient(nil, []error{authErr})
	client := NewRetryableClient(mock, fastRetryConfig())

	_, err := client.Complete(context.Background(), NewCompletionRequest([]CompletionMessage{NewUserMessage("hi")}))
	require.Error(t, err)
	assert.ErrorIs(t, err, authErr)
	assert.Equal(t, 1, mock.CallCount(), "auth errors must not be retried")
}

func TestRetryableClientExhaustsRetries(t *testing.T) {
	transient := NewError(ErrorTypeTransient, "503 service unavailable")
	mock := NewMockLLMClient(nil, []error{transient})
	cfg := fastRetryConfig()
	client := NewRetryableClient(mock, cfg)

	_, err := client.Complete(context.Background(), NewCompletionRequest([]CompletionMessage{NewUserMessage("hi")}))
	require.Error(t, err)
	assert.Equal(t, cfg.MaxRetries+1, mock.CallCount())
	assert.Contains(t, err.Error(), "failed after 3 retries")
}

func TestRetryableClientHonorsContextCancellation(t *testing.T) {
	transient := NewError(ErrorTypeTransient, "timeout")
	mock := NewMockLLMClient(nil, []error{transient})
	cfg := fastRetryConfig()
	cfg.InitialDelay = time.Second
	client := NewRetryableClient(mock, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := client.Complete(ctx, NewCompletionRequest([]CompletionMessage{NewUserMessage("hi")}))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"rate limit status", errors.New("request failed with status 429"), ErrorTypeRateLimit},
		{"rate limit text", errors.New("rate limit exceeded"), ErrorTypeRateLimit},
		{"server error", errors.New("HTTP 503 service unavailable"), ErrorTypeTransient},
		{"network", errors.New("connection refused"), ErrorTypeTransient},
		{"timeout", errors.New("request timeout"), ErrorTypeTransient},
		{"empty response", errors.New("empty response from backend"), ErrorTypeEmptyResponse},
		{"auth", errors.New("status 401 unauthorized"), ErrorTypeAuth},
		{"bad prompt", errors.New("status 400 bad request"), ErrorTypeBadPrompt},
		{"unknown", errors.New("something odd"), ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err).Type)
		})
	}
}

func TestClassifyPassesThroughTypedErrors(t *testing.T) {
	typed := NewError(ErrorTypeEmptyResponse, "no content")
	got := Classify(typed)
	assert.Same(t, typed, got)
}

func TestShouldRetry(t *testing.T) {
	assert.True(t, ShouldRetry(NewError(ErrorTypeRateLimit, "x")))
	assert.True(t, ShouldRetry(NewError(ErrorTypeTransient, "x")))
	assert.True(t, ShouldRetry(NewError(ErrorTypeEmptyResponse, "x")))
	assert.False(t, ShouldRetry(NewError(ErrorTypeAuth, "x")))
	assert.False(t, ShouldRetry(NewError(ErrorTypeBadPrompt, "x")))
	assert.False(t, ShouldRetry(NewError(ErrorTypeUnknown, "x")))
	assert.False(t, ShouldRetry(nil))
}

func TestHandleTracksHealth(t *testing.T) {
	mock := NewMockLLMClient(
		[]CompletionResponse{{Content: "pong"}},
		[]error{nil, NewError(ErrorTypeTransient, "boom")},
	)
	h := NewHandle(mock, "test-model")
	assert.Equal(t, HealthUnknown, h.Health())

	_, err := h.Complete(context.Background(), NewCompletionRequest([]CompletionMessage{NewUserMessage("hi")}))
	require.NoError(t, err)
	assert.Equal(t, HealthConnected, h.Health())
	assert.NoError(t, h.LastError())

	_, err = h.Complete(context.Background(), NewCompletionRequest([]CompletionMessage{NewUserMessage("hi")}))
	require.Error(t, err)
	assert.Equal(t, HealthDisconnected, h.Health())
	assert.Error(t, h.LastError())
}

type completionObservation struct {
	model     string
	sessionID string
	success   bool
	errorType string
	duration  time.Duration
}

type captureCompletionRecorder struct {
	observed []completionObservation
}

func (c *captureCompletionRecorder) ObserveLLMRequest(model, sessionID string, success bool, errorType string, duration time.Duration) {
	c.observed = append(c.observed, completionObservation{model, sessionID, success, errorType, duration})
}

func TestHandleReportsCompletionsToRecorder(t *testing.T) {
	mock := NewMockLLMClient(
		[]CompletionResponse{{Content: "pong"}},
		[]error{nil, NewError(ErrorTypeRateLimit, "429 too many requests")},
	)
	h := NewHandle(mock, "test-model")
	rec := &captureCompletionRecorder{}
	h.SetRecorder(rec)

	req := NewCompletionRequest([]CompletionMessage{NewUserMessage("hi")})
	req.SessionID = "s1"
	_, err := h.Complete(context.Background(), req)
	require.NoError(t, err)

	_, err = h.Complete(context.Background(), req)
	require.Error(t, err)

	require.Len(t, rec.observed, 2)
	assert.Equal(t, "test-model", rec.observed[0].model)
	assert.Equal(t, "s1", rec.observed[0].sessionID)
	assert.True(t, rec.observed[0].success)
	assert.Empty(t, rec.observed[0].errorType)
	assert.False(t, rec.observed[1].success)
	assert.Equal(t, "rate_limit", rec.observed[1].errorType)
	assert.GreaterOrEqual(t, rec.observed[1].duration, time.Duration(0))
}

func TestEnsureAlternation(t *testing.T) {
	system, msgs, err := ensureAlternation([]CompletionMessage{
		NewSystemMessage("you are an interviewer"),
		NewUserMessage("hello"),
		NewUserMessage("more context"),
		NewAssistantMessage("hi"),
		NewUserMessage("next"),
	})
	require.NoError(t, err)
	assert.Equal(t, "you are an interviewer", system)
	require.Len(t, msgs, 3)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, "hello\n\nmore context", msgs[0].Content)
	assert.Equal(t, RoleAssistant, msgs[1].Role)
	assert.Equal(t, RoleUser, msgs[2].Role)
}

func TestEnsureAlternationRejectsEmptyAndAssistantTail(t *testing.T) {
	_, _, err := ensureAlternation(nil)
	assert.Error(t, err)

	_, _, err = ensureAlternation([]CompletionMessage{
		NewUserMessage("hello"),
		NewAssistantMessage("hi"),
	})
	assert.Error(t, err)
}

func TestFactoryRejectsMissingCredentials(t *testing.T) {
	_, err := NewClient(ProviderConfig{Provider: ProviderAnthropic})
	assert.Error(t, err)

	_, err = NewClient(ProviderConfig{Provider: ProviderOllama})
	assert.Error(t, err)

	_, err = NewClient(ProviderConfig{Provider: "nope"})
	assert.Error(t, err)
}
