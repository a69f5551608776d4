package agent

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"
)

// OllamaClient wraps the Ollama API client to implement LLMClient.
// Ollama is a local runtime for open-source models.
type OllamaClient struct {
	client  *api.Client
	model   string
	hostURL string
}

// DefaultOllamaHost is the standard local Ollama endpoint.
const DefaultOllamaHost = "http://localhost:11434"

// NewOllamaClientWithModel creates a new Ollama client for the given host
// URL and model. An unparseable host falls back to the local default.
func NewOllamaClientWithModel(hostURL, model string) LLMClient {
	parsedURL, err := url.Parse(hostURL)
	if err != nil {
		parsedURL, _ = url.Parse(DefaultOllamaHost)
	}

	client := api.NewClient(parsedURL, http.DefaultClient)

	return &OllamaClient{
		client:  client,
		model:   model,
		hostURL: hostURL,
	}
}

// Complete implements the LLMClient interface.
func (o *OllamaClient) Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error) {
	if len(in.Messages) == 0 {
		return CompletionResponse{}, NewError(ErrorTypeBadPrompt, "message list cannot be empty")
	}

	messages := make([]api.Message, 0, len(in.Messages))
	for i := range in.Messages {
		msg := &in.Messages[i]
		messages = append(messages, api.Message{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	stream := false
	req := &api.ChatRequest{
		Model:    o.model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]any{
			"temperature": in.Temperature,
			"num_predict": in.MaxTokens,
		},
	}

	var response api.ChatResponse
	err := o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		response = resp
		return nil
	})
	if err != nil {
		return CompletionResponse{}, Classify(fmt.Errorf("ollama chat failed: %w", err))
	}

	if response.Message.Content == "" {
		return CompletionResponse{}, NewError(ErrorTypeEmptyResponse, "empty response from Ollama")
	}

	return CompletionResponse{Content: response.Message.Content}, nil
}

// GetModelName returns the model name for this client.
func (o *OllamaClient) GetModelName() string {
	return o.model
}
