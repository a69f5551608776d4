package agent

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
)

// OpenAIClient wraps the official OpenAI Go client to implement LLMClient.
type OpenAIClient struct {
	client openai.Client
	model  string
}

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-5"

// NewOpenAIClient creates a new OpenAI client with the default model.
func NewOpenAIClient(apiKey string) LLMClient {
	return NewOpenAIClientWithModel(apiKey, DefaultOpenAIModel)
}

// NewOpenAIClientWithModel creates a new OpenAI client with a specific model.
func NewOpenAIClientWithModel(apiKey, model string) LLMClient {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIClient{
		client: client,
		model:  model,
	}
}

// Complete implements the LLMClient interface using the Responses API.
func (o *OpenAIClient) Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error) {
	// The responses API takes a single input string, so fold the
	// conversation into labeled turns.
	var inputText string
	for i := range in.Messages {
		msg := &in.Messages[i]
		switch msg.Role {
		case RoleSystem:
			inputText += fmt.Sprintf("System: %s\n\n", msg.Content)
		case RoleUser:
			inputText += msg.Content
		case RoleAssistant:
			inputText += fmt.Sprintf("Assistant: %s\n\n", msg.Content)
		}
	}

	params := responses.ResponseNewParams{
		Model:           o.model,
		MaxOutputTokens: openai.Int(int64(in.MaxTokens)),
		Input:           responses.ResponseNewParamsInputUnion{OfString: openai.String(inputText)},
	}

	resp, err := o.client.Responses.New(ctx, params)
	if err != nil {
		return CompletionResponse{}, Classify(fmt.Errorf("OpenAI responses API failed: %w", err))
	}
	if resp == nil {
		return CompletionResponse{}, NewError(ErrorTypeEmptyResponse, "empty response from OpenAI responses API")
	}

	content := resp.OutputText()
	if content == "" {
		return CompletionResponse{}, NewError(ErrorTypeEmptyResponse, "no text content in OpenAI response")
	}

	return CompletionResponse{Content: content}, nil
}

// GetModelName returns the model name for this client.
func (o *OpenAIClient) GetModelName() string {
	return o.model
}
