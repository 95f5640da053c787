// Package llm abstracts the completion API used by file enrichment. All
// supported backends speak the OpenAI chat protocol, so one client covers
// OpenAI itself plus OpenRouter and local Ollama via their compatible
// endpoints.
package llm

import (
	"context"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

// Role represents the sender of a chat message.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Message is a single chat message.
type Message struct {
	Role    Role
	Content string
}

// CompletionRequest carries the parameters of one completion call.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
	JSONMode    bool
}

// CompletionResponse is the result of a completion call.
type CompletionResponse struct {
	Content      string
	InputTokens  int
	OutputTokens int
}

// Provider is the completion backend used by the enricher.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// Client implements Provider over any OpenAI-compatible endpoint.
type Client struct {
	name   string
	client *openai.Client
	model  string
}

// NewOpenAI creates a client for the OpenAI API.
func NewOpenAI(apiKey, model string) *Client {
	return &Client{name: "openai", client: openai.NewClient(apiKey), model: model}
}

// NewCompatible creates a client for an OpenAI-compatible endpoint such as
// OpenRouter or an Ollama server.
func NewCompatible(name, baseURL, apiKey, model string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &Client{name: name, client: openai.NewClientWithConfig(cfg), model: model}
}

// Name returns the provider name.
func (c *Client) Name() string { return c.name }

// Complete performs one chat completion.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	var messages []openai.ChatCompletionMessage
	for _, msg := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	apiReq := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: float32(req.Temperature),
	}
	if req.JSONMode {
		apiReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, apiReq)
	if err != nil {
		return nil, err
	}

	var content string
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}
	return &CompletionResponse{
		Content:      content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

// NewProvider builds a provider from a provider name and model. Supported:
// "openai", "openrouter", "ollama". An empty provider name returns (nil, nil)
// so callers can fall back to static analysis.
func NewProvider(providerType, model string) (Provider, error) {
	switch providerType {
	case "":
		return nil, nil
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
		}
		return NewOpenAI(apiKey, model), nil
	case "openrouter":
		apiKey := os.Getenv("OPENROUTER_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENROUTER_API_KEY environment variable is not set")
		}
		return NewCompatible("openrouter", "https://openrouter.ai/api/v1", apiKey, model), nil
	case "ollama":
		host := os.Getenv("OLLAMA_HOST")
		if host == "" {
			host = "http://localhost:11434"
		}
		return NewCompatible("ollama", host+"/v1", "ollama", model), nil
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", providerType)
	}
}
