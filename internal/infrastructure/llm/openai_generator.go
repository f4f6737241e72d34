package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"pluginrelay/internal/domain/entity"
	"pluginrelay/internal/domain/repository"
	"pluginrelay/internal/infrastructure/metrics"
)

const (
	ProviderOpenAI     = "openai"
	DefaultOpenAIModel = "gpt-4o-mini"
)

// OpenAIGenerator talks to any OpenAI-compatible chat completions endpoint
// (OpenAI, OpenRouter, vLLM, LiteLLM).
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

func NewOpenAIGenerator(apiKey, baseURL, model string, httpClient *http.Client) repository.LLMGenerator {
	if model == "" {
		model = DefaultOpenAIModel
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (g *OpenAIGenerator) Provider() string { return ProviderOpenAI }

func (g *OpenAIGenerator) Model() string { return g.model }

func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	metrics.IncLLMRequest(ProviderOpenAI, g.model)

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		metrics.IncError("llm", "openai_chat_completion")
		return "", fmt.Errorf("%w: openai chat completion: %v", entity.ErrGenerationFailed, err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		metrics.IncError("llm", "openai_empty_response")
		return "", fmt.Errorf("%w: openai returned an empty completion", entity.ErrGenerationFailed)
	}
	return resp.Choices[0].Message.Content, nil
}
