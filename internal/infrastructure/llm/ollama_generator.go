package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"pluginrelay/internal/domain/entity"
	"pluginrelay/internal/domain/repository"
	"pluginrelay/internal/infrastructure/metrics"
)

const (
	ProviderOllama       = "ollama"
	DefaultOllamaModel   = "qwen2.5-coder"
	DefaultOllamaBaseURL = "http://localhost:11434"
)

type OllamaGenerator struct {
	client *api.Client
	model  string
}

func NewOllamaGenerator(baseURL, model string, httpClient *http.Client) (repository.LLMGenerator, error) {
	if model == "" {
		model = DefaultOllamaModel
	}
	if baseURL == "" {
		baseURL = DefaultOllamaBaseURL
	}
	// api.NewClient expects the server root, without the OpenAI-compatible /v1 suffix.
	baseURL = strings.TrimSuffix(strings.TrimSuffix(baseURL, "/"), "/v1")

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse ollama base url %q: %w", baseURL, err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &OllamaGenerator{
		client: api.NewClient(u, httpClient),
		model:  model,
	}, nil
}

func (g *OllamaGenerator) Provider() string { return ProviderOllama }

func (g *OllamaGenerator) Model() string { return g.model }

func (g *OllamaGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	metrics.IncLLMRequest(ProviderOllama, g.model)

	stream := false
	var out strings.Builder
	err := g.client.Generate(ctx, &api.GenerateRequest{
		Model:  g.model,
		Prompt: prompt,
		Stream: &stream,
	}, func(r api.GenerateResponse) error {
		out.WriteString(r.Response)
		return nil
	})
	if err != nil {
		metrics.IncError("llm", "ollama_generate")
		return "", fmt.Errorf("%w: ollama generate: %v", entity.ErrGenerationFailed, err)
	}

	if strings.TrimSpace(out.String()) == "" {
		metrics.IncError("llm", "ollama_empty_response")
		return "", fmt.Errorf("%w: ollama returned an empty completion", entity.ErrGenerationFailed)
	}
	return out.String(), nil
}
