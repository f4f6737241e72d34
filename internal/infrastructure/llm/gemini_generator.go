package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"pluginrelay/internal/domain/entity"
	"pluginrelay/internal/domain/repository"
	"pluginrelay/internal/infrastructure/metrics"
)

const (
	ProviderGemini     = "gemini"
	DefaultGeminiModel = "gemini-1.5-pro"
)

type GeminiGenerator struct {
	client *genai.Client
	// initErr is kept so a missing or rejected key fails each call instead of startup.
	initErr error
	model   string
}

func NewGeminiGenerator(ctx context.Context, apiKey, baseURL, model string, httpClient *http.Client) repository.LLMGenerator {
	if model == "" {
		model = DefaultGeminiModel
	}
	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	return &GeminiGenerator{
		client:  client,
		initErr: err,
		model:   model,
	}
}

func (g *GeminiGenerator) Provider() string { return ProviderGemini }

func (g *GeminiGenerator) Model() string { return g.model }

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	metrics.IncLLMRequest(ProviderGemini, g.model)

	if g.initErr != nil {
		metrics.IncError("llm", "gemini_client")
		return "", fmt.Errorf("%w: gemini client: %v", entity.ErrGenerationFailed, g.initErr)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		metrics.IncError("llm", "gemini_generate")
		return "", fmt.Errorf("%w: gemini generate: %v", entity.ErrGenerationFailed, err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		metrics.IncError("llm", "gemini_empty_response")
		return "", fmt.Errorf("%w: gemini returned an empty completion", entity.ErrGenerationFailed)
	}
	return text, nil
}
