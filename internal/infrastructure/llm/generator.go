package llm

import (
	"context"
	"fmt"
	"net/http"

	"pluginrelay/internal/domain/repository"
)

type Options struct {
	Provider string
	APIKey   string
	BaseURL  string
	Model    string
	// HTTPClient is optional; provider defaults are used when nil.
	HTTPClient *http.Client
}

// New builds the generator for opts.Provider. Credentials are not checked here.
func New(ctx context.Context, opts Options) (repository.LLMGenerator, error) {
	switch opts.Provider {
	case ProviderGemini, "":
		return NewGeminiGenerator(ctx, opts.APIKey, opts.BaseURL, opts.Model, opts.HTTPClient), nil
	case ProviderOpenAI:
		return NewOpenAIGenerator(opts.APIKey, opts.BaseURL, opts.Model, opts.HTTPClient), nil
	case ProviderOllama:
		return NewOllamaGenerator(opts.BaseURL, opts.Model, opts.HTTPClient)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", opts.Provider)
	}
}
