package repository

import "context"

// LLMGenerator sends a composite prompt to an external text-generation API and
// returns the raw completion. Implementations wrap every failure, including an
// empty completion, with entity.ErrGenerationFailed.
type LLMGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Provider() string
	Model() string
}
