package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// LLMGenerator mocks repository.LLMGenerator.
type LLMGenerator struct {
	mock.Mock
}

func (m *LLMGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func (m *LLMGenerator) Provider() string {
	args := m.Called()
	return args.String(0)
}

func (m *LLMGenerator) Model() string {
	args := m.Called()
	return args.String(0)
}
