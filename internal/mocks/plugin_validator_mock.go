package mocks

import (
	"github.com/stretchr/testify/mock"

	"pluginrelay/internal/domain/entity"
)

// PluginValidator mocks repository.PluginValidator.
type PluginValidator struct {
	mock.Mock
}

func (m *PluginValidator) Validate(code string) []*entity.Finding {
	args := m.Called(code)
	findings, _ := args.Get(0).([]*entity.Finding)
	return findings
}
