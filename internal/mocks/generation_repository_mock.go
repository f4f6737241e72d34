package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"pluginrelay/internal/domain/entity"
)

// GenerationRepository mocks repository.GenerationRepository.
type GenerationRepository struct {
	mock.Mock
}

func (m *GenerationRepository) Save(ctx context.Context, g *entity.Generation) error {
	args := m.Called(ctx, g)
	return args.Error(0)
}

func (m *GenerationRepository) GetByID(ctx context.Context, id string) (*entity.Generation, error) {
	args := m.Called(ctx, id)
	g, _ := args.Get(0).(*entity.Generation)
	return g, args.Error(1)
}

func (m *GenerationRepository) List(ctx context.Context, limit int) ([]*entity.Generation, error) {
	args := m.Called(ctx, limit)
	list, _ := args.Get(0).([]*entity.Generation)
	return list, args.Error(1)
}

func (m *GenerationRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
