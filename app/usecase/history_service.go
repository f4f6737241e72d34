package usecase

import (
	"context"
	"errors"
	"fmt"

	"pluginrelay/internal/domain/entity"
	"pluginrelay/internal/domain/repository"
)

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

var ErrHistoryDisabled = errors.New("generation history is disabled")

type HistoryUseCase interface {
	Enabled() bool
	List(ctx context.Context, limit int) ([]*entity.Generation, error)
	Get(ctx context.Context, id string) (*entity.Generation, error)
	Delete(ctx context.Context, id string) error
}

type HistoryService struct {
	repo repository.GenerationRepository
}

// NewHistoryService accepts a nil repo; every call then returns ErrHistoryDisabled.
func NewHistoryService(repo repository.GenerationRepository) *HistoryService {
	return &HistoryService{repo: repo}
}

var _ HistoryUseCase = (*HistoryService)(nil)

func (s *HistoryService) Enabled() bool {
	return s.repo != nil
}

func (s *HistoryService) List(ctx context.Context, limit int) ([]*entity.Generation, error) {
	if s.repo == nil {
		return nil, ErrHistoryDisabled
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	limit = min(limit, MaxHistoryLimit)

	list, err := s.repo.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}
	if list == nil {
		list = []*entity.Generation{}
	}
	return list, nil
}

func (s *HistoryService) Get(ctx context.Context, id string) (*entity.Generation, error) {
	if s.repo == nil {
		return nil, ErrHistoryDisabled
	}
	if id == "" {
		return nil, fmt.Errorf("id is required")
	}
	g, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get generation %s: %w", id, err)
	}
	return g, nil
}

func (s *HistoryService) Delete(ctx context.Context, id string) error {
	if s.repo == nil {
		return ErrHistoryDisabled
	}
	if id == "" {
		return fmt.Errorf("id is required")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete generation %s: %w", id, err)
	}
	return nil
}
