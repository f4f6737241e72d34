package repository

import (
	"context"
	"errors"

	"pluginrelay/internal/domain/entity"
)

var ErrGenerationNotFound = errors.New("generation not found")

// GenerationRepository stores the journal of relay calls.
type GenerationRepository interface {
	Save(ctx context.Context, g *entity.Generation) error
	GetByID(ctx context.Context, id string) (*entity.Generation, error)
	// List returns at most limit records, newest first.
	List(ctx context.Context, limit int) ([]*entity.Generation, error)
	Delete(ctx context.Context, id string) error
}
