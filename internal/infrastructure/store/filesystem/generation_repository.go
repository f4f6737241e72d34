package filesystem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"pluginrelay/internal/domain/entity"
	"pluginrelay/internal/domain/repository"
	"pluginrelay/internal/infrastructure/metrics"
)

const (
	backendName  = "filesystem"
	metadataFile = "metadata.json"
)

// GenerationRepository keeps one directory per generation holding the plugin
// file and a metadata.json journal record.
type GenerationRepository struct {
	basePath string
}

var _ repository.GenerationRepository = (*GenerationRepository)(nil)

func NewGenerationRepository(basePath string) (*GenerationRepository, error) {
	info, err := os.Stat(basePath)
	if os.IsNotExist(err) {
		if mkErr := os.MkdirAll(basePath, 0o755); mkErr != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", basePath, mkErr)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to check directory %s: %w", basePath, err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("path %s exists but is not a directory", basePath)
	}

	return &GenerationRepository{
		basePath: basePath,
	}, nil
}

func (r *GenerationRepository) GetBasePath() string {
	return r.basePath
}

func (r *GenerationRepository) Save(ctx context.Context, g *entity.Generation) error {
	metrics.IncStoreOp(backendName, "put")

	dir, err := r.dir(g.ID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		metrics.IncError("fs_generation_repo", "mkdir")
		return fmt.Errorf("failed to create generation directory: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, entity.PluginFileName), []byte(g.Code), 0o644); err != nil {
		metrics.IncError("fs_generation_repo", "write_plugin")
		return fmt.Errorf("failed to write %s: %w", entity.PluginFileName, err)
	}

	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, metadataFile), data, 0o644); err != nil {
		metrics.IncError("fs_generation_repo", "write_metadata")
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

func (r *GenerationRepository) GetByID(ctx context.Context, id string) (*entity.Generation, error) {
	metrics.IncStoreOp(backendName, "get")

	dir, err := r.dir(id)
	if err != nil {
		return nil, err
	}
	return r.read(dir)
}

func (r *GenerationRepository) List(ctx context.Context, limit int) ([]*entity.Generation, error) {
	metrics.IncStoreOp(backendName, "list")

	entries, err := os.ReadDir(r.basePath)
	if err != nil {
		metrics.IncError("fs_generation_repo", "list")
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var generations []*entity.Generation
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		g, err := r.read(filepath.Join(r.basePath, e.Name()))
		if err != nil {
			// directories without metadata are not ours
			continue
		}
		generations = append(generations, g)
	}

	sort.Slice(generations, func(i, j int) bool {
		return generations[i].CreatedAt.After(generations[j].CreatedAt)
	})
	if limit > 0 && len(generations) > limit {
		generations = generations[:limit]
	}
	return generations, nil
}

func (r *GenerationRepository) Delete(ctx context.Context, id string) error {
	metrics.IncStoreOp(backendName, "delete")

	dir, err := r.dir(id)
	if err != nil {
		return err
	}
	if _, err := os.Stat(filepath.Join(dir, metadataFile)); errors.Is(err, os.ErrNotExist) {
		return repository.ErrGenerationNotFound
	}
	if err := os.RemoveAll(dir); err != nil {
		metrics.IncError("fs_generation_repo", "delete")
		return fmt.Errorf("failed to delete generation directory: %w", err)
	}
	return nil
}

func (r *GenerationRepository) read(dir string) (*entity.Generation, error) {
	data, err := os.ReadFile(filepath.Join(dir, metadataFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, repository.ErrGenerationNotFound
		}
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var g entity.Generation
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	code, err := os.ReadFile(filepath.Join(dir, entity.PluginFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", entity.PluginFileName, err)
	}
	g.Code = string(code)
	return &g, nil
}

// dir rejects ids that would escape basePath.
func (r *GenerationRepository) dir(id string) (string, error) {
	if id == "" || id != filepath.Base(id) || id == "." || id == ".." {
		return "", repository.ErrGenerationNotFound
	}
	return filepath.Join(r.basePath, id), nil
}
