package repository

import "pluginrelay/internal/domain/entity"

// PluginValidator inspects generated plugin code without modifying it.
type PluginValidator interface {
	Validate(code string) []*entity.Finding
}
