package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/samber/lo"

	"pluginrelay/internal/domain/entity"
)

const (
	defaultPluginSlug = "custom-plugin"
	activateTimeout   = 2 * time.Minute
)

var (
	pluginNameRe = regexp.MustCompile(`(?m)^[\s*/#]*Plugin Name:\s*(.+?)\s*$`)
	slugRe       = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

	ErrRefuseFallback = errors.New("refusing to install fallback code")
)

type Installer interface {
	Install(ctx context.Context, code string) (*Installation, error)
}

type Installation struct {
	Slug string
	Path string
	// Output holds wp-cli output when activation ran.
	Output string
}

// WordPressInstaller drops a plugin into <root>/wp-content/plugins/<slug>/ and
// optionally activates it with wp-cli.
type WordPressInstaller struct {
	root     string
	activate bool
	wpCLI    string
}

var _ Installer = (*WordPressInstaller)(nil)

func NewWordPressInstaller(root string, activate bool) *WordPressInstaller {
	return &WordPressInstaller{
		root:     root,
		activate: activate,
		wpCLI:    "wp",
	}
}

// WithCLI overrides the wp-cli binary.
func (i *WordPressInstaller) WithCLI(path string) *WordPressInstaller {
	i.wpCLI = path
	return i
}

func (i *WordPressInstaller) Install(ctx context.Context, code string) (*Installation, error) {
	if code == entity.FallbackCode {
		return nil, ErrRefuseFallback
	}

	pluginsDir := filepath.Join(i.root, "wp-content", "plugins")
	info, err := os.Stat(pluginsDir)
	if err != nil {
		return nil, fmt.Errorf("plugins directory not found %q: %w", pluginsDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("plugins path is not a directory: %s", pluginsDir)
	}

	slug := PluginSlug(code)
	dir := filepath.Join(pluginsDir, slug)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create plugin dir: %w", err)
	}
	path := filepath.Join(dir, entity.PluginFileName)
	if err := os.WriteFile(path, []byte(code), 0o644); err != nil {
		return nil, fmt.Errorf("write plugin: %w", err)
	}

	inst := &Installation{Slug: slug, Path: path}
	if !i.activate {
		return inst, nil
	}

	actCtx, cancel := context.WithTimeout(ctx, activateTimeout)
	defer cancel()

	cmd := exec.CommandContext(actCtx, i.wpCLI, "plugin", "activate", slug, "--path="+i.root)
	out, err := cmd.CombinedOutput()
	inst.Output = string(out)
	if err != nil {
		if actCtx.Err() != nil {
			return inst, fmt.Errorf("wp plugin activate canceled or timed out: %w", actCtx.Err())
		}
		return inst, fmt.Errorf("wp plugin activate failed: %w", err)
	}
	return inst, nil
}

// PluginSlug derives the directory name from the "Plugin Name:" header.
func PluginSlug(code string) string {
	m := pluginNameRe.FindStringSubmatch(code)
	if m == nil {
		return defaultPluginSlug
	}
	slug := lo.KebabCase(strings.TrimRight(m[1], " */"))
	if !slugRe.MatchString(slug) {
		return defaultPluginSlug
	}
	return slug
}
