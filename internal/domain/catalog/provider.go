package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
)

// ErrNotFound is returned for unknown or unauthorized definition ids.
var ErrNotFound = errors.New("application definition not found")

// Provider supplies the definitions a user may launch. The lifecycle core
// trusts its answers and performs no authorization itself.
type Provider interface {
	Definitions(ctx context.Context, user User) ([]Definition, error)
	Definition(ctx context.Context, user User, id string) (Definition, error)
}

// file is the on-disk layout of a catalog file.
type file struct {
	Applications []Definition `yaml:"applications" toml:"applications"`
}

// FileProvider serves definitions loaded from YAML or TOML files. Path may be
// a single file or a directory scanned recursively.
type FileProvider struct {
	path   string
	logger *zap.Logger

	mu   sync.RWMutex
	defs map[string]Definition
}

// NewFileProvider creates a provider and loads path.
func NewFileProvider(path string, logger *zap.Logger) (*FileProvider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &FileProvider{path: path, logger: logger, defs: make(map[string]Definition)}
	if err := p.Reload(context.Background()); err != nil {
		return nil, err
	}
	return p, nil
}

// Reload rereads the catalog. On error the previous definitions are kept.
func (p *FileProvider) Reload(ctx context.Context) error {
	files, err := catalogFiles(ctx, p.path)
	if err != nil {
		return err
	}

	defs := make(map[string]Definition)
	var errs []error
	for _, name := range files {
		loaded, err := loadFile(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, d := range loaded {
			if err := d.Validate(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				continue
			}
			if _, dup := defs[d.ID]; dup {
				errs = append(errs, fmt.Errorf("%s: %w: duplicate id %q", name, ErrInvalidDefinition, d.ID))
				continue
			}
			defs[d.ID] = d
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	p.mu.Lock()
	p.defs = defs
	p.mu.Unlock()

	p.logger.Info("Catalog loaded", zap.String("path", p.path), zap.Int("files", len(files)), zap.Int("applications", len(defs)))
	return nil
}

// All returns every definition regardless of role, sorted by id.
func (p *FileProvider) All() []Definition {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Definition, 0, len(p.defs))
	for _, d := range p.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Definitions implements Provider.
func (p *FileProvider) Definitions(_ context.Context, user User) ([]Definition, error) {
	all := p.All()
	out := all[:0]
	for _, d := range all {
		if user.Role.Allows(d.MinimumRole) {
			out = append(out, d)
		}
	}
	return out, nil
}

// Definition implements Provider.
func (p *FileProvider) Definition(_ context.Context, user User, id string) (Definition, error) {
	p.mu.RLock()
	d, ok := p.defs[id]
	p.mu.RUnlock()

	if !ok || !user.Role.Allows(d.MinimumRole) {
		return Definition{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return d, nil
}

func catalogFiles(ctx context.Context, root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", root, err)
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	var (
		mu    sync.Mutex
		files []string
	)
	conf := fastwalk.Config{Follow: false}
	err = fastwalk.Walk(&conf, root, func(p string, d os.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil || d.IsDir() || !supported(p) {
			return nil
		}
		mu.Lock()
		files = append(files, p)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan catalog %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

func supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".toml":
		return true
	}
	return false
}

func loadFile(name string) ([]Definition, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var f file
	switch strings.ToLower(filepath.Ext(name)) {
	case ".toml":
		err = toml.Unmarshal(data, &f)
	default:
		err = yaml.Unmarshal(data, &f)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	return f.Applications, nil
}
