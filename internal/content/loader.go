package content

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"pathquest/internal/domain"
)

//go:embed default_catalog.yaml
var defaultCatalogYAML []byte

// Loader fetches a named catalog from a backing store (file, database).
type Loader interface {
	LoadCatalog(ctx context.Context, name string) (domain.Catalog, error)
}

// DefaultCatalog returns the bundled catalog.
func DefaultCatalog() (domain.Catalog, error) {
	return DecodeBytes(defaultCatalogYAML)
}

// FileLoader reads a catalog file. An empty path serves the bundled catalog.
// The catalog name is ignored: one file holds one catalog.
type FileLoader struct {
	path string
}

func NewFileLoader(path string) *FileLoader {
	return &FileLoader{path: path}
}

func (l *FileLoader) LoadCatalog(_ context.Context, _ string) (domain.Catalog, error) {
	if l.path == "" {
		return DefaultCatalog()
	}
	f, err := os.Open(l.path)
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// StaticLoader is backed by an in-memory map (useful for tests/demos).
type StaticLoader struct {
	catalogs map[string]domain.Catalog
}

func NewStaticLoader(catalogs map[string]domain.Catalog) *StaticLoader {
	return &StaticLoader{catalogs: catalogs}
}

func (l *StaticLoader) LoadCatalog(_ context.Context, name string) (domain.Catalog, error) {
	if catalog, ok := l.catalogs[name]; ok {
		return catalog, nil
	}
	return domain.Catalog{}, domain.ErrCatalogNotLoaded
}
