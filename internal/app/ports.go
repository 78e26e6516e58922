package app

import (
	"context"

	"pathquest/internal/domain"
)

// KeyValueStore abstracts the durable key/value space the game persists into
// (file, Redis, in-memory). Keys are flat strings; SetMany must be all-or-nothing.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	SetMany(ctx context.Context, values map[string]string) error
	Delete(ctx context.Context, keys ...string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// CatalogRepository loads quiz content (from cache/backing store).
type CatalogRepository interface {
	GetCatalog(ctx context.Context, name string) (domain.Catalog, error)
}

// Set writes a single key.
func Set(ctx context.Context, kv KeyValueStore, key, value string) error {
	return kv.SetMany(ctx, map[string]string{key: value})
}
