package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"pathquest/internal/content"
	"pathquest/internal/domain"
)

// CatalogRepository caches whole catalogs in Redis as JSON and falls back to a loader on cache miss.
// Catalogs are stored as: SET {namespace}catalog:{name} {json} EX {ttl}
type CatalogRepository struct {
	client    *redis.Client
	loader    content.Loader
	namespace string
	ttl       time.Duration
	sf        singleflight.Group
	rndMu     sync.Mutex
	rnd       *rand.Rand
}

func NewCatalogRepository(client *redis.Client, loader content.Loader, namespace string, ttl time.Duration) *CatalogRepository {
	return &CatalogRepository{
		client:    client,
		loader:    loader,
		namespace: namespace,
		ttl:       ttl,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *CatalogRepository) GetCatalog(ctx context.Context, name string) (domain.Catalog, error) {
	if catalog, ok := r.cached(ctx, name); ok {
		return catalog, nil
	}

	result, err, _ := r.sf.Do(name, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if catalog, ok := r.cached(ctx, name); ok {
			return catalog, nil
		}

		catalog, err := r.loader.LoadCatalog(ctx, name)
		if err != nil {
			return domain.Catalog{}, err
		}
		if data, err := json.Marshal(catalog); err == nil {
			_ = r.client.Set(ctx, r.key(name), data, r.ttlWithJitter()).Err()
		}
		return catalog, nil
	})
	if err != nil {
		return domain.Catalog{}, err
	}
	return result.(domain.Catalog), nil
}

// Invalidate drops a cached catalog so the next read goes to the loader.
func (r *CatalogRepository) Invalidate(ctx context.Context, name string) error {
	return r.client.Del(ctx, r.key(name)).Err()
}

// cached treats unreadable or invalid entries as a miss.
func (r *CatalogRepository) cached(ctx context.Context, name string) (domain.Catalog, bool) {
	data, err := r.client.Get(ctx, r.key(name)).Bytes()
	if err != nil {
		return domain.Catalog{}, false
	}
	var catalog domain.Catalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		return domain.Catalog{}, false
	}
	if content.Validate(catalog) != nil {
		return domain.Catalog{}, false
	}
	return catalog, true
}

func (r *CatalogRepository) key(name string) string {
	return r.namespace + "catalog:" + name
}

func (r *CatalogRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
