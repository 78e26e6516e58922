package redis

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"pathquest/internal/content"
	"pathquest/internal/domain"
)

func TestCatalogRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	catalog, err := content.DefaultCatalog()
	if err != nil {
		t.Fatalf("default catalog: %v", err)
	}
	loader := &countingLoader{
		Loader: content.NewStaticLoader(map[string]domain.Catalog{"default": catalog}),
	}
	repo := NewCatalogRepository(newClient(mr), loader, "pathquest:", time.Minute)

	got, err := repo.GetCatalog(context.Background(), "default")
	if err != nil {
		t.Fatalf("get catalog: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if !mr.Exists("pathquest:catalog:default") {
		t.Fatalf("expected catalog cached in redis")
	}
	if ttl := mr.TTL("pathquest:catalog:default"); ttl < time.Minute || ttl > time.Minute+6*time.Second {
		t.Fatalf("unexpected ttl %v", ttl)
	}

	// Second call should hit cache, loader not incremented.
	cached, err := repo.GetCatalog(context.Background(), "default")
	if err != nil {
		t.Fatalf("get cached catalog: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if len(cached.Cloze) != len(got.Cloze) || cached.Cloze[0].Text != got.Cloze[0].Text {
		t.Fatalf("cached catalog differs from loaded one")
	}

	if err := repo.Invalidate(context.Background(), "default"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := repo.GetCatalog(context.Background(), "default"); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected reload after invalidate, loader calls=%d", loader.calls)
	}
}

func TestCatalogRepositoryConcurrentNames(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	catalog, err := content.DefaultCatalog()
	if err != nil {
		t.Fatalf("default catalog: %v", err)
	}
	catalogs := make(map[string]domain.Catalog)
	for i := 0; i < 8; i++ {
		catalogs[fmt.Sprintf("c%d", i)] = catalog
	}
	repo := NewCatalogRepository(newClient(mr), content.NewStaticLoader(catalogs), "pq:", time.Minute)

	var wg sync.WaitGroup
	errs := make(chan error, len(catalogs))
	for name := range catalogs {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			if _, err := repo.GetCatalog(context.Background(), name); err != nil {
				errs <- err
			}
		}(name)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("get catalog: %v", err)
	}
	for name := range catalogs {
		if !mr.Exists("pq:catalog:" + name) {
			t.Fatalf("expected %s cached", name)
		}
	}
}

func TestCatalogRepositoryIgnoresCorruptEntry(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	catalog, err := content.DefaultCatalog()
	if err != nil {
		t.Fatalf("default catalog: %v", err)
	}
	mr.Set("pathquest:catalog:default", "{broken")
	loader := &countingLoader{
		Loader: content.NewStaticLoader(map[string]domain.Catalog{"default": catalog}),
	}
	repo := NewCatalogRepository(newClient(mr), loader, "pathquest:", 0)

	if _, err := repo.GetCatalog(context.Background(), "default"); err != nil {
		t.Fatalf("get catalog: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader fallback, calls=%d", loader.calls)
	}
}

type countingLoader struct {
	content.Loader
	calls int
}

func (l *countingLoader) LoadCatalog(ctx context.Context, name string) (domain.Catalog, error) {
	l.calls++
	return l.Loader.LoadCatalog(ctx, name)
}
