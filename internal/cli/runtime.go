package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pathquest/internal/app"
	"pathquest/internal/config"
	"pathquest/internal/content"
	"pathquest/internal/infra/file"
	"pathquest/internal/infra/memory"
	pgcatalog "pathquest/internal/infra/postgres"
	rediskv "pathquest/internal/infra/redis"
)

// runtime holds a ready game and the connections behind it.
type runtime struct {
	cfg    config.Config
	game   *app.Game
	redis  *goredis.Client
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	config.ApplyEnv(&cfg)
	return cfg, nil
}

func newLogger() zerolog.Logger {
	return log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
}

// openRuntime connects the configured stores and loads the catalog.
func openRuntime(ctx context.Context, cfg config.Config) (*runtime, error) {
	rt := &runtime{cfg: cfg, logger: newLogger()}

	if cfg.Redis.Addr != "" {
		rt.redis = goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rt.redis.Ping(ctx).Err(); err != nil {
			rt.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
	}
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		rt.pool = pool
	}

	kv, err := rt.openKV()
	if err != nil {
		rt.Close()
		return nil, err
	}
	catalog, err := rt.catalogs().GetCatalog(ctx, cfg.Content.Catalog)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("load catalog %q: %w", cfg.Content.Catalog, err)
	}

	game, err := app.NewGame(ctx, kv, catalog, app.Options{
		DefaultMaxSteps: cfg.Game.DefaultMaxSteps,
		Seed:            cfg.Game.Seed,
		NoticeTTL:       config.TTLDuration(cfg.Game.NoticeTTL, 3*time.Second),
		Codes:           cfg.Codes,
		Logger:          rt.logger,
	})
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.game = game
	return rt, nil
}

func (rt *runtime) openKV() (app.KeyValueStore, error) {
	switch rt.cfg.Storage.Driver {
	case "memory":
		return memory.NewKVStore(), nil
	case "redis":
		if rt.redis == nil {
			return nil, fmt.Errorf("storage driver redis needs redis.addr")
		}
		return rediskv.NewKVStore(rt.redis, rt.cfg.Storage.Namespace), nil
	case "file", "":
		return file.Open(rt.cfg.Storage.Path, rt.logger)
	}
	return nil, fmt.Errorf("unknown storage driver %q", rt.cfg.Storage.Driver)
}

// catalogs picks the loader (postgres, else file or bundled) and puts a cache in front of it.
func (rt *runtime) catalogs() app.CatalogRepository {
	var loader content.Loader = content.NewFileLoader(rt.cfg.Content.Path)
	if rt.pool != nil {
		loader = pgcatalog.NewCatalogLoader(rt.pool)
	}
	ttl := config.TTLDuration(rt.cfg.Content.TTL, 10*time.Minute)
	if rt.redis != nil {
		return rediskv.NewCatalogRepository(rt.redis, loader, rt.cfg.Storage.Namespace, ttl)
	}
	return memory.NewCatalogRepository(loader, ttl)
}

func (rt *runtime) Close() {
	if rt.pool != nil {
		rt.pool.Close()
	}
	if rt.redis != nil {
		_ = rt.redis.Close()
	}
}

// withGame opens the runtime from the --config flag, runs fn and closes it.
func withGame(ctx context.Context, fn func(rt *runtime) error) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	rt, err := openRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(rt)
}
