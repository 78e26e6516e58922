package cli

import (
	"context"
	"database/sql"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"pathquest/internal/config"
	"pathquest/internal/content"
	pgcatalog "pathquest/internal/infra/postgres"
	pgmigrations "pathquest/internal/infra/postgres/migrations"
	rediskv "pathquest/internal/infra/redis"
)

// NewMigrateCmd applies database migrations.
func NewMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			return runMigrationsWithConfig(cmd.Context(), cfg)
		},
	}
}

// NewSeedCmd stores the configured catalog file (or the bundled one) in Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Upload the catalog into Postgres",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			return runSeedWithConfig(cmd.Context(), cfg)
		},
	}
}

func openBun(cfg config.Config) (*bun.DB, error) {
	if cfg.Postgres.URL == "" {
		return nil, fmt.Errorf("postgres url not configured")
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

func runMigrationsWithConfig(ctx context.Context, cfg config.Config) error {
	db, err := openBun(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)

	if err := migrator.Init(ctx); err != nil {
		return err
	}

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return err
	}
	log.Info().Int64("group", group.ID).Msg("migrations applied")
	return nil
}

func runSeedWithConfig(ctx context.Context, cfg config.Config) error {
	if err := runMigrationsWithConfig(ctx, cfg); err != nil {
		return err
	}
	catalog, err := content.NewFileLoader(cfg.Content.Path).LoadCatalog(ctx, cfg.Content.Catalog)
	if err != nil {
		return err
	}

	db, err := openBun(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := pgcatalog.SeedCatalog(ctx, db, cfg.Content.Catalog, catalog); err != nil {
		return err
	}

	// Drop any cached copy so the next game start sees the new content.
	if cfg.Redis.Addr != "" {
		client := goredis.NewClient(&goredis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer client.Close()
		cache := rediskv.NewCatalogRepository(client, nil, cfg.Storage.Namespace, 0)
		if err := cache.Invalidate(ctx, cfg.Content.Catalog); err != nil {
			log.Warn().Err(err).Msg("invalidate cached catalog")
		}
	}
	log.Info().Str("catalog", cfg.Content.Catalog).
		Int("cloze", len(catalog.Cloze)).
		Int("mcq", len(catalog.MCQ)).
		Msg("catalog seeded")
	return nil
}
