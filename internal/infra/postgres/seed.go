package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"pathquest/internal/content"
	"pathquest/internal/domain"
)

type catalogRow struct {
	bun.BaseModel `bun:"table:catalogs"`

	ID        string          `bun:"id,pk"`
	Data      json.RawMessage `bun:"data,type:jsonb,notnull"`
	UpdatedAt time.Time       `bun:"updated_at,notnull"`
}

// SeedCatalog validates a catalog and upserts it under name.
func SeedCatalog(ctx context.Context, db *bun.DB, name string, catalog domain.Catalog) error {
	if err := content.Validate(catalog); err != nil {
		return err
	}
	data, err := json.Marshal(catalog)
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	row := &catalogRow{ID: name, Data: data, UpdatedAt: time.Now().UTC()}
	_, err = db.NewInsert().
		Model(row).
		On("CONFLICT (id) DO UPDATE").
		Set("data = EXCLUDED.data").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("seed catalog %q: %w", name, err)
	}
	return nil
}
