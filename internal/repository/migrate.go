package repository

import (
	"context"
	"fmt"
	"log/slog"

	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"
)

// Migrate creates or upgrades every table and index. It is safe to run on
// every start.
func Migrate(ctx context.Context, db *DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	drv := entsql.OpenDB(db.Dialect, db.SQL)
	m, err := schema.NewMigrate(drv)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := m.Create(ctx, Tables...); err != nil {
		logger.Error("schema migration failed", "dialect", db.Dialect, "error", err)
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Info("schema migrated", "dialect", db.Dialect, "tables", len(Tables))
	return nil
}
