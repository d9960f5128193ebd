package testutil

import (
	"context"
	"database/sql"
	"log/slog"
	"testing"

	"entgo.io/ent/dialect"

	// registers the "sqlite" database/sql driver
	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/syllabus-templates/internal/repository"
)

// OpenMemory opens a migrated in-memory SQLite database. A single connection
// keeps every query on the same in-memory database.
func OpenMemory(tb testing.TB) *repository.DB {
	tb.Helper()
	db, err := sql.Open("sqlite", "file::memory:?_pragma=foreign_keys(1)")
	if err != nil {
		tb.Fatalf("testutil.OpenMemory: %v", err)
	}
	db.SetMaxOpenConns(1)
	tb.Cleanup(func() { db.Close() })

	out := &repository.DB{SQL: db, Dialect: dialect.SQLite}
	if err := repository.Migrate(context.Background(), out, slog.Default()); err != nil {
		tb.Fatalf("testutil.OpenMemory: migrate: %v", err)
	}
	return out
}
