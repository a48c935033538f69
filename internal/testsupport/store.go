package testsupport

import (
	"context"
	"database/sql"
	"testing"

	"liftmail/internal/config"
	"liftmail/internal/store"
)

// MustOpenStore opens and migrates the SQLite database for cfg and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *sql.DB {
	t.Helper()

	if cfg == nil {
		cfg = NewConfig(t)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	db, err := store.Open(cfg.DatabasePath())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	if err := store.Migrate(context.Background(), db, cfg.MigrationLockPath()); err != nil {
		t.Fatalf("migrate store: %v", err)
	}
	return db
}
