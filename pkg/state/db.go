package state

import (
	"database/sql"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/embervm/ember/internal/errx"
)

type migration struct {
	version int
	name    string
	sql     string
}

func registryMigrations() []migration {
	return []migration{
		{
			version: 1,
			name:    "create_instances",
			sql: `
CREATE TABLE IF NOT EXISTS instances (
  id TEXT PRIMARY KEY,
  socket_path TEXT NOT NULL,
  pid INTEGER NOT NULL DEFAULT 0,
  vm_state TEXT NOT NULL DEFAULT '',
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_instances_created ON instances(created_at DESC);
`,
		},
	}
}

func openDB(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errx.Wrap(ErrOpenRegistry, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errx.Wrap(ErrOpenRegistry, err)
	}
	// One writer at a time keeps the registry simple; the daemon is the
	// only frequent writer anyway.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  name TEXT NOT NULL,
  applied_at TEXT NOT NULL DEFAULT (datetime('now'))
);`)
	if err != nil {
		return errx.Wrap(ErrMigrateRegistry, err)
	}

	var current int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return errx.Wrap(ErrMigrateRegistry, err)
	}

	for _, m := range registryMigrations() {
		if m.version <= current {
			continue
		}
		if _, err := db.Exec(m.sql); err != nil {
			return errx.With(ErrMigrateRegistry, ": %s: %w", m.name, err)
		}
		if _, err := db.Exec(`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`, m.version, m.name); err != nil {
			return errx.With(ErrMigrateRegistry, ": record %s: %w", m.name, err)
		}
	}
	return nil
}
