package history

import (
	"database/sql"
	"fmt"
)

type migration struct {
	version int
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS runs (
  id TEXT PRIMARY KEY,
  created_at_utc TEXT NOT NULL,
  root TEXT NOT NULL DEFAULT '',
  seed_file TEXT NOT NULL,
  seed TEXT NOT NULL,
  classifier TEXT NOT NULL DEFAULT '',
  max_depth INTEGER NOT NULL,
  function_count INTEGER NOT NULL,
  edge_count INTEGER NOT NULL,
  unresolved_count INTEGER NOT NULL,
  diagnostic_count INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at_utc);

CREATE TABLE IF NOT EXISTS functions (
  run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
  position INTEGER NOT NULL,
  signature TEXT NOT NULL,
  qualified_name TEXT NOT NULL,
  class_name TEXT NOT NULL DEFAULT '',
  file_path TEXT NOT NULL,
  line INTEGER NOT NULL,
  end_line INTEGER NOT NULL,
  depth INTEGER NOT NULL,
  package_name TEXT NOT NULL DEFAULT '',
  is_project INTEGER NOT NULL,
  source_text TEXT NOT NULL,
  PRIMARY KEY (run_id, signature)
);

CREATE TABLE IF NOT EXISTS edges (
  run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
  position INTEGER NOT NULL,
  from_signature TEXT NOT NULL,
  to_signature TEXT NOT NULL,
  PRIMARY KEY (run_id, from_signature, to_signature)
);
`,
	},
}

func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  applied_at_utc TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP)
);
`); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	var current int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("read schema_migrations version: %w", err)
	}
	if current > SchemaVersion {
		return fmt.Errorf("schema version %d is newer than supported version %d", current, SchemaVersion)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations(version) VALUES (?)`, m.version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.version, err)
		}
	}
	return nil
}
