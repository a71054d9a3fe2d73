package db

import (
	"database/sql"
	"log/slog"

	"github.com/saadjs/bitelog/internal/errors"
)

type migration struct {
	version int
	name    string
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		name:    "initial_schema",
		sql: `
CREATE TABLE IF NOT EXISTS catalog_entries (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  brand TEXT NOT NULL DEFAULT '',
  product TEXT NOT NULL,
  portion_size REAL NOT NULL DEFAULT 1 CHECK(portion_size > 0),
  portion_unit TEXT NOT NULL DEFAULT 'serving',
  calories REAL NOT NULL CHECK(calories >= 0),
  protein_g REAL NOT NULL CHECK(protein_g >= 0),
  fat_g REAL NOT NULL CHECK(fat_g >= 0),
  net_carbs_g REAL NOT NULL CHECK(net_carbs_g >= 0),
  fiber_g REAL NOT NULL CHECK(fiber_g >= 0),
  usage_count INTEGER NOT NULL DEFAULT 0 CHECK(usage_count >= 0),
  last_used_at TEXT,
  dedup_key TEXT NOT NULL,
  search_text TEXT NOT NULL DEFAULT '',
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_catalog_entries_dedup_key ON catalog_entries(dedup_key);
CREATE INDEX IF NOT EXISTS idx_catalog_entries_usage ON catalog_entries(usage_count DESC, last_used_at DESC);

CREATE TABLE IF NOT EXISTS log_entries (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  consumed_at TEXT NOT NULL,
  meal_type TEXT NOT NULL CHECK(meal_type IN ('breakfast', 'lunch', 'dinner', 'snack')),
  servings REAL NOT NULL CHECK(servings > 0),
  catalog_id INTEGER,
  snap_brand TEXT NOT NULL DEFAULT '',
  snap_product TEXT NOT NULL,
  snap_portion_size REAL NOT NULL DEFAULT 1,
  snap_portion_unit TEXT NOT NULL DEFAULT '',
  snap_calories REAL NOT NULL CHECK(snap_calories >= 0),
  snap_protein_g REAL NOT NULL CHECK(snap_protein_g >= 0),
  snap_fat_g REAL NOT NULL CHECK(snap_fat_g >= 0),
  snap_net_carbs_g REAL NOT NULL CHECK(snap_net_carbs_g >= 0),
  snap_fiber_g REAL NOT NULL CHECK(snap_fiber_g >= 0),
  master_deleted INTEGER NOT NULL DEFAULT 0 CHECK(master_deleted IN (0, 1)),
  import_batch TEXT,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL,
  CHECK(master_deleted = 0 OR catalog_id IS NULL),
  FOREIGN KEY(catalog_id) REFERENCES catalog_entries(id)
);

CREATE INDEX IF NOT EXISTS idx_log_entries_consumed_at ON log_entries(consumed_at);
CREATE INDEX IF NOT EXISTS idx_log_entries_catalog_id ON log_entries(catalog_id);
CREATE INDEX IF NOT EXISTS idx_log_entries_import_batch ON log_entries(import_batch);
`,
	},
	{
		version: 2,
		name:    "log_entry_detach_guards",
		sql: `
CREATE TRIGGER IF NOT EXISTS trg_log_entries_master_deleted_monotonic
BEFORE UPDATE OF master_deleted ON log_entries
WHEN OLD.master_deleted = 1 AND NEW.master_deleted = 0
BEGIN
  SELECT RAISE(ABORT, 'master_deleted cannot be cleared');
END;

CREATE TRIGGER IF NOT EXISTS trg_log_entries_no_relink_detached
BEFORE UPDATE OF catalog_id ON log_entries
WHEN OLD.master_deleted = 1 AND NEW.catalog_id IS NOT NULL
BEGIN
  SELECT RAISE(ABORT, 'detached log entry cannot be relinked');
END;
`,
	},
}

func ApplyMigrations(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  name TEXT NOT NULL,
  applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`); err != nil {
		return errors.Wrap(err, "ensure schema_migrations table")
	}

	for _, m := range migrations {
		var exists int
		err := db.QueryRow(`SELECT 1 FROM schema_migrations WHERE version = ?`, m.version).Scan(&exists)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return errors.Wrapf(err, "check migration version %d", m.version)
		}

		tx, err := db.Begin()
		if err != nil {
			return errors.Wrap(err, "begin migration tx")
		}
		if _, err := tx.Exec(m.sql); err != nil {
			_ = tx.Rollback()
			return errors.Wrapf(err, "apply migration version %d (%s)", m.version, m.name)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations(version, name) VALUES(?, ?)`, m.version, m.name); err != nil {
			_ = tx.Rollback()
			return errors.Wrapf(err, "record migration version %d", m.version)
		}
		if err := tx.Commit(); err != nil {
			return errors.Wrapf(err, "commit migration version %d", m.version)
		}
		slog.Debug("applied migration", "version", m.version, "name", m.name)
	}
	return nil
}
