package store

import (
	"database/sql"
	"fmt"
	"log/slog"
)

// migration is a single schema step tracked through PRAGMA user_version.
type migration struct {
	version     int
	description string
	up          string
}

// migrations is append-only; never edit a step that has shipped.
var migrations = []migration{
	{
		version:     1,
		description: "daily entries and settings",
		up: `
CREATE TABLE IF NOT EXISTS daily_entries (
	date        TEXT PRIMARY KEY,
	notes       TEXT NOT NULL DEFAULT '',
	scores      TEXT NOT NULL DEFAULT '{}',
	is_archived INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`,
	},
	{
		version:     2,
		description: "index active entries",
		up:          `CREATE INDEX IF NOT EXISTS idx_daily_entries_active ON daily_entries(is_archived, date);`,
	},
}

func schemaVersion(conn *sql.DB) (int, error) {
	var v int
	if err := conn.QueryRow(`PRAGMA user_version`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

// migrate applies every step newer than the stored user_version, one
// transaction per step.
func migrate(conn *sql.DB) error {
	current, err := schemaVersion(conn)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		slog.Debug("store: applying migration", slog.Int("version", m.version), slog.String("description", m.description))

		tx, err := conn.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(m.up); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("migration %d (%s): %w", m.version, m.description, err)
		}
		// PRAGMA does not accept bound parameters.
		if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, m.version)); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("stamp migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.version, err)
		}
	}
	return nil
}
