package store

import (
	"context"
	"fmt"
)

// Setting keys.
const (
	KeyConfig    = "app_config_v1"
	KeyExportURL = "export_url_v1"
)

// GetSettings returns the stored values for keys. Missing keys are absent
// from the result map.
func (db *DB) GetSettings(ctx context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		var v string
		err := db.conn.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, k).Scan(&v)
		if err != nil {
			if isNoRows(err) {
				continue
			}
			return nil, fmt.Errorf("store: get setting %s: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

// PutSettings upserts every pair in one transaction.
func (db *DB) PutSettings(ctx context.Context, values map[string]string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`)
	if err != nil {
		return fmt.Errorf("store: prepare setting upsert: %w", err)
	}
	defer stmt.Close()

	for k, v := range values {
		if _, err := stmt.ExecContext(ctx, k, v); err != nil {
			return fmt.Errorf("store: put setting %s: %w", k, err)
		}
	}
	return tx.Commit()
}
