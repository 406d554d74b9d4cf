package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/tally/internal/apperr"
	"github.com/starford/tally/internal/models"
)

// EnsureTodayRow seeds an empty active entry for date unless a row for that
// date already exists, archived or not. Safe to call on every resume.
func (db *DB) EnsureTodayRow(ctx context.Context, date string) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO daily_entries (date, notes, scores, is_archived) VALUES (?, '', '{}', 0)`,
		date)
	if err != nil {
		return fmt.Errorf("store: seed %s: %w", date, err)
	}
	return nil
}

// ActiveEntries returns every unarchived entry ordered by ascending date.
func (db *DB) ActiveEntries(ctx context.Context) ([]models.DailyEntry, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT date, notes, scores, is_archived FROM daily_entries WHERE is_archived = 0 ORDER BY date ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: active entries: %w", err)
	}
	return scanEntries(rows)
}

// ArchivedEntries returns closed-out entries, newest first. limit <= 0 means all.
func (db *DB) ArchivedEntries(ctx context.Context, limit int) ([]models.DailyEntry, error) {
	q := `SELECT date, notes, scores, is_archived FROM daily_entries WHERE is_archived = 1 ORDER BY date DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := db.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: archived entries: %w", err)
	}
	return scanEntries(rows)
}

// GetEntry returns the entry for date regardless of its archive state.
func (db *DB) GetEntry(ctx context.Context, date string) (*models.DailyEntry, error) {
	var (
		e        models.DailyEntry
		raw      string
		archived int
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT date, notes, scores, is_archived FROM daily_entries WHERE date = ?`, date).
		Scan(&e.Date, &e.Notes, &raw, &archived)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %s: %w", date, err)
	}
	e.Scores = decodeScores(e.Date, raw)
	e.IsArchived = archived != 0
	return &e, nil
}

// UpdateNotes replaces the notes of the active entry at date.
func (db *DB) UpdateNotes(ctx context.Context, date, text string) error {
	unlock := db.locks.lock(date)
	defer unlock()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := activeRow(ctx, tx, date); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE daily_entries SET notes = ? WHERE date = ?`, text, date); err != nil {
		return fmt.Errorf("store: update notes %s: %w", date, err)
	}
	return tx.Commit()
}

// UpdateScore sets scores[metricID] = value on the active entry at date and
// keeps every other key. The read, patch and write happen in one IMMEDIATE
// transaction under the date's row lock, so concurrent patches of different
// keys on the same day are all kept.
func (db *DB) UpdateScore(ctx context.Context, date, metricID string, value models.ScoreValue) error {
	if !value.Valid() {
		return fmt.Errorf("%w: %v", apperr.ErrInvalidScore, float64(value))
	}
	if metricID == "" {
		return fmt.Errorf("%w: metric id is required", apperr.ErrInvalidScore)
	}

	unlock := db.locks.lock(date)
	defer unlock()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	raw, err := activeRow(ctx, tx, date)
	if err != nil {
		return err
	}
	scores := decodeScores(date, raw)
	scores[metricID] = value

	encoded, err := json.Marshal(scores)
	if err != nil {
		return fmt.Errorf("store: encode scores: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE daily_entries SET scores = ? WHERE date = ?`, string(encoded), date); err != nil {
		return fmt.Errorf("store: update score %s/%s: %w", date, metricID, err)
	}
	return tx.Commit()
}

// ArchiveAllActive flips every active row to archived in one statement.
// Readers see either all rows active or none.
func (db *DB) ArchiveAllActive(ctx context.Context) (int64, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	n, err := archiveActive(ctx, tx)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit archive: %w", err)
	}
	return n, nil
}

// ArchiveAndReseed archives the active period and seeds date in a single
// transaction. Used to commit a successful export.
func (db *DB) ArchiveAndReseed(ctx context.Context, date string) (int64, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	n, err := archiveActive(ctx, tx)
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO daily_entries (date, notes, scores, is_archived) VALUES (?, '', '{}', 0)`,
		date); err != nil {
		return 0, fmt.Errorf("store: reseed %s: %w", date, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit archive: %w", err)
	}
	return n, nil
}

func archiveActive(ctx context.Context, tx *sql.Tx) (int64, error) {
	res, err := tx.ExecContext(ctx, `UPDATE daily_entries SET is_archived = 1 WHERE is_archived = 0`)
	if err != nil {
		return 0, fmt.Errorf("store: archive: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// activeRow returns the raw scores of the row at date, distinguishing a
// missing row from an archived one.
func activeRow(ctx context.Context, tx *sql.Tx, date string) (string, error) {
	var (
		raw      string
		archived int
	)
	err := tx.QueryRowContext(ctx, `SELECT scores, is_archived FROM daily_entries WHERE date = ?`, date).
		Scan(&raw, &archived)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("entry %s: %w", date, apperr.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("store: read %s: %w", date, err)
	}
	if archived != 0 {
		return "", fmt.Errorf("entry %s: %w", date, apperr.ErrArchived)
	}
	return raw, nil
}

func scanEntries(rows *sql.Rows) ([]models.DailyEntry, error) {
	defer rows.Close()
	out := []models.DailyEntry{}
	for rows.Next() {
		var (
			e        models.DailyEntry
			raw      string
			archived int
		)
		if err := rows.Scan(&e.Date, &e.Notes, &raw, &archived); err != nil {
			return nil, fmt.Errorf("store: scan entry: %w", err)
		}
		e.Scores = decodeScores(e.Date, raw)
		e.IsArchived = archived != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

// decodeScores never fails: corrupt JSON and out-of-domain values degrade to
// an empty map or a dropped key.
func decodeScores(date, raw string) models.Scores {
	var parsed map[string]float64
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		slog.Warn("store: corrupt scores, using empty map", slog.String("date", date), slog.String("error", err.Error()))
		return models.Scores{}
	}
	out := make(models.Scores, len(parsed))
	for k, f := range parsed {
		if v := models.ScoreValue(f); v.Valid() {
			out[k] = v
		}
	}
	return out
}
