package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/starford/tally/internal/models"
)

// PeriodStore defines the lifecycle operations over daily entries.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with fakes.
type PeriodStore interface {
	EnsureTodayRow(ctx context.Context, date string) error
	ActiveEntries(ctx context.Context) ([]models.DailyEntry, error)
	ArchivedEntries(ctx context.Context, limit int) ([]models.DailyEntry, error)
	GetEntry(ctx context.Context, date string) (*models.DailyEntry, error)
	UpdateNotes(ctx context.Context, date, text string) error
	UpdateScore(ctx context.Context, date, metricID string, value models.ScoreValue) error
	ArchiveAllActive(ctx context.Context) (int64, error)
	ArchiveAndReseed(ctx context.Context, date string) (int64, error)
}

// SettingsStore is the key-value contract used for app settings.
type SettingsStore interface {
	GetSettings(ctx context.Context, keys ...string) (map[string]string, error)
	PutSettings(ctx context.Context, values map[string]string) error
}

// Verify *DB satisfies both interfaces at compile time.
var (
	_ PeriodStore   = (*DB)(nil)
	_ SettingsStore = (*DB)(nil)
)

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
