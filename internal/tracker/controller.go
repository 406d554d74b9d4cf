// Package tracker owns the application state shown by every client: today's
// date, the current settings and the active period. All mutations go through
// the period store and are followed by a reload, so State is never ahead of
// what is persisted.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/tally/internal/apperr"
	"github.com/starford/tally/internal/day"
	"github.com/starford/tally/internal/debounce"
	"github.com/starford/tally/internal/export"
	"github.com/starford/tally/internal/models"
	"github.com/starford/tally/internal/store"
)

// Event kinds passed to Publisher.PublishEntryEvent.
const (
	KindSeeded   = "seeded"
	KindScore    = "score"
	KindNotes    = "notes"
	KindArchived = "archived"
)

// Publisher receives change notifications. The SSE broker implements it.
type Publisher interface {
	PublishEntryEvent(kind, date string)
	PublishSettingsEvent()
}

// SettingsService loads and saves user settings.
type SettingsService interface {
	Load(ctx context.Context) (models.AppSettings, error)
	SaveRaw(ctx context.Context, rawConfig, exportURL string) (models.AppSettings, error)
	SaveConfig(ctx context.Context, rawConfig string) (models.AppSettings, error)
}

// Exporter runs the export-then-archive sequence.
type Exporter interface {
	ClosePeriod(ctx context.Context, exportURL string, entries []models.DailyEntry) (*export.Result, error)
}

// State is a point-in-time view of the tracker.
type State struct {
	Today     string              `json:"today"`
	Settings  models.AppSettings  `json:"settings"`
	Entries   []models.DailyEntry `json:"entries"`
	Label     string              `json:"label"`
	Exporting bool                `json:"exporting"`
	// Draft is today's unsaved notes text, if an edit is pending.
	Draft *string `json:"draft,omitempty"`
}

type noteDraft struct {
	date string
	text string
}

// Controller serializes user operations against the period store and keeps
// the cached State in sync with it.
type Controller struct {
	period   store.PeriodStore
	settings SettingsService
	exporter Exporter
	clock    day.Clock
	pub      Publisher
	logger   *slog.Logger

	notes *debounce.Buffer[noteDraft]

	// opMu serializes read-modify-write sequences such as CycleScore.
	opMu sync.Mutex

	mu        sync.RWMutex
	state     State
	exporting bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the clock that decides what "today" is.
func WithClock(c day.Clock) Option {
	return func(ctl *Controller) { ctl.clock = c }
}

// WithPublisher sets the change notification sink.
func WithPublisher(p Publisher) Option {
	return func(ctl *Controller) { ctl.pub = p }
}

// WithNotesDebounce sets the quiet period for note edits.
func WithNotesDebounce(d time.Duration) Option {
	return func(ctl *Controller) {
		ctl.notes = debounce.New(d, ctl.flushDraft)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(ctl *Controller) { ctl.logger = l }
}

// New creates a controller. Call Resume before serving requests.
func New(period store.PeriodStore, settings SettingsService, exporter Exporter, opts ...Option) *Controller {
	c := &Controller{
		period:   period,
		settings: settings,
		exporter: exporter,
		clock:    day.SystemClock{},
		pub:      nopPublisher{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.notes == nil {
		c.notes = debounce.New(debounce.DefaultDelay, c.flushDraft)
	}
	return c
}

// Today returns the current local day.
func (c *Controller) Today() string {
	return day.TodayAt(c.clock)
}

// State returns a deep copy of the current state.
func (c *Controller) State() State {
	c.mu.RLock()
	st := c.state
	exporting := c.exporting
	c.mu.RUnlock()

	out := State{
		Today:     st.Today,
		Settings:  cloneSettings(st.Settings),
		Entries:   make([]models.DailyEntry, len(st.Entries)),
		Label:     st.Label,
		Exporting: exporting,
	}
	for i, e := range st.Entries {
		out.Entries[i] = e.Clone()
	}
	if d, ok := c.notes.Pending(); ok && d.date == out.Today {
		text := d.text
		out.Draft = &text
	}
	return out
}

// Load reads settings and the active period from storage.
func (c *Controller) Load(ctx context.Context) error {
	settings, err := c.settings.Load(ctx)
	if err != nil {
		return fmt.Errorf("tracker: load settings: %w", err)
	}
	entries, err := c.period.ActiveEntries(ctx)
	if err != nil {
		return fmt.Errorf("tracker: load entries: %w", err)
	}

	c.mu.Lock()
	c.state = State{
		Today:    c.Today(),
		Settings: settings,
		Entries:  entries,
		Label:    models.PeriodLabel(entries),
	}
	c.mu.Unlock()
	return nil
}

// Resume makes sure today's row exists and reloads. It is run at startup, on
// day rollover and whenever a client comes back to the foreground.
func (c *Controller) Resume(ctx context.Context) error {
	c.notes.Flush()

	c.mu.RLock()
	prev := c.state.Today
	c.mu.RUnlock()

	today := c.Today()
	if err := c.period.EnsureTodayRow(ctx, today); err != nil {
		return fmt.Errorf("tracker: seed today: %w", err)
	}
	if err := c.Load(ctx); err != nil {
		return err
	}
	if prev != today {
		c.logger.Info("tracker: day started", slog.String("date", today))
		c.pub.PublishEntryEvent(KindSeeded, today)
	}
	return nil
}

// Entry returns the stored entry for date.
func (c *Controller) Entry(ctx context.Context, date string) (*models.DailyEntry, error) {
	if !day.Valid(date) {
		return nil, fmt.Errorf("date %q: %w", date, apperr.ErrNotFound)
	}
	return c.period.GetEntry(ctx, date)
}

// History returns archived entries, newest first.
func (c *Controller) History(ctx context.Context, limit int) ([]models.DailyEntry, error) {
	return c.period.ArchivedEntries(ctx, limit)
}

// CycleScore advances one cell of the grid. Only today's column is editable.
func (c *Controller) CycleScore(ctx context.Context, date, metricID string) (models.ScoreValue, error) {
	if date == "" {
		date = c.Today()
	}
	if date != c.Today() {
		return 0, fmt.Errorf("date %s: %w", date, apperr.ErrReadOnlyDate)
	}
	if err := c.requireMetric(metricID); err != nil {
		return 0, err
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	entry, err := c.period.GetEntry(ctx, date)
	if err != nil {
		return 0, err
	}
	if entry.IsArchived {
		return 0, fmt.Errorf("entry %s: %w", date, apperr.ErrArchived)
	}
	current, scored := entry.Scores.Lookup(metricID)
	next := models.NextScore(current, scored)
	if err := c.period.UpdateScore(ctx, date, metricID, next); err != nil {
		return 0, err
	}
	c.afterWrite(ctx, KindScore, date)
	return next, nil
}

// SetScore writes an explicit level for any active day.
func (c *Controller) SetScore(ctx context.Context, date, metricID string, value models.ScoreValue) error {
	if err := c.requireMetric(metricID); err != nil {
		return err
	}
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if err := c.period.UpdateScore(ctx, date, metricID, value); err != nil {
		return err
	}
	c.afterWrite(ctx, KindScore, date)
	return nil
}

// EditNotes buffers text for today's entry; it is written after the quiet
// period or on FlushNotes.
func (c *Controller) EditNotes(text string) {
	c.notes.Set(noteDraft{date: c.Today(), text: text})
}

// TodayNotes returns the text the notes editor shows for today: the
// buffered edit if one is pending, the stored notes otherwise.
func (c *Controller) TodayNotes() string {
	today := c.Today()
	if d, ok := c.notes.Pending(); ok && d.date == today {
		return d.text
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.state.Entries {
		if e.Date == today {
			return e.Notes
		}
	}
	return ""
}

// FlushNotes writes any buffered note edit immediately.
func (c *Controller) FlushNotes() bool {
	return c.notes.Flush()
}

// SaveNotes replaces the notes of date right away, dropping a buffered edit
// for the same day.
func (c *Controller) SaveNotes(ctx context.Context, date, text string) error {
	if d, ok := c.notes.Pending(); ok && d.date == date {
		c.notes.Discard()
	}
	if err := c.period.UpdateNotes(ctx, date, text); err != nil {
		return err
	}
	c.afterWrite(ctx, KindNotes, date)
	return nil
}

// SaveSettings validates and stores new settings. On error nothing changes.
func (c *Controller) SaveSettings(ctx context.Context, rawConfig, exportURL string) (models.AppSettings, error) {
	saved, err := c.settings.SaveRaw(ctx, rawConfig, exportURL)
	if err != nil {
		return models.AppSettings{}, err
	}
	c.setSettings(saved)
	return saved, nil
}

// SaveConfig validates and stores a new metric config, keeping the export URL.
func (c *Controller) SaveConfig(ctx context.Context, rawConfig string) (models.AppSettings, error) {
	saved, err := c.settings.SaveConfig(ctx, rawConfig)
	if err != nil {
		return models.AppSettings{}, err
	}
	c.setSettings(saved)
	return saved, nil
}

// ClosePeriod exports the active period and archives it. Pending note edits
// are written first so the payload matches storage.
func (c *Controller) ClosePeriod(ctx context.Context) (*export.Result, error) {
	c.notes.Flush()

	c.mu.Lock()
	if c.exporting {
		c.mu.Unlock()
		return nil, apperr.ErrExportInProgress
	}
	c.exporting = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.exporting = false
		c.mu.Unlock()
	}()

	settings, err := c.settings.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("tracker: load settings: %w", err)
	}
	entries, err := c.period.ActiveEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("tracker: load entries: %w", err)
	}

	res, err := c.exporter.ClosePeriod(ctx, settings.ExportURL, entries)
	if err != nil {
		if errors.Is(err, apperr.ErrPartialCommit) {
			c.reload(ctx)
		}
		return nil, err
	}

	c.logger.Info("tracker: period closed",
		slog.String("export_id", res.ExportID),
		slog.Int64("archived", res.Archived))
	c.reload(context.WithoutCancel(ctx))
	c.pub.PublishEntryEvent(KindArchived, res.PeriodEndDate)
	return res, nil
}

// Close writes any pending note edit and stops the debouncer.
func (c *Controller) Close() {
	c.notes.Stop()
}

func (c *Controller) requireMetric(metricID string) error {
	if metricID == "" {
		return fmt.Errorf("empty metric id: %w", apperr.ErrInvalidScore)
	}
	c.mu.RLock()
	_, ok := c.state.Settings.FindMetric(metricID)
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("metric %q: %w", metricID, apperr.ErrNotFound)
	}
	return nil
}

func (c *Controller) setSettings(s models.AppSettings) {
	c.mu.Lock()
	c.state.Settings = s
	c.mu.Unlock()
	c.pub.PublishSettingsEvent()
}

func (c *Controller) afterWrite(ctx context.Context, kind, date string) {
	c.reload(ctx)
	c.pub.PublishEntryEvent(kind, date)
}

// reload refreshes the cached entries; failures keep the previous snapshot.
func (c *Controller) reload(ctx context.Context) {
	entries, err := c.period.ActiveEntries(ctx)
	if err != nil {
		c.logger.Warn("tracker: reload failed", slog.String("error", err.Error()))
		return
	}
	c.mu.Lock()
	c.state.Today = c.Today()
	c.state.Entries = entries
	c.state.Label = models.PeriodLabel(entries)
	c.mu.Unlock()
}

func (c *Controller) flushDraft(d noteDraft) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.period.UpdateNotes(ctx, d.date, d.text); err != nil {
		c.logger.Warn("tracker: notes not saved",
			slog.String("date", d.date), slog.String("error", err.Error()))
		return
	}
	c.afterWrite(ctx, KindNotes, d.date)
}

func cloneSettings(s models.AppSettings) models.AppSettings {
	out := models.AppSettings{ExportURL: s.ExportURL, Config: make([]models.CategoryConfig, len(s.Config))}
	for i, cat := range s.Config {
		metrics := make([]models.MetricConfig, len(cat.Metrics))
		copy(metrics, cat.Metrics)
		out.Config[i] = models.CategoryConfig{Category: cat.Category, Metrics: metrics}
	}
	return out
}

type nopPublisher struct{}

func (nopPublisher) PublishEntryEvent(string, string) {}
func (nopPublisher) PublishSettingsEvent()            {}
