package api

import (
	"github.com/starford/tally/internal/export"
	"github.com/starford/tally/internal/models"
	"github.com/starford/tally/internal/tracker"
)

// PeriodResponse is the active period as shown on the home screen.
type PeriodResponse = tracker.State

// NotesRequest is the request body for saving or drafting notes.
type NotesRequest struct {
	Notes string `json:"notes" example:"Walked the dog"`
}

// ScoreRequest is the request body for setting a score.
type ScoreRequest struct {
	Value *float64 `json:"value" example:"0.5" validate:"required"`
}

// ScoreResponse reports the stored level of one cell.
type ScoreResponse struct {
	Date   string            `json:"date" example:"2024-01-03" validate:"required"`
	Metric string            `json:"metric" example:"meditate" validate:"required"`
	Value  models.ScoreValue `json:"value" example:"0.5" validate:"required"`
}

// FlushResponse reports whether a pending draft was written.
type FlushResponse struct {
	Flushed bool `json:"flushed"`
}

// HistoryResponse lists archived entries, newest first.
type HistoryResponse struct {
	Entries []models.DailyEntry `json:"entries" validate:"required"`
}

// CloseResponse is returned after a successful export-and-archive.
type CloseResponse struct {
	Result *export.Result `json:"result" validate:"required"`
	Period tracker.State  `json:"period" validate:"required"`
}

// SettingsResponse carries settings plus the editor text for the config.
type SettingsResponse struct {
	Config     []models.CategoryConfig `json:"config" validate:"required"`
	ConfigText string                  `json:"configText" validate:"required"`
	ExportURL  string                  `json:"exportUrl"`
}

// SettingsRequest is the settings editor payload. ConfigText is raw JSON
// exactly as typed; it is validated before anything is stored.
type SettingsRequest struct {
	ConfigText string `json:"configText" validate:"required"`
	ExportURL  string `json:"exportUrl" example:"https://example.com/hook"`
}

// FormatRequest asks the server to pretty-print config text.
type FormatRequest struct {
	ConfigText string `json:"configText" validate:"required"`
}
