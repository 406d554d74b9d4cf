package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/tally/internal/models"
	"github.com/starford/tally/internal/settings"
	"github.com/starford/tally/internal/tracker"
)

// Handler holds API route handlers.
type Handler struct {
	ctl *tracker.Controller
}

// NewHandler creates a new Handler.
func NewHandler(ctl *tracker.Controller) *Handler {
	return &Handler{ctl: ctl}
}

// GetPeriod handles GET /api/period.
//
//	@Summary		Get today, settings and the active period
//	@Tags			period
//	@Produce		json
//	@Success		200	{object}	PeriodResponse
//	@Security		BearerAuth
//	@Router			/period [get]
func (h *Handler) GetPeriod(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.ctl.State())
}

// ResumePeriod handles POST /api/period/resume. Clients call it when they
// return to the foreground so a new day gets its row.
//
//	@Summary		Seed today's entry if missing and reload
//	@Tags			period
//	@Produce		json
//	@Success		200	{object}	PeriodResponse
//	@Security		BearerAuth
//	@Router			/period/resume [post]
func (h *Handler) ResumePeriod(w http.ResponseWriter, r *http.Request) {
	if err := h.ctl.Resume(r.Context()); err != nil {
		writeError(w, "resume", err)
		return
	}
	writeJSON(w, http.StatusOK, h.ctl.State())
}

// ClosePeriod handles POST /api/period/close.
//
//	@Summary		Export the active period to the webhook and archive it
//	@Tags			period
//	@Produce		json
//	@Success		200	{object}	CloseResponse
//	@Failure		409	{object}	errResponse
//	@Failure		422	{object}	errResponse
//	@Failure		502	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/period/close [post]
func (h *Handler) ClosePeriod(w http.ResponseWriter, r *http.Request) {
	res, err := h.ctl.ClosePeriod(r.Context())
	if err != nil {
		writeError(w, "close period", err)
		return
	}
	writeJSON(w, http.StatusOK, CloseResponse{Result: res, Period: h.ctl.State()})
}

// History handles GET /api/history.
//
//	@Summary		List archived entries, newest first
//	@Tags			period
//	@Produce		json
//	@Param			limit	query		int	false	"Max entries"
//	@Success		200		{object}	HistoryResponse
//	@Security		BearerAuth
//	@Router			/history [get]
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.ctl.History(r.Context(), limit)
	if err != nil {
		writeError(w, "history", err)
		return
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Entries: entries})
}

// GetEntry handles GET /api/entries/{date}.
//
//	@Summary		Get one daily entry
//	@Tags			entries
//	@Produce		json
//	@Param			date	path		string	true	"YYYY-MM-DD"
//	@Success		200		{object}	models.DailyEntry
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entries/{date} [get]
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := h.ctl.Entry(r.Context(), chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, "get entry", err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// SaveNotes handles PUT /api/entries/{date}/notes.
//
//	@Summary		Replace the notes of an active entry
//	@Tags			entries
//	@Accept			json
//	@Produce		json
//	@Param			date	path		string			true	"YYYY-MM-DD"
//	@Param			body	body		NotesRequest	true	"Notes text"
//	@Success		200		{object}	models.DailyEntry
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entries/{date}/notes [put]
func (h *Handler) SaveNotes(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	var req NotesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.ctl.SaveNotes(r.Context(), date, req.Notes); err != nil {
		writeError(w, "save notes", err)
		return
	}
	h.GetEntry(w, r)
}

// SetScore handles PUT /api/entries/{date}/scores/{metric}.
//
//	@Summary		Set a score for an active entry
//	@Tags			entries
//	@Accept			json
//	@Produce		json
//	@Param			date	path		string			true	"YYYY-MM-DD"
//	@Param			metric	path		string			true	"Metric id"
//	@Param			body	body		ScoreRequest	true	"0, 0.5 or 1"
//	@Success		200		{object}	ScoreResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entries/{date}/scores/{metric} [put]
func (h *Handler) SetScore(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	metric := chi.URLParam(r, "metric")
	var req ScoreRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Value == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("value is required"))
		return
	}
	value := models.ScoreValue(*req.Value)
	if err := h.ctl.SetScore(r.Context(), date, metric, value); err != nil {
		writeError(w, "set score", err)
		return
	}
	writeJSON(w, http.StatusOK, ScoreResponse{Date: date, Metric: metric, Value: value})
}

// CycleScore handles POST /api/today/scores/{metric}/cycle.
//
//	@Summary		Advance today's cell: none → ½ → full → none
//	@Tags			today
//	@Produce		json
//	@Param			metric	path		string	true	"Metric id"
//	@Success		200		{object}	ScoreResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/today/scores/{metric}/cycle [post]
func (h *Handler) CycleScore(w http.ResponseWriter, r *http.Request) {
	metric := chi.URLParam(r, "metric")
	date := h.ctl.Today()
	value, err := h.ctl.CycleScore(r.Context(), date, metric)
	if err != nil {
		writeError(w, "cycle score", err)
		return
	}
	writeJSON(w, http.StatusOK, ScoreResponse{Date: date, Metric: metric, Value: value})
}

// EditNotes handles PUT /api/today/notes/draft. The text is saved after a
// short quiet period, or on POST /api/today/notes/flush.
//
//	@Summary		Buffer an edit of today's notes
//	@Tags			today
//	@Accept			json
//	@Param			body	body	NotesRequest	true	"Notes text"
//	@Success		202		"Draft accepted"
//	@Security		BearerAuth
//	@Router			/today/notes/draft [put]
func (h *Handler) EditNotes(w http.ResponseWriter, r *http.Request) {
	var req NotesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.ctl.EditNotes(req.Notes)
	w.WriteHeader(http.StatusAccepted)
}

// FlushNotes handles POST /api/today/notes/flush.
//
//	@Summary		Write a buffered notes edit now
//	@Tags			today
//	@Produce		json
//	@Success		200	{object}	FlushResponse
//	@Security		BearerAuth
//	@Router			/today/notes/flush [post]
func (h *Handler) FlushNotes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, FlushResponse{Flushed: h.ctl.FlushNotes()})
}

// GetSettings handles GET /api/settings.
//
//	@Summary		Get settings and the formatted config text
//	@Tags			settings
//	@Produce		json
//	@Success		200	{object}	SettingsResponse
//	@Security		BearerAuth
//	@Router			/settings [get]
func (h *Handler) GetSettings(w http.ResponseWriter, _ *http.Request) {
	s := h.ctl.State().Settings
	h.writeSettings(w, s)
}

// SaveSettings handles PUT /api/settings.
//
//	@Summary		Validate and save settings
//	@Tags			settings
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SettingsRequest	true	"Editor contents"
//	@Success		200		{object}	SettingsResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/settings [put]
func (h *Handler) SaveSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	saved, err := h.ctl.SaveSettings(r.Context(), req.ConfigText, req.ExportURL)
	if err != nil {
		writeError(w, "save settings", err)
		return
	}
	h.writeSettings(w, saved)
}

// FormatConfig handles POST /api/settings/format.
//
//	@Summary		Pretty-print config text without saving it
//	@Tags			settings
//	@Accept			json
//	@Produce		json
//	@Param			body	body		FormatRequest	true	"Config text"
//	@Success		200		{object}	FormatRequest
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/settings/format [post]
func (h *Handler) FormatConfig(w http.ResponseWriter, r *http.Request) {
	var req FormatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	out, err := settings.Reformat(req.ConfigText)
	if err != nil {
		writeError(w, "format config", err)
		return
	}
	writeJSON(w, http.StatusOK, FormatRequest{ConfigText: out})
}

func (h *Handler) writeSettings(w http.ResponseWriter, s models.AppSettings) {
	text, err := settings.Format(s.Config)
	if err != nil {
		writeError(w, "format settings", err)
		return
	}
	writeJSON(w, http.StatusOK, SettingsResponse{Config: s.Config, ConfigText: text, ExportURL: s.ExportURL})
}
