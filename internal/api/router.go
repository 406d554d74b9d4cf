package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/tally/internal/capability/applink"
	"github.com/starford/tally/internal/capability/speech"
	"github.com/starford/tally/internal/tracker"
)

// RouterOption enables optional route groups.
type RouterOption func(*routerOptions)

type routerOptions struct {
	opener  applink.Opener
	session *speech.Session
	remote  *speech.Remote
}

// WithAppLinks mounts POST /metrics/{metric}/open, launching linked apps
// on the host through opener.
func WithAppLinks(opener applink.Opener) RouterOption {
	return func(o *routerOptions) { o.opener = opener }
}

// WithDictation mounts the /dictation routes. remote must be the recognizer
// session was created with.
func WithDictation(session *speech.Session, remote *speech.Remote) RouterOption {
	return func(o *routerOptions) {
		o.session = session
		o.remote = remote
	}
}

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// snaps, if non-nil, exposes stored export snapshots under /snapshots.
func NewRouter(ctl *tracker.Controller, authEnabled bool, token string, sseHandler http.Handler, snaps SnapshotSource, opts ...RouterOption) chi.Router {
	h := NewHandler(ctl)

	var ro routerOptions
	for _, opt := range opts {
		opt(&ro)
	}

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Active period.
	r.Get("/period", h.GetPeriod)
	r.Post("/period/resume", h.ResumePeriod)
	r.Post("/period/close", h.ClosePeriod)
	r.Get("/history", h.History)

	// Entries by date.
	r.Get("/entries/{date}", h.GetEntry)
	r.Put("/entries/{date}/notes", h.SaveNotes)
	r.Put("/entries/{date}/scores/{metric}", h.SetScore)

	// Today's grid column and notes editor.
	r.Post("/today/scores/{metric}/cycle", h.CycleScore)
	r.Put("/today/notes/draft", h.EditNotes)
	r.Post("/today/notes/flush", h.FlushNotes)

	// Settings.
	r.Get("/settings", h.GetSettings)
	r.Put("/settings", h.SaveSettings)
	r.Post("/settings/format", h.FormatConfig)

	if ro.opener != nil {
		lh := NewAppLinkHandler(ctl, ro.opener)
		r.Post("/metrics/{metric}/open", lh.Open)
	}

	if ro.session != nil && ro.remote != nil {
		dh := NewDictationHandler(ctl, ro.session, ro.remote)
		r.Get("/dictation", dh.View)
		r.Post("/dictation/toggle", dh.Toggle)
		r.Post("/dictation/events", dh.PushEvent)
		r.Post("/dictation/commit", dh.Commit)
	}

	if snaps != nil {
		sh := NewSnapshotHandler(snaps)
		r.Get("/snapshots", sh.List)
		r.Get("/snapshots/{name}", sh.ServeFile)
	}

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
