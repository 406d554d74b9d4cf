package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/tally/internal/capability/applink"
	"github.com/starford/tally/internal/tracker"
)

// AppLinkHandler launches the external app configured for a metric.
type AppLinkHandler struct {
	ctl    *tracker.Controller
	opener applink.Opener
}

// NewAppLinkHandler creates a handler that launches apps through opener.
func NewAppLinkHandler(ctl *tracker.Controller, opener applink.Opener) *AppLinkHandler {
	return &AppLinkHandler{ctl: ctl, opener: opener}
}

// Open handles POST /api/metrics/{metric}/open.
//
//	@Summary		Open the app linked to a metric
//	@Tags			metrics
//	@Success		204
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/metrics/{metric}/open [post]
func (h *AppLinkHandler) Open(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "metric")
	metric, ok := h.ctl.State().Settings.FindMetric(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("unknown metric "+id))
		return
	}
	if err := applink.Launch(r.Context(), h.opener, metric); err != nil {
		if errors.Is(err, applink.ErrAppNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody(err.Error()))
			return
		}
		writeError(w, "open app", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
