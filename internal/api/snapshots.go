package api

import (
	"errors"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/starford/tally/internal/snapshot"
)

// SnapshotSource lists and reads stored export payloads.
type SnapshotSource interface {
	List() ([]snapshot.Info, error)
	Read(name string) ([]byte, error)
}

// SnapshotHandler serves copies of past exports.
type SnapshotHandler struct {
	src SnapshotSource
}

// NewSnapshotHandler creates a handler backed by src.
func NewSnapshotHandler(src SnapshotSource) *SnapshotHandler {
	return &SnapshotHandler{src: src}
}

// List handles GET /api/snapshots.
func (h *SnapshotHandler) List(w http.ResponseWriter, _ *http.Request) {
	items, err := h.src.List()
	if err != nil {
		writeError(w, "list snapshots", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": items})
}

// ServeFile handles GET /api/snapshots/{name}.
func (h *SnapshotHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	data, err := h.src.Read(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "private, max-age=31536000, immutable")
	_, _ = w.Write(data)
}
