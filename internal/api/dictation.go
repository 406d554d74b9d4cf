package api

import (
	"errors"
	"net/http"

	"github.com/starford/tally/internal/capability/speech"
	"github.com/starford/tally/internal/tracker"
)

// DictationEventRequest is one recognizer callback posted by the client.
type DictationEventRequest struct {
	Type       speech.EventType `json:"type"`
	Transcript string           `json:"transcript,omitempty"`
	ErrorCode  speech.ErrorCode `json:"errorCode,omitempty"`
}

// DictationCommitResponse is returned after a transcript is inserted.
type DictationCommitResponse struct {
	Draft string `json:"draft"`
}

// DictationHandler relays a client-side recognizer into a speech session and
// inserts finished transcripts into today's notes draft on request.
type DictationHandler struct {
	ctl     *tracker.Controller
	session *speech.Session
	remote  *speech.Remote
}

// NewDictationHandler creates a handler over session, fed by remote.
func NewDictationHandler(ctl *tracker.Controller, session *speech.Session, remote *speech.Remote) *DictationHandler {
	return &DictationHandler{ctl: ctl, session: session, remote: remote}
}

// View handles GET /api/dictation.
func (h *DictationHandler) View(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.session.View())
}

// Toggle handles POST /api/dictation/toggle.
func (h *DictationHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Toggle(r.Context()); err != nil {
		if errors.Is(err, speech.ErrUnavailable) {
			writeJSON(w, http.StatusServiceUnavailable, errorBody(err.Error()))
			return
		}
		writeError(w, "dictation toggle", err)
		return
	}
	writeJSON(w, http.StatusOK, h.session.View())
}

// PushEvent handles POST /api/dictation/events.
func (h *DictationHandler) PushEvent(w http.ResponseWriter, r *http.Request) {
	var req DictationEventRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ev := speech.Event{Type: req.Type, Transcript: req.Transcript}
	switch req.Type {
	case speech.EventReady, speech.EventBegin, speech.EventPartial, speech.EventEnd, speech.EventFinal:
	case speech.EventError:
		ev.Err = speech.NewError(req.ErrorCode)
	default:
		writeJSON(w, http.StatusBadRequest, errorBody("unknown event type "+string(req.Type)))
		return
	}
	if err := h.remote.Push(ev); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody(err.Error()))
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// Commit handles POST /api/dictation/commit. The final transcript is
// appended to today's draft and saved through the notes debouncer.
func (h *DictationHandler) Commit(w http.ResponseWriter, _ *http.Request) {
	text, ok := h.session.TakeFinal()
	if !ok {
		writeJSON(w, http.StatusConflict, errorBody("no finished transcript to insert"))
		return
	}
	draft := speech.AppendTranscript(h.ctl.TodayNotes(), text)
	h.ctl.EditNotes(draft)
	writeJSON(w, http.StatusOK, DictationCommitResponse{Draft: draft})
}
