package speech

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// View is what a client shows for an ongoing dictation.
type View struct {
	Listening bool   `json:"listening"`
	Partial   string `json:"partial"`
	Final     string `json:"final"`
	LastError string `json:"last_error,omitempty"`
}

// Session tracks a single dictation button: it toggles the recognizer and
// folds recognizer events into a View.
type Session struct {
	rec    Recognizer
	logger *slog.Logger

	mu   sync.Mutex
	view View
}

// NewSession creates a session for rec.
func NewSession(rec Recognizer, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{rec: rec, logger: logger}
}

// View returns the current state.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// Toggle starts listening, or stops if already listening.
func (s *Session) Toggle(ctx context.Context) error {
	s.mu.Lock()
	listening := s.view.Listening
	s.mu.Unlock()

	if listening {
		return s.Stop(ctx)
	}
	return s.Start(ctx)
}

// Start begins a new dictation and clears previous transcripts.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.view.Listening {
		s.mu.Unlock()
		return ErrAlreadyListening
	}
	s.mu.Unlock()

	ok, err := s.rec.IsAvailable(ctx)
	if err != nil {
		return fmt.Errorf("speech: availability: %w", err)
	}
	if !ok {
		return ErrUnavailable
	}
	if err := s.rec.Start(ctx); err != nil {
		return fmt.Errorf("speech: start: %w", err)
	}

	s.mu.Lock()
	s.view = View{Listening: true}
	s.mu.Unlock()
	return nil
}

// Stop ends the dictation; a final result may still arrive afterwards.
func (s *Session) Stop(ctx context.Context) error {
	err := s.rec.Stop(ctx)
	s.mu.Lock()
	s.view.Listening = false
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("speech: stop: %w", err)
	}
	return nil
}

// Cancel aborts the dictation and drops any transcript.
func (s *Session) Cancel(ctx context.Context) error {
	err := s.rec.Cancel(ctx)
	s.mu.Lock()
	s.view = View{}
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("speech: cancel: %w", err)
	}
	return nil
}

// Run applies recognizer events until the channel closes or ctx is done.
func (s *Session) Run(ctx context.Context) {
	events := s.rec.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.apply(ev)
		}
	}
}

// TakeFinal returns the final transcript and clears it, so one utterance is
// inserted at most once. It reports false when there is nothing to take.
func (s *Session) TakeFinal() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text := s.view.Final
	if text == "" {
		return "", false
	}
	s.view.Final = ""
	return text, true
}

// AppendTranscript joins a transcript onto existing notes with one space.
func AppendTranscript(notes, transcript string) string {
	notes = strings.TrimRight(notes, " ")
	if notes == "" {
		return transcript
	}
	if strings.HasSuffix(notes, "\n") {
		return notes + transcript
	}
	return notes + " " + transcript
}

// Close releases the recognizer.
func (s *Session) Close() error {
	return s.rec.Destroy()
}

func (s *Session) apply(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Type {
	case EventReady, EventBegin:
		s.logger.Debug("speech: " + string(ev.Type))
	case EventEnd:
		s.view.Listening = false
	case EventPartial:
		s.view.Partial = ev.Transcript
	case EventFinal:
		s.view.Final = ev.Transcript
		s.view.Partial = ""
	case EventError:
		s.view.Listening = false
		err := ev.Err
		if err == nil {
			err = NewError(CodeUnknown)
		}
		s.view.LastError = err.Error()
		s.logger.Warn("speech: recognition failed", slog.String("code", string(err.Code)))
	}
}
