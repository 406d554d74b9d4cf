package speech

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Remote.Push after Destroy.
var ErrClosed = errors.New("speech: recognizer closed")

// ErrBacklog is returned by Remote.Push when events are not being consumed.
var ErrBacklog = errors.New("speech: event backlog full")

// Remote is a Recognizer whose engine runs on the client device. The client
// posts its recognizer callbacks, which Push forwards to the session.
type Remote struct {
	mu        sync.Mutex
	events    chan Event
	listening bool
	closed    bool
}

// NewRemote creates a remote recognizer buffering up to 64 events.
func NewRemote() *Remote {
	return &Remote{events: make(chan Event, 64)}
}

// IsAvailable reports true until Destroy.
func (r *Remote) IsAvailable(context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.closed, nil
}

// Start marks the client engine as listening.
func (r *Remote) Start(context.Context) error { return r.setListening(true) }

// Stop marks the client engine as stopped; a final event may still follow.
func (r *Remote) Stop(context.Context) error { return r.setListening(false) }

// Cancel marks the client engine as stopped.
func (r *Remote) Cancel(context.Context) error { return r.setListening(false) }

// Listening reports whether the session asked the client to listen.
func (r *Remote) Listening() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listening
}

// Push forwards a client event without blocking.
func (r *Remote) Push(ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	select {
	case r.events <- ev:
		return nil
	default:
		return ErrBacklog
	}
}

// Destroy closes the event stream. It is safe to call more than once.
func (r *Remote) Destroy() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.closed = true
		r.listening = false
		close(r.events)
	}
	return nil
}

// Events returns the event stream.
func (r *Remote) Events() <-chan Event { return r.events }

func (r *Remote) setListening(v bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	r.listening = v
	return nil
}
