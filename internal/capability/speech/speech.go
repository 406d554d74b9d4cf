// Package speech defines the speech-to-text capability used to dictate daily
// notes, and the session state a client renders while dictating.
// Transcripts are only offered to the user; nothing here writes notes.
package speech

import (
	"context"
	"errors"
)

// EventType names a recognizer callback.
type EventType string

// Recognizer events, in the order a normal utterance produces them.
const (
	EventReady   EventType = "ready"
	EventBegin   EventType = "begin"
	EventPartial EventType = "partial"
	EventEnd     EventType = "end"
	EventFinal   EventType = "final"
	EventError   EventType = "error"
)

// Event is one notification from a Recognizer. Transcript is set for
// partial and final events, Err for error events.
type Event struct {
	Type       EventType
	Transcript string
	Err        *Error
}

// ErrorCode classifies a recognition failure.
type ErrorCode string

// Recognition failure codes.
const (
	CodeAudio          ErrorCode = "audio"
	CodeClient         ErrorCode = "client"
	CodePermission     ErrorCode = "permission"
	CodeNetwork        ErrorCode = "network"
	CodeNetworkTimeout ErrorCode = "network_timeout"
	CodeNoMatch        ErrorCode = "no_match"
	CodeBusy           ErrorCode = "busy"
	CodeServer         ErrorCode = "server"
	CodeNoSpeech       ErrorCode = "no_speech"
	CodeUnknown        ErrorCode = "unknown"
)

var messages = map[ErrorCode]string{
	CodeAudio:          "Audio recording error",
	CodeClient:         "Client side error",
	CodePermission:     "Insufficient permissions",
	CodeNetwork:        "Network error",
	CodeNetworkTimeout: "Network timeout",
	CodeNoMatch:        "No speech match",
	CodeBusy:           "Recognition service busy",
	CodeServer:         "Server error",
	CodeNoSpeech:       "No speech input",
	CodeUnknown:        "Unknown error",
}

// Error is a recognition failure reported through an EventError.
type Error struct {
	Code ErrorCode
}

// NewError returns an Error for code; unrecognized codes become CodeUnknown.
func NewError(code ErrorCode) *Error {
	if _, ok := messages[code]; !ok {
		code = CodeUnknown
	}
	return &Error{Code: code}
}

func (e *Error) Error() string {
	return messages[e.Code]
}

var (
	// ErrUnavailable is returned when the device has no recognizer.
	ErrUnavailable = errors.New("speech recognition not available on this device")
	// ErrAlreadyListening is returned by Start while a session is active.
	ErrAlreadyListening = errors.New("speech recognition is already active")
)

// Recognizer is a platform speech-to-text engine. Events are delivered on
// the channel returned by Events until Destroy is called, which closes it.
type Recognizer interface {
	IsAvailable(ctx context.Context) (bool, error)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Cancel(ctx context.Context) error
	Destroy() error
	Events() <-chan Event
}
