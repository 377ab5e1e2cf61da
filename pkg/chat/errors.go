package chat

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrBusy is returned when a submit arrives while a stream is active.
	ErrBusy = errors.New("a response stream is already active")
	// ErrOrderConflict is returned when an append would duplicate an order
	// value within a session.
	ErrOrderConflict = errors.New("turn order conflict")
	// ErrStreamTimeout terminates a stream that produced neither a delta nor
	// a completion within the idle window.
	ErrStreamTimeout = errors.New("stream timed out")
	// ErrStreamAborted terminates a stream after an explicit cancel.
	ErrStreamAborted = errors.New("stream aborted")
)

// TransportError wraps a network or backend failure while a stream was open.
type TransportError struct {
	SessionID string
	Err       error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("stream transport failed for session %s: %v", e.SessionID, e.Err)
	}
	return fmt.Sprintf("stream transport failed for session %s", e.SessionID)
}

func (e *TransportError) Unwrap() error { return e.Err }

// PersistError reports a failed assistant-turn write. It carries the full
// generated text so the caller can offer a retry without losing content.
type PersistError struct {
	SessionID string
	Text      string
	Err       error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("failed to persist assistant turn for session %s: %v", e.SessionID, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }
