package dialog

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyActive is returned by Store.Create when the chat already has a session.
	ErrAlreadyActive = errors.New("dialog: session already active")
	// ErrNotFound is returned when no session exists for the chat.
	ErrNotFound = errors.New("dialog: session not found")
	// ErrNoTransition is returned by Dispatch when neither a transition nor a
	// fallback matched the input.
	ErrNoTransition = errors.New("dialog: no matching transition")
	// ErrInactive is returned by Dispatch when the chat has no active dialogue,
	// including the window where a session was reaped while a handler was running.
	ErrInactive = errors.New("dialog: no active dialogue")
	// ErrUnknownDialog is returned by Start for a dialogue name that was never registered.
	ErrUnknownDialog = errors.New("dialog: unknown dialogue")
)

// CollaboratorError wraps a failure from an external service invoked by a
// state handler. The engine converts it to the dialogue's error reply instead
// of tearing the session down.
type CollaboratorError struct {
	Op  string
	Err error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("dialog: collaborator %s: %v", e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// AsCollaborator reports whether err wraps a CollaboratorError and returns it.
func AsCollaborator(err error) (*CollaboratorError, bool) {
	var ce *CollaboratorError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
