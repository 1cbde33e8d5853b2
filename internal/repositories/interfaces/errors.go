package interfaces

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// ErrSessionNotFound is returned by writes against a session that no
	// longer exists.
	ErrSessionNotFound = errors.New("session not found")
	// ErrAlreadyAcknowledged is returned by Acknowledge when the event was
	// acknowledged before; the stored acknowledgement is left untouched.
	ErrAlreadyAcknowledged = errors.New("event already acknowledged")
)
