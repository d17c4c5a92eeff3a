package service

import "errors"

var (
	// ErrSessionNotFound is returned for an unknown or closed session ID
	ErrSessionNotFound = errors.New("session not found")

	// ErrTransactionNotFound is returned when a transaction reference is unknown
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrSessionForbidden is returned when a user acts on a session opened by someone else
	ErrSessionForbidden = errors.New("session belongs to another user")

	// ErrInvalidRequest is returned when required input is missing
	ErrInvalidRequest = errors.New("invalid request")
)

// NoStageError is returned by OpenSession when resolution found nothing the
// user can act on. Outcome says why.
type NoStageError struct {
	Outcome string
	Message string
}

func (e *NoStageError) Error() string {
	return "no actionable stage: " + e.Outcome
}
