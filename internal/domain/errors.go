package domain

import "errors"

var (
	// ErrInvalidTimezone is returned for empty or unknown IANA zone names.
	ErrInvalidTimezone = errors.New("invalid timezone")
	// ErrNoActiveSession is returned when signing out without an open session.
	ErrNoActiveSession = errors.New("no active session to sign out")
	// ErrAlreadyClosed is returned when a session was closed by someone else first.
	ErrAlreadyClosed = errors.New("session already closed")
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrPersistence wraps storage failures.
	ErrPersistence = errors.New("persistence error")
	// ErrInvalidInterval is returned when a sign-out would precede its sign-in.
	ErrInvalidInterval = errors.New("signed out before signed in")
	// ErrInvalidInput is returned for malformed caller input.
	ErrInvalidInput = errors.New("invalid input")
)
