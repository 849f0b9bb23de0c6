package domain

import "errors"

var (
	// ErrNotFound reports a cache or store miss.
	ErrNotFound = errors.New("not found")
	// ErrVenueUnavailable reports a venue that cannot currently quote.
	ErrVenueUnavailable = errors.New("venue unavailable")
	// ErrRelayRejected reports a submission the relay refused outright.
	ErrRelayRejected = errors.New("relay rejected submission")
	// ErrLockHeld reports a distributed lock another party holds.
	ErrLockHeld = errors.New("lock already held")
)
