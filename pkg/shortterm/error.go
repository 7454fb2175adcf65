package shortterm

import "errors"

var (
	// ErrEmpty is returned when popping from a thread with no turns.
	ErrEmpty = errors.New("no turns in thread")

	// ErrConnection is returned when the backing store is unreachable.
	ErrConnection = errors.New("short-term store connection failed")
)
