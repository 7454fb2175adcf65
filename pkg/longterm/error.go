package longterm

import "errors"

var (
	// ErrConnection is returned when the long-term store is unreachable.
	ErrConnection = errors.New("long-term store connection failed")

	// ErrDimensionMismatch is returned when an embedding's dimensions do not
	// match the store's configured collection.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
