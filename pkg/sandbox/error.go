package sandbox

import "errors"

var (
	// ErrRuntimeUnavailable indicates the container runtime cannot be reached.
	ErrRuntimeUnavailable = errors.New("sandbox runtime unavailable")

	// ErrConflict indicates a create raced with another caller and the name
	// already exists. Callers treat this as benign and re-lookup.
	ErrConflict = errors.New("sandbox already exists")
)
