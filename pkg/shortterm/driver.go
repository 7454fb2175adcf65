// Package shortterm provides the bounded per-thread turn log for the warren
// system.
//
// Each conversation thread owns an ordered log of recent turns capped at a
// configurable window. The store is a pure ordered-log abstraction: it knows
// nothing about migration policy, which lives in pkg/memory.
//
// Drivers are pluggable via configuration:
//
//	[shortterm]
//	provider = "inmemory"   # or "redis"
package shortterm

import "context"

// DefaultWindow is the default short-term window size per thread.
const DefaultWindow = 5

// Role identifies who produced a turn.
type Role string

const (
	// RoleHuman marks a user-authored turn.
	RoleHuman Role = "human"

	// RoleAssistant marks an agent-authored turn.
	RoleAssistant Role = "assistant"
)

// Turn is a single conversational turn in a thread's window.
// Turns are immutable once appended; order of storage is chronological.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Driver handles storage of per-thread turn logs.
//
// All mutations must be atomic at the store level so that concurrent writers
// on the same thread cannot interleave into a corrupted window. Callers that
// need multi-step sequences (e.g. pop-then-pop-then-trim) are responsible for
// serializing them per thread.
type Driver interface {
	// Append pushes a new turn onto the tail of the thread's log.
	Append(ctx context.Context, key string, turn Turn) error

	// Load returns all currently retained turns, oldest first.
	// A missing thread yields an empty slice, not an error.
	Load(ctx context.Context, key string) ([]Turn, error)

	// PopOldest removes and returns the turn at the head of the log.
	// Returns ErrEmpty when the thread has no turns.
	PopOldest(ctx context.Context, key string) (Turn, error)

	// Trim drops turns from the head until the log holds at most window
	// entries. A window of zero empties the log.
	Trim(ctx context.Context, key string, window int) error

	// Len returns the number of retained turns for the thread.
	Len(ctx context.Context, key string) (int, error)

	// Close releases any resources held by the driver.
	Close() error
}
