// Package longterm provides interfaces and types for the durable, similarity-
// searchable fact store shared selectively across users.
//
// Records are append-only: once written they are never mutated, and deletion
// is left to the backing store's own retention policy. Every search is scoped
// by owner (and usually scope and visibility) so that one user's private
// records can never leak into another user's results.
//
// Drivers are pluggable via configuration:
//
//	[vector_store]
//	provider = "qdrant"   # or "inmemory"
package longterm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Visibility is the access scope of a stored record.
type Visibility string

const (
	// VisibilityPrivate restricts a record to its owner.
	VisibilityPrivate Visibility = "private"

	// VisibilityShared marks a record visible to the owner plus an explicit
	// recipient set.
	VisibilityShared Visibility = "shared"
)

// Source records how a fact entered the long-term store.
type Source string

const (
	// SourceEviction marks records migrated from the short-term window on
	// overflow.
	SourceEviction Source = "stm_eviction"

	// SourceImmediateShare marks records written eagerly because the turn
	// was explicitly shared.
	SourceImmediateShare Source = "immediate_share"
)

// GlobalScope is the stored scope value for records retrievable outside any
// specific session.
const GlobalScope = ""

// Record is a durable fact with its ownership and visibility metadata.
// Owner is the user whose searches can return the record; Author is the user
// who originally produced the fact (they differ for shared recipient copies).
type Record struct {
	ID         string
	Text       string
	Owner      string
	Author     string
	Scope      string
	Visibility Visibility
	SharedWith []string
	Source     Source
	DedupKey   string
	Embedding  []float32
	CreatedAt  time.Time
}

// Filter restricts a search to one target's slice of the store.
// Scope is always matched exactly; use GlobalScope for session-independent
// records. An empty Visibility matches records of any visibility.
type Filter struct {
	Owner      string
	Scope      string
	Visibility Visibility
}

// Result is a search hit with its similarity score (higher = more similar).
type Result struct {
	Record

	Score float32
}

// Driver handles storage and scoped retrieval of long-term records.
type Driver interface {
	// Add stores a record. Implementations never overwrite an existing
	// record; callers are expected to have checked for duplicates first.
	Add(ctx context.Context, rec Record) error

	// Search finds the most similar records within the filter's slice,
	// capped at limit hits.
	Search(ctx context.Context, embedding []float32, filter Filter, limit int) ([]Result, error)

	// Close releases any resources held by the driver.
	Close() error
}

// DedupKey derives the deterministic key under which a record's identity
// tuple (owner, scope, text, visibility) is checked before every write.
func DedupKey(owner, scope, text string, vis Visibility) string {
	h := sha256.New()
	h.Write([]byte(owner))
	h.Write([]byte{0})
	h.Write([]byte(scope))
	h.Write([]byte{0})
	h.Write([]byte(text))
	h.Write([]byte{0})
	h.Write([]byte(vis))
	return hex.EncodeToString(h.Sum(nil))
}
