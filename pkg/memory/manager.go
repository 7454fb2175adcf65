// Package memory implements the boundary between the short-term turn window
// and the long-term store, together with the visibility and sharing policy.
//
// The Manager owns three concerns: appending turns with overflow-triggered
// migration of (human, assistant) pairs, best-effort fan-out writes with
// per-target deduplication, and layered context retrieval for prompt
// construction. Long-term failures degrade (logged, conversation continues);
// they are never surfaced as user-facing errors.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/papercomputeco/warren/pkg/embeddings"
	"github.com/papercomputeco/warren/pkg/longterm"
	"github.com/papercomputeco/warren/pkg/shortterm"
	"github.com/papercomputeco/warren/pkg/utils"
)

// UnpairedPolicy controls what happens to an evicted turn that cannot be
// paired into a (human, assistant) exchange.
type UnpairedPolicy string

const (
	// UnpairedDrop discards unpaired evicted turns without migration.
	UnpairedDrop UnpairedPolicy = "drop"

	// UnpairedMigrate force-migrates the lone turn's text.
	UnpairedMigrate UnpairedPolicy = "migrate"
)

// DefaultRetrieveLimit caps each long-term search layer during retrieval.
const DefaultRetrieveLimit = 3

// dedupSearchLimit bounds the similarity search used to detect duplicates
// before a write.
const dedupSearchLimit = 3

// Thread identifies one conversation: all short-term state and session-scoped
// long-term records are keyed by this pair.
type Thread struct {
	UserID    string
	SessionID string
}

// Key returns the storage key for the thread's short-term window.
func (t Thread) Key() string {
	return t.UserID + "_" + t.SessionID
}

// Options carries the sharing intent for a recorded exchange or memory write.
type Options struct {
	// Share marks the memory shared and fans it out to SharedWith.
	Share bool

	// SharedWith lists recipient user IDs. Only consulted when Share is set.
	SharedWith []string
}

// WriteStatus is the outcome of one fan-out target write.
type WriteStatus string

const (
	WriteStored  WriteStatus = "stored"
	WriteDeduped WriteStatus = "deduped"
	WriteFailed  WriteStatus = "failed"
)

// WriteResult reports the outcome of a single target in an AddMemory fan-out.
type WriteResult struct {
	// Owner is the user the record was written for.
	Owner string

	Status WriteStatus

	// Reason is populated when Status is WriteFailed.
	Reason string
}

// Config holds Manager tuning.
type Config struct {
	// Window is the short-term window size. Defaults to shortterm.DefaultWindow.
	Window int

	// UnpairedPolicy selects drop or migrate for unpaired evictions.
	// Defaults to UnpairedDrop.
	UnpairedPolicy UnpairedPolicy

	// RetrieveLimit caps each long-term layer during RetrieveContext.
	// Defaults to DefaultRetrieveLimit.
	RetrieveLimit int
}

// Manager orchestrates short-term writes, overflow migration, sharing, and
// visibility-scoped retrieval.
type Manager struct {
	stm      shortterm.Driver
	ltm      longterm.Driver
	embedder embeddings.Embedder

	window         int
	unpairedPolicy UnpairedPolicy
	retrieveLimit  int

	logger *zap.Logger

	// locksMu guards locks; each thread key gets its own mutex so short-term
	// mutation is serialized per thread without a global lock.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewManager creates a Manager over the given stores.
func NewManager(stm shortterm.Driver, ltm longterm.Driver, embedder embeddings.Embedder, cfg Config, logger *zap.Logger) *Manager {
	window := cfg.Window
	if window <= 0 {
		window = shortterm.DefaultWindow
	}

	policy := cfg.UnpairedPolicy
	if policy == "" {
		policy = UnpairedDrop
	}

	limit := cfg.RetrieveLimit
	if limit <= 0 {
		limit = DefaultRetrieveLimit
	}

	return &Manager{
		stm:            stm,
		ltm:            ltm,
		embedder:       embedder,
		window:         window,
		unpairedPolicy: policy,
		retrieveLimit:  limit,
		logger:         logger,
		locks:          make(map[string]*sync.Mutex),
	}
}

// Window returns the configured short-term window size.
func (m *Manager) Window() int {
	return m.window
}

func (m *Manager) threadLock(key string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()

	lock, ok := m.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[key] = lock
	}
	return lock
}

// RecordTurn appends one turn to the thread's window and migrates overflow.
// When the window exceeds its size, the oldest turn is popped; if it is a
// human turn immediately followed by an assistant turn, the pair migrates to
// long-term storage as one record. Unpaired evictions follow the configured
// policy. Migration failures are logged and never fail the turn.
func (m *Manager) RecordTurn(ctx context.Context, thread Thread, role shortterm.Role, text string) error {
	lock := m.threadLock(thread.Key())
	lock.Lock()
	defer lock.Unlock()

	return m.recordTurnLocked(ctx, thread, role, text)
}

// recordTurnLocked appends one turn and handles overflow. Caller must hold
// the thread lock.
func (m *Manager) recordTurnLocked(ctx context.Context, thread Thread, role shortterm.Role, text string) error {
	if err := m.stm.Append(ctx, thread.Key(), shortterm.Turn{Role: role, Text: text}); err != nil {
		return fmt.Errorf("appending turn: %w", err)
	}

	if err := m.evictOverflow(ctx, thread); err != nil {
		return err
	}

	// Safety net: the eviction loop already brings the window in bound, but a
	// trim keeps the invariant even if a concurrent writer slipped a turn in
	// through the store directly.
	if err := m.stm.Trim(ctx, thread.Key(), m.window); err != nil {
		return fmt.Errorf("trimming window: %w", err)
	}

	return nil
}

// evictOverflow pops turns from the head until the window fits, migrating
// adjacent (human, assistant) pairs. Caller must hold the thread lock.
func (m *Manager) evictOverflow(ctx context.Context, thread Thread) error {
	for {
		n, err := m.stm.Len(ctx, thread.Key())
		if err != nil {
			return fmt.Errorf("reading window length: %w", err)
		}
		if n <= m.window {
			return nil
		}

		oldest, err := m.stm.PopOldest(ctx, thread.Key())
		if err != nil {
			if errors.Is(err, shortterm.ErrEmpty) {
				return nil
			}
			return fmt.Errorf("popping oldest turn: %w", err)
		}

		if oldest.Role == shortterm.RoleHuman {
			remaining, err := m.stm.Load(ctx, thread.Key())
			if err != nil {
				return fmt.Errorf("loading window: %w", err)
			}

			if len(remaining) > 0 && remaining[0].Role == shortterm.RoleAssistant {
				answer, err := m.stm.PopOldest(ctx, thread.Key())
				if err != nil {
					return fmt.Errorf("popping paired answer: %w", err)
				}

				text := fmt.Sprintf("Question:%s, Agent Answer:%s", oldest.Text, answer.Text)
				m.migrate(ctx, thread, text)
				continue
			}
		}

		m.handleUnpaired(ctx, thread, oldest)
	}
}

func (m *Manager) handleUnpaired(ctx context.Context, thread Thread, turn shortterm.Turn) {
	switch m.unpairedPolicy {
	case UnpairedMigrate:
		m.migrate(ctx, thread, turn.Text)
	default:
		m.logger.Debug("dropping unpaired evicted turn",
			zap.String("thread", thread.Key()),
			zap.String("role", string(turn.Role)),
		)
	}
}

// migrate writes evicted text to long-term storage, best-effort.
func (m *Manager) migrate(ctx context.Context, thread Thread, text string) {
	results := m.AddMemory(ctx, thread, text, Options{}, longterm.SourceEviction)
	for _, r := range results {
		if r.Status == WriteFailed {
			m.logger.Warn("migration write failed",
				zap.String("thread", thread.Key()),
				zap.String("owner", r.Owner),
				zap.String("text", utils.Truncate(text, 64)),
				zap.String("reason", r.Reason),
			)
		}
	}
}

// RecordExchange records a completed (message, response) exchange. Both turns
// are appended under a single thread lock acquisition so concurrent exchanges
// on the same thread can never interleave their turns; eviction only ever sees
// each question adjacent to its own answer. When sharing is requested the pair
// is also migrated immediately so collaborators see it without waiting for
// eviction.
func (m *Manager) RecordExchange(ctx context.Context, thread Thread, message, response string, opts Options) error {
	if err := m.recordExchangeTurns(ctx, thread, message, response); err != nil {
		return err
	}

	if opts.Share {
		text := fmt.Sprintf("Question:%s, Agent Answer:%s", message, response)
		m.AddMemory(ctx, thread, text, opts, longterm.SourceImmediateShare)
	}

	return nil
}

// recordExchangeTurns appends the exchange's two turns atomically with respect
// to other writers on the thread.
func (m *Manager) recordExchangeTurns(ctx context.Context, thread Thread, message, response string) error {
	lock := m.threadLock(thread.Key())
	lock.Lock()
	defer lock.Unlock()

	if err := m.recordTurnLocked(ctx, thread, shortterm.RoleHuman, message); err != nil {
		return err
	}
	return m.recordTurnLocked(ctx, thread, shortterm.RoleAssistant, response)
}

// fanoutTarget is one intended long-term write.
type fanoutTarget struct {
	owner      string
	author     string
	scope      string
	visibility longterm.Visibility
	sharedWith []string
}

// AddMemory writes text to every fan-out target: the owner (session scope,
// private unless sharing) plus one globally-scoped shared copy per recipient.
// Each target is checked for a near-duplicate first. A failure on one target
// never aborts the others; every outcome is reported in the result slice.
func (m *Manager) AddMemory(ctx context.Context, thread Thread, text string, opts Options, source longterm.Source) []WriteResult {
	targets := []fanoutTarget{{
		owner:      thread.UserID,
		author:     thread.UserID,
		scope:      thread.SessionID,
		visibility: longterm.VisibilityPrivate,
	}}

	if opts.Share {
		targets[0].visibility = longterm.VisibilityShared
		targets[0].sharedWith = opts.SharedWith

		for _, recipient := range opts.SharedWith {
			targets = append(targets, fanoutTarget{
				owner:      recipient,
				author:     thread.UserID,
				scope:      longterm.GlobalScope,
				visibility: longterm.VisibilityShared,
			})
		}
	}

	results := make([]WriteResult, 0, len(targets))

	embedding, err := m.embedder.Embed(ctx, text)
	if err != nil {
		m.logger.Warn("embedding failed, skipping memory write", zap.Error(err))
		for _, t := range targets {
			results = append(results, WriteResult{Owner: t.owner, Status: WriteFailed, Reason: err.Error()})
		}
		return results
	}

	for _, t := range targets {
		results = append(results, m.writeTarget(ctx, t, text, embedding, source))
	}

	return results
}

func (m *Manager) writeTarget(ctx context.Context, t fanoutTarget, text string, embedding []float32, source longterm.Source) WriteResult {
	dedupKey := longterm.DedupKey(t.owner, t.scope, text, t.visibility)

	existing, err := m.ltm.Search(ctx, embedding, longterm.Filter{
		Owner:      t.owner,
		Scope:      t.scope,
		Visibility: t.visibility,
	}, dedupSearchLimit)
	if err != nil {
		m.logger.Warn("dedup search failed, writing anyway",
			zap.String("owner", t.owner),
			zap.Error(err),
		)
	}

	for _, hit := range existing {
		if hit.DedupKey == dedupKey || hit.Text == text {
			return WriteResult{Owner: t.owner, Status: WriteDeduped}
		}
	}

	rec := longterm.Record{
		ID:         uuid.NewString(),
		Text:       text,
		Owner:      t.owner,
		Author:     t.author,
		Scope:      t.scope,
		Visibility: t.visibility,
		SharedWith: t.sharedWith,
		Source:     source,
		DedupKey:   dedupKey,
		Embedding:  embedding,
		CreatedAt:  time.Now().UTC(),
	}

	if err := m.ltm.Add(ctx, rec); err != nil {
		m.logger.Warn("memory write failed",
			zap.String("owner", t.owner),
			zap.Error(err),
		)
		return WriteResult{Owner: t.owner, Status: WriteFailed, Reason: err.Error()}
	}

	return WriteResult{Owner: t.owner, Status: WriteStored}
}

// RetrieveContext gathers the prompt prefix for a query: the thread's full
// short-term window, session-scoped private memories, and globally-scoped
// shared memories (minus texts already visible in the window). Long-term
// failures degrade to whatever layers succeeded.
func (m *Manager) RetrieveContext(ctx context.Context, thread Thread, query string) (string, error) {
	turns, err := m.stm.Load(ctx, thread.Key())
	if err != nil {
		return "", fmt.Errorf("loading window: %w", err)
	}

	var b strings.Builder

	if len(turns) > 0 {
		b.WriteString("Recent conversation:\n")
		for _, turn := range turns {
			switch turn.Role {
			case shortterm.RoleHuman:
				b.WriteString("Human: ")
			case shortterm.RoleAssistant:
				b.WriteString("Assistant: ")
			}
			b.WriteString(turn.Text)
			b.WriteString("\n")
		}
	}

	memories := m.searchLayers(ctx, thread, query, turns)
	if len(memories) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Relevant memories:\n")
		for _, line := range memories {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	return b.String(), nil
}

// searchLayers runs the private and shared long-term searches and renders
// merged, text-deduplicated, visibility-tagged lines.
func (m *Manager) searchLayers(ctx context.Context, thread Thread, query string, turns []shortterm.Turn) []string {
	embedding, err := m.embedder.Embed(ctx, query)
	if err != nil {
		m.logger.Warn("query embedding failed, skipping long-term retrieval", zap.Error(err))
		return nil
	}

	private, err := m.ltm.Search(ctx, embedding, longterm.Filter{
		Owner: thread.UserID,
		Scope: thread.SessionID,
	}, m.retrieveLimit)
	if err != nil {
		m.logger.Warn("private memory search failed", zap.Error(err))
	}

	shared, err := m.ltm.Search(ctx, embedding, longterm.Filter{
		Owner:      thread.UserID,
		Scope:      longterm.GlobalScope,
		Visibility: longterm.VisibilityShared,
	}, m.retrieveLimit)
	if err != nil {
		m.logger.Warn("shared memory search failed", zap.Error(err))
	}

	inWindow := make(map[string]bool, len(turns))
	for _, turn := range turns {
		inWindow[turn.Text] = true
	}

	seen := make(map[string]bool)
	var lines []string

	for _, hit := range private {
		if seen[hit.Text] {
			continue
		}
		seen[hit.Text] = true
		lines = append(lines, renderMemory(hit.Record, thread.UserID))
	}

	for _, hit := range shared {
		// Shared hits already echoed by the window add noise, skip them.
		if inWindow[hit.Text] || seen[hit.Text] {
			continue
		}
		seen[hit.Text] = true
		lines = append(lines, renderMemory(hit.Record, thread.UserID))
	}

	return lines
}

func renderMemory(rec longterm.Record, reader string) string {
	if rec.Visibility == longterm.VisibilityShared && rec.Author != "" && rec.Author != reader {
		return fmt.Sprintf("[shared from %s] %s", rec.Author, rec.Text)
	}
	return fmt.Sprintf("[private] %s", rec.Text)
}
