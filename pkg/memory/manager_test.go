package memory_test

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/warren/pkg/longterm"
	ltmem "github.com/papercomputeco/warren/pkg/longterm/inmemory"
	"github.com/papercomputeco/warren/pkg/memory"
	"github.com/papercomputeco/warren/pkg/shortterm"
	stmem "github.com/papercomputeco/warren/pkg/shortterm/inmemory"
)

func TestMemory(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Memory Manager Suite")
}

// stubEmbedder returns a fixed vector for every text so similarity is uniform
// and dedup search always sees prior writes.
type stubEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *stubEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return []float32{1, 0, 0}, nil
}

func (s *stubEmbedder) Close() error { return nil }

// failingStore wraps the in-memory driver and fails Add for one owner, to
// exercise best-effort fan-out.
type failingStore struct {
	*ltmem.Driver
	failOwner string
}

func (f *failingStore) Add(ctx context.Context, rec longterm.Record) error {
	if rec.Owner == f.failOwner {
		return errors.New("store unavailable")
	}
	return f.Driver.Add(ctx, rec)
}

// slowStore wraps the in-memory short-term driver with a small per-append
// latency so goroutine interleavings have room to surface.
type slowStore struct {
	*stmem.Driver
	delay time.Duration
}

func (s *slowStore) Append(ctx context.Context, key string, turn shortterm.Turn) error {
	time.Sleep(s.delay)
	return s.Driver.Append(ctx, key, turn)
}

var _ = Describe("Manager", func() {
	var (
		ctx      context.Context
		stm      *stmem.Driver
		ltm      *ltmem.Driver
		embedder *stubEmbedder
		mgr      *memory.Manager
		thread   memory.Thread
	)

	newManager := func(cfg memory.Config) *memory.Manager {
		return memory.NewManager(stm, ltm, embedder, cfg, zap.NewNop())
	}

	BeforeEach(func() {
		ctx = context.Background()
		stm = stmem.NewDriver()
		ltm = ltmem.NewDriver()
		embedder = &stubEmbedder{}
		mgr = newManager(memory.Config{Window: 2})
		thread = memory.Thread{UserID: "alice", SessionID: "s1"}
	})

	Describe("RecordTurn", func() {
		It("keeps the window within bounds after every call", func() {
			for i := range 20 {
				role := shortterm.RoleHuman
				if i%2 == 1 {
					role = shortterm.RoleAssistant
				}
				Expect(mgr.RecordTurn(ctx, thread, role, fmt.Sprintf("turn %d", i))).To(Succeed())

				turns, err := stm.Load(ctx, thread.Key())
				Expect(err).NotTo(HaveOccurred())
				Expect(len(turns)).To(BeNumerically("<=", 2))
			}
		})

		It("migrates the evicted pair in the documented format", func() {
			Expect(mgr.RecordTurn(ctx, thread, shortterm.RoleHuman, "Q1")).To(Succeed())
			Expect(mgr.RecordTurn(ctx, thread, shortterm.RoleAssistant, "A1")).To(Succeed())
			Expect(mgr.RecordTurn(ctx, thread, shortterm.RoleHuman, "Q2")).To(Succeed())
			Expect(mgr.RecordTurn(ctx, thread, shortterm.RoleAssistant, "A2")).To(Succeed())

			turns, err := stm.Load(ctx, thread.Key())
			Expect(err).NotTo(HaveOccurred())
			Expect(turns).To(HaveLen(2))
			Expect(turns[0].Text).To(Equal("Q2"))
			Expect(turns[1].Text).To(Equal("A2"))

			records := ltm.Records()
			Expect(records).To(HaveLen(1))
			Expect(records[0].Text).To(Equal("Question:Q1, Agent Answer:A1"))
			Expect(records[0].Owner).To(Equal("alice"))
			Expect(records[0].Scope).To(Equal("s1"))
			Expect(records[0].Visibility).To(Equal(longterm.VisibilityPrivate))
			Expect(records[0].Source).To(Equal(longterm.SourceEviction))
		})

		It("never migrates a lone turn under the drop policy", func() {
			// Seed asymmetrically: assistant first, so the evicted head can
			// never form a (human, assistant) pair.
			Expect(mgr.RecordTurn(ctx, thread, shortterm.RoleAssistant, "A0")).To(Succeed())
			Expect(mgr.RecordTurn(ctx, thread, shortterm.RoleHuman, "Q1")).To(Succeed())
			Expect(mgr.RecordTurn(ctx, thread, shortterm.RoleAssistant, "A1")).To(Succeed())

			Expect(ltm.Len()).To(BeZero())

			turns, err := stm.Load(ctx, thread.Key())
			Expect(err).NotTo(HaveOccurred())
			Expect(turns).To(HaveLen(2))
			Expect(turns[0].Text).To(Equal("Q1"))
		})

		It("does not pair a human turn with a following human turn", func() {
			Expect(mgr.RecordTurn(ctx, thread, shortterm.RoleHuman, "Q1")).To(Succeed())
			Expect(mgr.RecordTurn(ctx, thread, shortterm.RoleHuman, "Q2")).To(Succeed())
			Expect(mgr.RecordTurn(ctx, thread, shortterm.RoleHuman, "Q3")).To(Succeed())

			Expect(ltm.Len()).To(BeZero())
		})

		It("force-migrates lone turns under the migrate policy", func() {
			mgr = newManager(memory.Config{Window: 2, UnpairedPolicy: memory.UnpairedMigrate})

			Expect(mgr.RecordTurn(ctx, thread, shortterm.RoleAssistant, "A0")).To(Succeed())
			Expect(mgr.RecordTurn(ctx, thread, shortterm.RoleHuman, "Q1")).To(Succeed())
			Expect(mgr.RecordTurn(ctx, thread, shortterm.RoleAssistant, "A1")).To(Succeed())

			records := ltm.Records()
			Expect(records).To(HaveLen(1))
			Expect(records[0].Text).To(Equal("A0"))
		})

		It("serializes concurrent turns on the same thread", func() {
			var wg sync.WaitGroup
			for i := range 10 {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_ = mgr.RecordTurn(ctx, thread, shortterm.RoleHuman, fmt.Sprintf("Q%d", i))
					_ = mgr.RecordTurn(ctx, thread, shortterm.RoleAssistant, fmt.Sprintf("A%d", i))
				}(i)
			}
			wg.Wait()

			turns, err := stm.Load(ctx, thread.Key())
			Expect(err).NotTo(HaveOccurred())
			Expect(len(turns)).To(BeNumerically("<=", 2))
		})
	})

	Describe("AddMemory", func() {
		It("stores exactly one record for identical writes", func() {
			first := mgr.AddMemory(ctx, thread, "a fact", memory.Options{}, longterm.SourceImmediateShare)
			Expect(first).To(HaveLen(1))
			Expect(first[0].Status).To(Equal(memory.WriteStored))

			second := mgr.AddMemory(ctx, thread, "a fact", memory.Options{}, longterm.SourceImmediateShare)
			Expect(second).To(HaveLen(1))
			Expect(second[0].Status).To(Equal(memory.WriteDeduped))

			Expect(ltm.Len()).To(Equal(1))
		})

		It("fans out one record per recipient with global scope", func() {
			results := mgr.AddMemory(ctx, thread, "shared fact", memory.Options{
				Share:      true,
				SharedWith: []string{"bob"},
			}, longterm.SourceImmediateShare)

			Expect(results).To(HaveLen(2))
			for _, r := range results {
				Expect(r.Status).To(Equal(memory.WriteStored))
			}

			records := ltm.Records()
			Expect(records).To(HaveLen(2))

			byOwner := map[string]longterm.Record{}
			for _, rec := range records {
				byOwner[rec.Owner] = rec
			}

			owner := byOwner["alice"]
			Expect(owner.Scope).To(Equal("s1"))
			Expect(owner.Visibility).To(Equal(longterm.VisibilityShared))
			Expect(owner.Author).To(Equal("alice"))

			recipient := byOwner["bob"]
			Expect(recipient.Scope).To(Equal(longterm.GlobalScope))
			Expect(recipient.Visibility).To(Equal(longterm.VisibilityShared))
			Expect(recipient.Author).To(Equal("alice"))
		})

		It("continues the fan-out when one target fails", func() {
			failing := &failingStore{Driver: ltm, failOwner: "bob"}
			mgr = memory.NewManager(stm, failing, embedder, memory.Config{Window: 2}, zap.NewNop())

			results := mgr.AddMemory(ctx, thread, "fragile fact", memory.Options{
				Share:      true,
				SharedWith: []string{"bob", "carol"},
			}, longterm.SourceImmediateShare)

			Expect(results).To(HaveLen(3))

			statuses := map[string]memory.WriteStatus{}
			for _, r := range results {
				statuses[r.Owner] = r.Status
			}
			Expect(statuses["alice"]).To(Equal(memory.WriteStored))
			Expect(statuses["bob"]).To(Equal(memory.WriteFailed))
			Expect(statuses["carol"]).To(Equal(memory.WriteStored))
		})

		It("reports every target failed when embedding fails", func() {
			embedder.err = errors.New("model offline")

			results := mgr.AddMemory(ctx, thread, "fact", memory.Options{
				Share:      true,
				SharedWith: []string{"bob"},
			}, longterm.SourceImmediateShare)

			Expect(results).To(HaveLen(2))
			for _, r := range results {
				Expect(r.Status).To(Equal(memory.WriteFailed))
				Expect(r.Reason).To(ContainSubstring("model offline"))
			}
			Expect(ltm.Len()).To(BeZero())
		})
	})

	Describe("RecordExchange", func() {
		It("appends both turns", func() {
			mgr = newManager(memory.Config{Window: 5})

			Expect(mgr.RecordExchange(ctx, thread, "hello", "hi there", memory.Options{})).To(Succeed())

			turns, err := stm.Load(ctx, thread.Key())
			Expect(err).NotTo(HaveOccurred())
			Expect(turns).To(HaveLen(2))
			Expect(turns[0].Role).To(Equal(shortterm.RoleHuman))
			Expect(turns[1].Role).To(Equal(shortterm.RoleAssistant))
		})

		It("never migrates a mis-paired exchange under concurrency", func() {
			slow := &slowStore{Driver: stm, delay: 2 * time.Millisecond}
			mgr = memory.NewManager(slow, ltm, embedder, memory.Config{Window: 2}, zap.NewNop())

			var wg sync.WaitGroup
			for i := range 8 {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_ = mgr.RecordExchange(ctx, thread,
						fmt.Sprintf("Q%d", i), fmt.Sprintf("A%d", i), memory.Options{})
				}(i)
			}
			wg.Wait()

			// Every migrated record must pair a question with its own answer,
			// whatever order the exchanges landed in.
			pair := regexp.MustCompile(`^Question:Q(\d+), Agent Answer:A(\d+)$`)
			records := ltm.Records()
			Expect(records).NotTo(BeEmpty())
			for _, rec := range records {
				match := pair.FindStringSubmatch(rec.Text)
				Expect(match).NotTo(BeNil(), "unexpected migrated text %q", rec.Text)
				Expect(match[1]).To(Equal(match[2]), "mis-paired migration %q", rec.Text)
			}
		})

		It("immediately shares the exchange when requested", func() {
			mgr = newManager(memory.Config{Window: 5})

			Expect(mgr.RecordExchange(ctx, thread, "Q1", "A1", memory.Options{
				Share:      true,
				SharedWith: []string{"bob"},
			})).To(Succeed())

			records := ltm.Records()
			Expect(records).To(HaveLen(2))
			for _, rec := range records {
				Expect(rec.Text).To(Equal("Question:Q1, Agent Answer:A1"))
				Expect(rec.Source).To(Equal(longterm.SourceImmediateShare))
			}
		})
	})

	Describe("RetrieveContext", func() {
		It("renders the window chronologically", func() {
			mgr = newManager(memory.Config{Window: 5})
			Expect(mgr.RecordExchange(ctx, thread, "hello", "hi there", memory.Options{})).To(Succeed())

			out, err := mgr.RetrieveContext(ctx, thread, "anything")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("Recent conversation:"))
			Expect(out).To(ContainSubstring("Human: hello"))
			Expect(out).To(ContainSubstring("Assistant: hi there"))
		})

		It("tags private and shared memories", func() {
			mgr.AddMemory(ctx, thread, "private fact", memory.Options{}, longterm.SourceImmediateShare)

			// A record bob shared with alice lands in alice's global scope.
			bobThread := memory.Thread{UserID: "bob", SessionID: "s9"}
			mgr.AddMemory(ctx, bobThread, "bob's fact", memory.Options{
				Share:      true,
				SharedWith: []string{"alice"},
			}, longterm.SourceImmediateShare)

			out, err := mgr.RetrieveContext(ctx, thread, "facts")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("[private] private fact"))
			Expect(out).To(ContainSubstring("[shared from bob] bob's fact"))
		})

		It("never returns another user's private memories", func() {
			mgr.AddMemory(ctx, thread, "alice's secret", memory.Options{}, longterm.SourceImmediateShare)

			bobThread := memory.Thread{UserID: "bob", SessionID: "s1"}
			out, err := mgr.RetrieveContext(ctx, bobThread, "secret")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).NotTo(ContainSubstring("alice's secret"))
		})

		It("filters shared hits that echo the current window", func() {
			mgr = newManager(memory.Config{Window: 5})

			// Shared record whose text matches a turn sitting in the window.
			bobThread := memory.Thread{UserID: "bob", SessionID: "s9"}
			mgr.AddMemory(ctx, bobThread, "duplicate line", memory.Options{
				Share:      true,
				SharedWith: []string{"alice"},
			}, longterm.SourceImmediateShare)

			Expect(mgr.RecordTurn(ctx, thread, shortterm.RoleHuman, "duplicate line")).To(Succeed())

			out, err := mgr.RetrieveContext(ctx, thread, "duplicate")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("Human: duplicate line"))
			Expect(out).NotTo(ContainSubstring("[shared from bob] duplicate line"))
		})

		It("returns an empty prefix for a fresh thread", func() {
			out, err := mgr.RetrieveContext(ctx, memory.Thread{UserID: "nobody", SessionID: "s0"}, "query")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(BeEmpty())
		})

		It("degrades to the window when embedding fails", func() {
			mgr = newManager(memory.Config{Window: 5})
			Expect(mgr.RecordTurn(ctx, thread, shortterm.RoleHuman, "hello")).To(Succeed())

			embedder.err = errors.New("model offline")

			out, err := mgr.RetrieveContext(ctx, thread, "query")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("Human: hello"))
			Expect(out).NotTo(ContainSubstring("Relevant memories:"))
		})
	})

	Describe("Thread", func() {
		It("derives the storage key from user and session", func() {
			t := memory.Thread{UserID: "alice", SessionID: "s1"}
			Expect(t.Key()).To(Equal("alice_s1"))
		})
	})
})
