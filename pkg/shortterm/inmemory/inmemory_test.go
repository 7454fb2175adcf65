package inmemory

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/warren/pkg/shortterm"
)

func TestInMemory(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "In-Memory Short-Term Suite")
}

var _ = Describe("In-Memory Short-Term Driver", func() {
	var (
		ctx context.Context
		d   *Driver
	)

	BeforeEach(func() {
		ctx = context.Background()
		d = NewDriver()
	})

	Describe("Append and Load", func() {
		It("returns turns oldest first", func() {
			Expect(d.Append(ctx, "t1", shortterm.Turn{Role: shortterm.RoleHuman, Text: "Q1"})).To(Succeed())
			Expect(d.Append(ctx, "t1", shortterm.Turn{Role: shortterm.RoleAssistant, Text: "A1"})).To(Succeed())

			turns, err := d.Load(ctx, "t1")
			Expect(err).NotTo(HaveOccurred())
			Expect(turns).To(HaveLen(2))
			Expect(turns[0].Text).To(Equal("Q1"))
			Expect(turns[1].Text).To(Equal("A1"))
		})

		It("returns an empty slice for an unknown thread", func() {
			turns, err := d.Load(ctx, "missing")
			Expect(err).NotTo(HaveOccurred())
			Expect(turns).To(BeEmpty())
		})

		It("isolates threads from each other", func() {
			Expect(d.Append(ctx, "a", shortterm.Turn{Role: shortterm.RoleHuman, Text: "for a"})).To(Succeed())

			turns, err := d.Load(ctx, "b")
			Expect(err).NotTo(HaveOccurred())
			Expect(turns).To(BeEmpty())
		})

		It("returns a copy that does not alias internal state", func() {
			Expect(d.Append(ctx, "t1", shortterm.Turn{Role: shortterm.RoleHuman, Text: "original"})).To(Succeed())

			turns, err := d.Load(ctx, "t1")
			Expect(err).NotTo(HaveOccurred())
			turns[0].Text = "mutated"

			again, err := d.Load(ctx, "t1")
			Expect(err).NotTo(HaveOccurred())
			Expect(again[0].Text).To(Equal("original"))
		})
	})

	Describe("PopOldest", func() {
		It("removes and returns the head", func() {
			Expect(d.Append(ctx, "t1", shortterm.Turn{Role: shortterm.RoleHuman, Text: "first"})).To(Succeed())
			Expect(d.Append(ctx, "t1", shortterm.Turn{Role: shortterm.RoleAssistant, Text: "second"})).To(Succeed())

			head, err := d.PopOldest(ctx, "t1")
			Expect(err).NotTo(HaveOccurred())
			Expect(head.Text).To(Equal("first"))

			n, err := d.Len(ctx, "t1")
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(1))
		})

		It("returns ErrEmpty on an empty thread", func() {
			_, err := d.PopOldest(ctx, "t1")
			Expect(err).To(MatchError(shortterm.ErrEmpty))
		})
	})

	Describe("Trim", func() {
		It("drops from the head until the window holds", func() {
			for _, text := range []string{"1", "2", "3", "4"} {
				Expect(d.Append(ctx, "t1", shortterm.Turn{Role: shortterm.RoleHuman, Text: text})).To(Succeed())
			}

			Expect(d.Trim(ctx, "t1", 2)).To(Succeed())

			turns, err := d.Load(ctx, "t1")
			Expect(err).NotTo(HaveOccurred())
			Expect(turns).To(HaveLen(2))
			Expect(turns[0].Text).To(Equal("3"))
			Expect(turns[1].Text).To(Equal("4"))
		})

		It("is a no-op when the log is within the window", func() {
			Expect(d.Append(ctx, "t1", shortterm.Turn{Role: shortterm.RoleHuman, Text: "only"})).To(Succeed())
			Expect(d.Trim(ctx, "t1", 5)).To(Succeed())

			turns, err := d.Load(ctx, "t1")
			Expect(err).NotTo(HaveOccurred())
			Expect(turns).To(HaveLen(1))
		})

		It("empties the thread for a zero window", func() {
			Expect(d.Append(ctx, "t1", shortterm.Turn{Role: shortterm.RoleHuman, Text: "gone"})).To(Succeed())
			Expect(d.Trim(ctx, "t1", 0)).To(Succeed())

			n, err := d.Len(ctx, "t1")
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(BeZero())
		})
	})
})
