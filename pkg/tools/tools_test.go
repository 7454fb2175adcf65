package tools_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/warren/pkg/tools"
)

func TestTools(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Tools Suite")
}

var _ = Describe("Registry", func() {
	It("returns registered tools by name", func() {
		r := tools.NewRegistry(tools.NewCalculator())

		tool, err := r.Get("calc")
		Expect(err).NotTo(HaveOccurred())
		Expect(tool.Name()).To(Equal("calc"))
	})

	It("errors for unknown tools", func() {
		r := tools.NewRegistry()

		_, err := r.Get("nope")
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("unknown tool"))
	})
})

var _ = Describe("Calculator", func() {
	var (
		ctx  context.Context
		calc *tools.Calculator
	)

	BeforeEach(func() {
		ctx = context.Background()
		calc = tools.NewCalculator()
	})

	It("evaluates arithmetic", func() {
		out, err := calc.Call(ctx, "(2+3)*4")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("20"))
	})

	It("evaluates floating point expressions", func() {
		out, err := calc.Call(ctx, "10 / 4.0")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("2.5"))
	})

	It("rejects empty input", func() {
		_, err := calc.Call(ctx, "   ")
		Expect(err).To(HaveOccurred())
	})

	It("rejects malformed expressions", func() {
		_, err := calc.Call(ctx, "2 +* 3")
		Expect(err).To(HaveOccurred())
	})

	It("rejects identifiers since no environment is exposed", func() {
		_, err := calc.Call(ctx, "os.Exit(1)")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("FileReader", func() {
	var (
		ctx    context.Context
		tmpDir string
		reader *tools.FileReader
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		tmpDir, err = os.MkdirTemp("", "filereader-test-*")
		Expect(err).NotTo(HaveOccurred())

		reader = tools.NewFileReader(tmpDir)
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("reads files under the base directory", func() {
		path := filepath.Join(tmpDir, "note.txt")
		Expect(os.WriteFile(path, []byte("hello from disk"), 0o600)).To(Succeed())

		out, err := reader.Call(ctx, "note.txt")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("hello from disk"))
	})

	It("refuses paths that escape the base directory", func() {
		// Clean collapses the traversal inside the base, so the secret
		// outside it stays unreachable.
		outside := filepath.Join(filepath.Dir(tmpDir), "secret.txt")
		Expect(os.WriteFile(outside, []byte("secret"), 0o600)).To(Succeed())
		defer os.Remove(outside)

		out, err := reader.Call(ctx, "../secret.txt")
		if err == nil {
			Expect(out).NotTo(Equal("secret"))
		}
	})

	It("errors on missing files", func() {
		_, err := reader.Call(ctx, "missing.txt")
		Expect(err).To(HaveOccurred())
	})

	It("rejects empty input", func() {
		_, err := reader.Call(ctx, "")
		Expect(err).To(HaveOccurred())
	})
})
