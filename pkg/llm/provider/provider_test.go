package provider_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/warren/pkg/llm/provider"
)

func TestProvider(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Provider Suite")
}

var _ = Describe("New", func() {
	It("resolves the anthropic variant", func() {
		p, err := provider.New(provider.Config{Provider: "anthropic"})
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Name()).To(Equal("anthropic"))
	})

	It("resolves the openai variant", func() {
		p, err := provider.New(provider.Config{Provider: "openai"})
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Name()).To(Equal("openai"))
	})

	It("resolves the ollama variant", func() {
		p, err := provider.New(provider.Config{Provider: "ollama", Target: "http://localhost:11434"})
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Name()).To(Equal("ollama"))
	})

	It("rejects unknown providers", func() {
		_, err := provider.New(provider.Config{Provider: "bedrock"})
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("unknown model provider"))
	})
})
