package warrencmder_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	warrencmder "github.com/papercomputeco/warren/cmd/warren"
)

func TestWarrenCmd(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Warren Command Suite")
}

var _ = Describe("NewWarrenCmd", func() {
	It("creates the root command", func() {
		cmd := warrencmder.NewWarrenCmd()
		Expect(cmd.Use).To(Equal("warren"))
	})

	It("registers the service and client subcommands", func() {
		cmd := warrencmder.NewWarrenCmd()
		cmds := cmd.Commands()
		subcommands := make([]string, 0, len(cmds))
		for _, sub := range cmds {
			subcommands = append(subcommands, sub.Name())
		}
		Expect(subcommands).To(ContainElements("serve", "chat", "config", "version"))
	})

	It("exposes the global debug flag", func() {
		cmd := warrencmder.NewWarrenCmd()
		Expect(cmd.PersistentFlags().Lookup("debug")).NotTo(BeNil())
		Expect(cmd.PersistentFlags().Lookup("config-dir")).NotTo(BeNil())
	})

	It("nests the agent command under serve", func() {
		cmd := warrencmder.NewWarrenCmd()
		serve, _, err := cmd.Find([]string{"serve", "agent"})
		Expect(err).NotTo(HaveOccurred())
		Expect(serve.Name()).To(Equal("agent"))
	})
})
