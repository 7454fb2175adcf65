// Package warrencmder
package warrencmder

import (
	"github.com/spf13/cobra"

	chatcmder "github.com/papercomputeco/warren/cmd/warren/chat"
	configcmder "github.com/papercomputeco/warren/cmd/warren/config"
	servecmder "github.com/papercomputeco/warren/cmd/warren/serve"
	versioncmder "github.com/papercomputeco/warren/cmd/version"
)

const warrenLongDesc string = `Warren is a multi-user agent burrow: one sandboxed
agent per user, with tiered conversational memory.

Run services using:
  warren serve           Run the session gateway
  warren serve agent     Run a single agent server

Talk to a running gateway:
  warren chat            Interactive chat session`

const warrenShortDesc string = "Warren - Multi-User Agent Sandboxes"

func NewWarrenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "warren",
		Short: warrenShortDesc,
		Long:  warrenLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Directory containing the .warren config dotdir")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
