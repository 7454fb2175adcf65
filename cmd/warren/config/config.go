// Package configcmder provides the config command for managing persistent
// warren configuration stored in the .warren/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent warren configuration.

Configuration is stored as config.toml in the .warren/ directory and provides
default values for command flags. CLI flags always take precedence over
config file values.

Keys use dotted notation matching the TOML section structure:
  gateway.listen,
  sandbox.image, sandbox.network, sandbox.agent_port, sandbox.warmup_seconds,
  agent.listen, client.gateway_target,
  model.provider, model.target, model.name,
  embedding.provider, embedding.target, embedding.model, embedding.dimensions,
  vector_store.provider, vector_store.target, vector_store.collection,
  shortterm.provider, shortterm.target, shortterm.window,
  memory.enabled, memory.unpaired_policy, memory.retrieve_limit

Use subcommands to get, set, or list configuration values:
  warren config set <key> <value>    Set a configuration value
  warren config get <key>            Get a configuration value
  warren config list                 List all configuration values

Examples:
  warren config set model.provider anthropic
  warren config set shortterm.window 5
  warren config get model.provider
  warren config list`

const configShortDesc string = "Manage persistent warren configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
