// Package configcmder provides the config command for managing persistent
// lector configuration stored in the .lector/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent lector configuration.

Configuration is stored as config.toml in the .lector/ directory and provides
default values for command flags. CLI flags always take precedence over
config file values.

Keys use dotted notation matching the TOML section structure:
  llm.model, llm.fallback, llm.target,
  qa.top_k, qa.decompose, qa.approve,
  discovery.n_sample, discovery.p_sample, discovery.cluster_percentage,
  vector_store.provider, vector_store.target, vector_store.collection,
  embedding.provider, embedding.target, embedding.model, embedding.dimensions,
  api.listen, events.enabled, events.brokers, events.topic

Use subcommands to get, set, or list configuration values:
  lector config set <key> <value>    Set a configuration value
  lector config get <key>            Get a configuration value
  lector config list                 List all configuration values

Examples:
  lector config set llm.model ollama:llama3.2
  lector config set qa.top_k 20
  lector config get embedding.model
  lector config list`

const configShortDesc string = "Manage persistent lector configuration"

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
