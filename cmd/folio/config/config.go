// Package configcmder provides the config command for managing persistent
// folio configuration stored in the .folio/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent folio configuration.

Configuration is stored as config.toml in the .folio/ directory and provides
default values for command flags. CLI flags always take precedence over
config file values, and FOLIO_* environment variables sit between the two.

Keys use dotted notation matching the TOML section structure:
  storage.provider, storage.path, storage.dsn,
  api.listen, client.api_target,
  vector_store.provider, vector_store.path, vector_store.target,
  embedding.provider, embedding.target, embedding.model, embedding.dimensions,
  llm.provider, llm.target, llm.model, llm.temperature, llm.max_tokens,
  ingest.chunk_size, ingest.chunk_overlap, ingest.workers,
  retrieval.top_k, retrieval.score_threshold,
  events.provider, events.brokers, events.topic

Use subcommands to get, set, or list configuration values:
  folio config set <key> <value>    Set a configuration value
  folio config get <key>            Get a configuration value
  folio config list                 List all configuration values

Examples:
  folio config set llm.provider ollama
  folio config set embedding.model nomic-embed-text
  folio config get llm.provider
  folio config list`

const configShortDesc string = "Manage persistent folio configuration"

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
