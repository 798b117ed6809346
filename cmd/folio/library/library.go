// Package librarycmder provides the library command, a TUI for browsing and
// managing indexed documents.
package librarycmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/folio/pkg/config"
)

const libraryLongDesc string = `Browse the document library in a TUI.

Lists every indexed document with its processing status and chunk count.
Drill into a document to inspect its chunks, or delete documents from the
library (removing their chunks from the index).

Requires a running folio API server.

Examples:
  folio library
  folio library --api-target http://localhost:8081`

const libraryShortDesc string = "Browse and manage the document library"

type libraryCommander struct {
	apiTarget string
}

func NewLibraryCmd() *cobra.Command {
	cmder := &libraryCommander{}

	cmd := &cobra.Command{
		Use:   "library",
		Short: libraryShortDesc,
		Long:  libraryLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cfger, err := config.NewConfiger(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			cfg, err := cfger.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			if !cmd.Flags().Changed("api-target") {
				cmder.apiTarget = cfg.Client.APITarget
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVarP(&cmder.apiTarget, "api-target", "a", defaults.Client.APITarget, "Folio API server URL")

	return cmd
}

func (c *libraryCommander) run(cmd *cobra.Command) error {
	client := newLibraryClient(c.apiTarget)

	// Fetch up front so a dead server fails with a plain error instead of
	// an empty TUI.
	documents, err := client.listDocuments(cmd.Context())
	if err != nil {
		return err
	}

	return runLibraryTUI(cmd.Context(), client, documents)
}
