// Package foliocmder
package foliocmder

import (
	"github.com/spf13/cobra"

	askcmder "github.com/papercomputeco/folio/cmd/folio/ask"
	authcmder "github.com/papercomputeco/folio/cmd/folio/auth"
	chatcmder "github.com/papercomputeco/folio/cmd/folio/chat"
	configcmder "github.com/papercomputeco/folio/cmd/folio/config"
	ingestcmder "github.com/papercomputeco/folio/cmd/folio/ingest"
	initcmder "github.com/papercomputeco/folio/cmd/folio/init"
	librarycmder "github.com/papercomputeco/folio/cmd/folio/library"
	pathscmder "github.com/papercomputeco/folio/cmd/folio/paths"
	searchcmder "github.com/papercomputeco/folio/cmd/folio/search"
	seedcmder "github.com/papercomputeco/folio/cmd/folio/seed"
	servecmder "github.com/papercomputeco/folio/cmd/folio/serve"
	statuscmder "github.com/papercomputeco/folio/cmd/folio/status"
	versioncmder "github.com/papercomputeco/folio/cmd/version"
)

const folioLongDesc string = `Folio is a document library you can ask questions.

Upload documents, let folio chunk and index them, then retrieve grounded
answers with citations:
  folio serve          Run the API server
  folio ingest ./docs  Index local files directly
  folio ask "..."      Ask a question against the indexed library
  folio library        Browse indexed documents in a TUI`

const folioShortDesc string = "Folio - Document Q&A"

func NewFolioCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "folio",
		Short: folioShortDesc,
		Long:  folioLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .folio/ directory location")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(ingestcmder.NewIngestCmd())
	cmd.AddCommand(askcmder.NewAskCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(librarycmder.NewLibraryCmd())
	cmd.AddCommand(statuscmder.NewStatusCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(pathscmder.NewPathsCmd())
	cmd.AddCommand(seedcmder.NewSeedCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
