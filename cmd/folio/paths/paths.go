// Package pathscmder provides the paths command for showing where folio
// reads and writes its state.
package pathscmder

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/folio/pkg/cliui"
	"github.com/papercomputeco/folio/pkg/config"
	"github.com/papercomputeco/folio/pkg/credentials"
	"github.com/papercomputeco/folio/pkg/dotdir"
)

const pathsLongDesc string = `Show the resolved paths folio uses for its state.

Displays the .folio/ directory in effect and the files inside it: the
config, credentials, chat history, document store, vector index, and
upload directory. Paths for stores follow the configured providers.

Examples:
  folio paths
  folio paths --config-dir ./my-folio`

const pathsShortDesc string = "Show resolved state paths"

const pathsKeyWidth = 13

func NewPathsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "paths",
		Short: pathsShortDesc,
		Long:  pathsLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runPaths(configDir)
		},
	}

	return cmd
}

func runPaths(configDir string) error {
	ddm := dotdir.NewManager()

	dir, err := ddm.Target(configDir)
	if err != nil {
		return fmt.Errorf("resolving folio directory: %w", err)
	}

	fmt.Println()

	if dir == "" {
		fmt.Printf("  %s No .folio/ directory found. Run folio init to create one.\n\n", cliui.DimStyle.Render("●"))
		return nil
	}

	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg, err := cfger.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	creds, err := credentials.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	printPath("Directory:", dir)
	printPath("Config:", orNone(cfger.GetTarget()))
	printPath("Credentials:", creds.GetTarget())
	printPath("History:", filepath.Join(dir, "history.json"))
	printPath("Documents:", documentsPath(cfg, dir))
	printPath("Index:", indexPath(cfg, dir))

	uploadDir := cfg.Ingest.UploadDir
	if uploadDir == "" {
		uploadDir = filepath.Join(dir, "uploads")
	}
	printPath("Uploads:", uploadDir)

	fmt.Println()
	return nil
}

// documentsPath mirrors the storage path defaulting the server applies.
func documentsPath(cfg *config.Config, dir string) string {
	switch cfg.Storage.Provider {
	case "postgres", "libsql":
		return orNone(cfg.Storage.DSN)
	case "inmemory":
		return "(in memory)"
	}

	if cfg.Storage.Path != "" {
		return cfg.Storage.Path
	}
	if cfg.Storage.Provider == "sqlite" {
		return filepath.Join(dir, "folio.db")
	}
	return filepath.Join(dir, "documents.json")
}

// indexPath mirrors the vector store path defaulting the server applies.
func indexPath(cfg *config.Config, dir string) string {
	if cfg.VectorStore.Provider == "qdrant" {
		return orNone(cfg.VectorStore.Target)
	}

	if cfg.VectorStore.Path != "" {
		return cfg.VectorStore.Path
	}
	if cfg.VectorStore.Provider == "sqlitevec" {
		return filepath.Join(dir, "vectors.db")
	}
	return filepath.Join(dir, "index")
}

func orNone(path string) string {
	if path == "" {
		return "(not set)"
	}
	return path
}

func printPath(key, value string) {
	fmt.Printf("  %s %s\n",
		cliui.KeyStyle.Render(fmt.Sprintf("%-*s", pathsKeyWidth, key)),
		cliui.ValueStyle.Render(value),
	)
}
