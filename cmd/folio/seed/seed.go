// Package seedcmder provides the seed command for loading a small demo corpus.
package seedcmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/folio/pkg/chunker"
	"github.com/papercomputeco/folio/pkg/cliui"
	"github.com/papercomputeco/folio/pkg/config"
	"github.com/papercomputeco/folio/pkg/credentials"
	docstoreutils "github.com/papercomputeco/folio/pkg/docstore/utils"
	"github.com/papercomputeco/folio/pkg/dotdir"
	embeddingutils "github.com/papercomputeco/folio/pkg/embeddings/utils"
	eventstreamutils "github.com/papercomputeco/folio/pkg/eventstream/utils"
	"github.com/papercomputeco/folio/pkg/ingest"
	"github.com/papercomputeco/folio/pkg/logger"
	vectorutils "github.com/papercomputeco/folio/pkg/vector/utils"
)

const seedLongDesc string = `Seed a small demo corpus into the document library.

Writes a handful of sample documents (a company handbook, a product FAQ,
and an onboarding guide) into the .folio/ directory and indexes them, so
folio ask has something to answer against.

Requires an embedding provider: either a stored API key (folio auth) or a
local Ollama install configured via folio init --preset ollama.

Running seed again indexes the demo documents as new library entries; use
folio library to remove old copies.

Examples:
  folio seed
  folio seed --dir ./demo-docs
  folio seed --overwrite`

const seedShortDesc string = "Seed a demo document corpus"

type seedCommander struct {
	dir       string
	overwrite bool

	configDir string
	debug     bool
	logger    *slog.Logger
}

func NewSeedCmd() *cobra.Command {
	cmder := &seedCommander{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: seedShortDesc,
		Long:  seedLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cmder.configDir = configDir

			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&cmder.dir, "dir", "", "Directory to write demo documents to (default .folio/demo)")
	cmd.Flags().BoolVarP(&cmder.overwrite, "overwrite", "f", false, "Overwrite existing demo document files")

	return cmd
}

func (c *seedCommander) run(ctx context.Context) error {
	c.logger = logger.Nop()
	if c.debug {
		c.logger = logger.New(logger.WithDebug(true))
	}

	cfger, err := config.NewConfiger(c.configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg, err := cfger.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ddm := dotdir.NewManager()
	dotDir, err := ddm.Ensure(c.configDir)
	if err != nil {
		return fmt.Errorf("resolving folio directory: %w", err)
	}

	demoDir := c.dir
	if demoDir == "" {
		demoDir = filepath.Join(dotDir, "demo")
	}

	fmt.Println()

	written, err := writeDemoDocs(demoDir, c.overwrite)
	if err != nil {
		return err
	}
	fmt.Printf("  %s Wrote %d demo documents to %s\n",
		cliui.SuccessMark,
		written,
		cliui.DimStyle.Render(demoDir),
	)

	ingestor, closeAll, err := c.buildIngestor(ctx, cfg, dotDir)
	if err != nil {
		return err
	}
	defer closeAll()

	var result *ingest.Result
	if err := cliui.Step(os.Stdout, "Indexing demo documents", func() error {
		result = ingestor.ProcessBatch(ctx, []string{demoDir})
		return nil
	}); err != nil {
		return err
	}

	summary := strings.ReplaceAll(result.Summary(), "\n", "\n  ")
	fmt.Printf("\n  %s\n\n", summary)

	fmt.Printf("  %s\n\n", cliui.DimStyle.Render(`Try: folio serve, then folio ask "How many vacation days do employees get?"`))
	return nil
}

// buildIngestor wires the local ingest pipeline from config. The returned
// close func releases the stores in reverse open order.
func (c *seedCommander) buildIngestor(ctx context.Context, cfg *config.Config, dotDir string) (*ingest.Ingestor, func(), error) {
	creds, err := credentials.NewManager(c.configDir)
	if err != nil {
		return nil, nil, fmt.Errorf("loading credentials: %w", err)
	}

	storagePath := cfg.Storage.Path
	if storagePath == "" {
		switch cfg.Storage.Provider {
		case "sqlite":
			storagePath = filepath.Join(dotDir, "folio.db")
		default:
			storagePath = filepath.Join(dotDir, "documents.json")
		}
	}

	store, err := docstoreutils.NewDocumentStore(&docstoreutils.NewDocumentStoreOpts{
		ProviderType: cfg.Storage.Provider,
		Path:         storagePath,
		DatabaseURL:  cfg.Storage.DSN,
		Logger:       c.logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("opening document store: %w", err)
	}

	vectorPath := cfg.VectorStore.Path
	if vectorPath == "" {
		switch cfg.VectorStore.Provider {
		case "sqlitevec":
			vectorPath = filepath.Join(dotDir, "vectors.db")
		default:
			vectorPath = filepath.Join(dotDir, "index")
		}
	}

	driver, err := vectorutils.NewVectorDriver(&vectorutils.NewVectorDriverOpts{
		ProviderType: cfg.VectorStore.Provider,
		Dimension:    int(cfg.Embedding.Dimensions),
		Path:         vectorPath,
		Logger:       c.logger,
	})
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("opening vector store: %w", err)
	}

	if err := driver.Load(ctx); err != nil {
		_ = driver.Close()
		_ = store.Close()
		return nil, nil, fmt.Errorf("loading vector index: %w", err)
	}

	embedKey, err := creds.ResolveKey(cfg.Embedding.Provider)
	if err != nil {
		_ = driver.Close()
		_ = store.Close()
		return nil, nil, fmt.Errorf("resolving %s credentials: %w", cfg.Embedding.Provider, err)
	}
	if embedKey == "" && credentials.IsSupportedProvider(cfg.Embedding.Provider) {
		_ = driver.Close()
		_ = store.Close()
		return nil, nil, fmt.Errorf("no API key for embedding provider %q: set %s or run 'folio auth %s'",
			cfg.Embedding.Provider,
			credentials.EnvVarForProvider(cfg.Embedding.Provider),
			cfg.Embedding.Provider,
		)
	}

	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: cfg.Embedding.Provider,
		TargetURL:    cfg.Embedding.Target,
		Model:        cfg.Embedding.Model,
		APIKey:       embedKey,
	})
	if err != nil {
		_ = driver.Close()
		_ = store.Close()
		return nil, nil, fmt.Errorf("creating embedder: %w", err)
	}

	var brokers []string
	for _, b := range strings.Split(cfg.Events.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}

	publisher, err := eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{
		ProviderType: cfg.Events.Provider,
		Brokers:      brokers,
		Topic:        cfg.Events.Topic,
		Logger:       c.logger,
	})
	if err != nil {
		_ = driver.Close()
		_ = store.Close()
		return nil, nil, fmt.Errorf("creating event publisher: %w", err)
	}

	chk, err := chunker.New(int(cfg.Ingest.ChunkSize), int(cfg.Ingest.ChunkOverlap))
	if err != nil {
		_ = publisher.Close()
		_ = driver.Close()
		_ = store.Close()
		return nil, nil, fmt.Errorf("configuring chunker: %w", err)
	}

	ingestor, err := ingest.NewIngestor(&ingest.Config{
		Docstore:  store,
		Vector:    driver,
		Embedder:  embedder,
		Chunker:   chk,
		Publisher: publisher,
		Logger:    c.logger,
	})
	if err != nil {
		_ = publisher.Close()
		_ = driver.Close()
		_ = store.Close()
		return nil, nil, fmt.Errorf("creating ingestor: %w", err)
	}

	closeAll := func() {
		_ = publisher.Close()
		_ = driver.Close()
		_ = store.Close()
	}

	return ingestor, closeAll, nil
}

// writeDemoDocs writes the demo corpus files, returning how many were written.
func writeDemoDocs(dir string, overwrite bool) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("creating demo directory: %w", err)
	}

	written := 0
	for _, doc := range demoDocs {
		path := filepath.Join(dir, doc.name)
		if _, err := os.Stat(path); err == nil && !overwrite {
			continue
		}
		if err := os.WriteFile(path, []byte(doc.content), 0o644); err != nil {
			return written, fmt.Errorf("writing %s: %w", doc.name, err)
		}
		written++
	}

	return written, nil
}
