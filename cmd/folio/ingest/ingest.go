// Package ingestcmder provides the ingest command for indexing local files
// without a running server.
package ingestcmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/folio/pkg/chunker"
	"github.com/papercomputeco/folio/pkg/cliui"
	"github.com/papercomputeco/folio/pkg/config"
	"github.com/papercomputeco/folio/pkg/credentials"
	"github.com/papercomputeco/folio/pkg/docstore"
	docstoreutils "github.com/papercomputeco/folio/pkg/docstore/utils"
	"github.com/papercomputeco/folio/pkg/dotdir"
	embeddingutils "github.com/papercomputeco/folio/pkg/embeddings/utils"
	eventstreamutils "github.com/papercomputeco/folio/pkg/eventstream/utils"
	"github.com/papercomputeco/folio/pkg/ingest"
	"github.com/papercomputeco/folio/pkg/logger"
	"github.com/papercomputeco/folio/pkg/vector"
	vectorutils "github.com/papercomputeco/folio/pkg/vector/utils"
)

type ingestCommander struct {
	storageProvider string
	storagePath     string
	storageDSN      string

	vectorProvider string
	vectorPath     string

	embeddingProvider string
	embeddingTarget   string
	embeddingModel    string
	embeddingDims     uint

	chunkSize    uint
	chunkOverlap uint

	eventsProvider string
	eventsBrokers  string
	eventsTopic    string

	configDir string
	debug     bool
	logger    *slog.Logger
}

const ingestLongDesc string = `Index local files or directories into the folio library.

Walks the given paths, parses every supported file (.pdf, .txt, .md), chunks
and embeds the text, and stores the chunks in the vector index. Unsupported
extensions are skipped. Failed documents are recorded with their failure
reason; inspect them with folio library.

Runs against the local store and index directly, so no server is needed.

Examples:
  folio ingest ./docs
  folio ingest notes.md handbook.pdf
  folio ingest ./docs --chunk-size 1024 --chunk-overlap 100`

const ingestShortDesc string = "Index local files into the library"

var ingestFlags = config.FlagSet{
	config.FlagStorageProvider: {Name: "storage-provider", ViperKey: "storage.provider", Description: "Document store provider (jsonfile, sqlite, postgres, libsql, inmemory)"},
	config.FlagStoragePath:     {Name: "storage-path", ViperKey: "storage.path", Description: "Document store file path (jsonfile, sqlite)"},
	config.FlagStorageDSN:      {Name: "storage-dsn", ViperKey: "storage.dsn", Description: "Document store connection string (postgres, libsql)"},
	config.FlagVectorStoreProv: {Name: "vector-store-provider", ViperKey: "vector_store.provider", Description: "Vector store provider (flat, sqlitevec)"},
	config.FlagVectorStorePath: {Name: "vector-store-path", ViperKey: "vector_store.path", Description: "Vector index path (flat, sqlitevec)"},
	config.FlagEmbeddingProv:   {Name: "embedding-provider", ViperKey: "embedding.provider", Description: "Embedding provider (gemini, openai, ollama)"},
	config.FlagEmbeddingTgt:    {Name: "embedding-target", ViperKey: "embedding.target", Description: "Embedding provider base URL"},
	config.FlagEmbeddingModel:  {Name: "embedding-model", ViperKey: "embedding.model", Description: "Embedding model name"},
	config.FlagEmbeddingDims:   {Name: "embedding-dimensions", ViperKey: "embedding.dimensions", Description: "Embedding vector dimension"},
	config.FlagChunkSize:       {Name: "chunk-size", ViperKey: "ingest.chunk_size", Description: "Chunk size in characters"},
	config.FlagChunkOverlap:    {Name: "chunk-overlap", ViperKey: "ingest.chunk_overlap", Description: "Chunk overlap in characters"},
	config.FlagEventsProvider:  {Name: "events-provider", ViperKey: "events.provider", Description: "Document event publisher (nop, kafka)"},
	config.FlagEventsBrokers:   {Name: "events-brokers", ViperKey: "events.brokers", Description: "Comma-separated kafka broker addresses"},
	config.FlagEventsTopic:     {Name: "events-topic", ViperKey: "events.topic", Description: "Kafka topic for document events"},
}

var ingestFlagKeys = []string{
	config.FlagStorageProvider,
	config.FlagStoragePath,
	config.FlagStorageDSN,
	config.FlagVectorStoreProv,
	config.FlagVectorStorePath,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagChunkSize,
	config.FlagChunkOverlap,
	config.FlagEventsProvider,
	config.FlagEventsBrokers,
	config.FlagEventsTopic,
}

func NewIngestCmd() *cobra.Command {
	cmder := &ingestCommander{}

	cmd := &cobra.Command{
		Use:   "ingest <path>...",
		Short: ingestShortDesc,
		Long:  ingestLongDesc,
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cmder.configDir = configDir

			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}

			config.BindRegisteredFlags(v, cmd, ingestFlags, ingestFlagKeys)
			cmder.resolve(v)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			return cmder.run(cmd.Context(), args)
		},
	}

	config.AddStringFlag(cmd, ingestFlags, config.FlagStorageProvider, &cmder.storageProvider)
	config.AddStringFlag(cmd, ingestFlags, config.FlagStoragePath, &cmder.storagePath)
	config.AddStringFlag(cmd, ingestFlags, config.FlagStorageDSN, &cmder.storageDSN)
	config.AddStringFlag(cmd, ingestFlags, config.FlagVectorStoreProv, &cmder.vectorProvider)
	config.AddStringFlag(cmd, ingestFlags, config.FlagVectorStorePath, &cmder.vectorPath)
	config.AddStringFlag(cmd, ingestFlags, config.FlagEmbeddingProv, &cmder.embeddingProvider)
	config.AddStringFlag(cmd, ingestFlags, config.FlagEmbeddingTgt, &cmder.embeddingTarget)
	config.AddStringFlag(cmd, ingestFlags, config.FlagEmbeddingModel, &cmder.embeddingModel)
	config.AddUintFlag(cmd, ingestFlags, config.FlagEmbeddingDims, &cmder.embeddingDims)
	config.AddUintFlag(cmd, ingestFlags, config.FlagChunkSize, &cmder.chunkSize)
	config.AddUintFlag(cmd, ingestFlags, config.FlagChunkOverlap, &cmder.chunkOverlap)
	config.AddStringFlag(cmd, ingestFlags, config.FlagEventsProvider, &cmder.eventsProvider)
	config.AddStringFlag(cmd, ingestFlags, config.FlagEventsBrokers, &cmder.eventsBrokers)
	config.AddStringFlag(cmd, ingestFlags, config.FlagEventsTopic, &cmder.eventsTopic)

	return cmd
}

func (c *ingestCommander) resolve(v *viper.Viper) {
	c.storageProvider = v.GetString("storage.provider")
	c.storagePath = v.GetString("storage.path")
	c.storageDSN = v.GetString("storage.dsn")

	c.vectorProvider = v.GetString("vector_store.provider")
	c.vectorPath = v.GetString("vector_store.path")

	c.embeddingProvider = v.GetString("embedding.provider")
	c.embeddingTarget = v.GetString("embedding.target")
	c.embeddingModel = v.GetString("embedding.model")
	c.embeddingDims = v.GetUint("embedding.dimensions")

	c.chunkSize = v.GetUint("ingest.chunk_size")
	c.chunkOverlap = v.GetUint("ingest.chunk_overlap")

	c.eventsProvider = v.GetString("events.provider")
	c.eventsBrokers = v.GetString("events.brokers")
	c.eventsTopic = v.GetString("events.topic")
}

func (c *ingestCommander) run(ctx context.Context, paths []string) error {
	// Component logs would tear up the spinner lines, so stay quiet
	// unless debugging.
	c.logger = logger.Nop()
	if c.debug {
		c.logger = logger.New(logger.WithDebug(true))
	}

	ddm := dotdir.NewManager()
	dir, err := ddm.Ensure(c.configDir)
	if err != nil {
		return fmt.Errorf("resolving folio directory: %w", err)
	}

	if c.storagePath == "" {
		switch c.storageProvider {
		case "sqlite":
			c.storagePath = filepath.Join(dir, "folio.db")
		default:
			c.storagePath = filepath.Join(dir, "documents.json")
		}
	}
	if c.vectorPath == "" {
		switch c.vectorProvider {
		case "sqlitevec":
			c.vectorPath = filepath.Join(dir, "vectors.db")
		default:
			c.vectorPath = filepath.Join(dir, "index")
		}
	}

	creds, err := credentials.NewManager(c.configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	key, err := creds.ResolveKey(c.embeddingProvider)
	if err != nil {
		return fmt.Errorf("resolving %s credentials: %w", c.embeddingProvider, err)
	}
	if key == "" && credentials.IsSupportedProvider(c.embeddingProvider) {
		return fmt.Errorf("no API key for embedding provider %q: set %s or run 'folio auth %s'",
			c.embeddingProvider,
			credentials.EnvVarForProvider(c.embeddingProvider),
			c.embeddingProvider,
		)
	}

	fmt.Println()

	var store docstore.Driver
	if err := cliui.Step(os.Stdout, "Opening document store", func() error {
		var oerr error
		store, oerr = docstoreutils.NewDocumentStore(&docstoreutils.NewDocumentStoreOpts{
			ProviderType: c.storageProvider,
			Path:         c.storagePath,
			DatabaseURL:  c.storageDSN,
			Logger:       c.logger,
		})
		return oerr
	}); err != nil {
		return err
	}
	defer store.Close()

	var vectorDriver vector.Driver
	if err := cliui.Step(os.Stdout, "Loading vector index", func() error {
		var oerr error
		vectorDriver, oerr = vectorutils.NewVectorDriver(&vectorutils.NewVectorDriverOpts{
			ProviderType: c.vectorProvider,
			Dimension:    int(c.embeddingDims),
			Path:         c.vectorPath,
			Logger:       c.logger,
		})
		if oerr != nil {
			return oerr
		}
		return vectorDriver.Load(ctx)
	}); err != nil {
		return err
	}
	defer vectorDriver.Close()

	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: c.embeddingProvider,
		TargetURL:    c.embeddingTarget,
		Model:        c.embeddingModel,
		APIKey:       key,
	})
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}

	var brokers []string
	for _, b := range strings.Split(c.eventsBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}

	publisher, err := eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{
		ProviderType: c.eventsProvider,
		Brokers:      brokers,
		Topic:        c.eventsTopic,
		Logger:       c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating event publisher: %w", err)
	}
	defer publisher.Close()

	chk, err := chunker.New(int(c.chunkSize), int(c.chunkOverlap))
	if err != nil {
		return fmt.Errorf("configuring chunker: %w", err)
	}

	ingestor, err := ingest.NewIngestor(&ingest.Config{
		Docstore:  store,
		Vector:    vectorDriver,
		Embedder:  embedder,
		Chunker:   chk,
		Publisher: publisher,
		Logger:    c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating ingestor: %w", err)
	}

	var result *ingest.Result
	if err := cliui.Step(os.Stdout, fmt.Sprintf("Indexing %s", describePaths(paths)), func() error {
		result = ingestor.ProcessBatch(ctx, paths)
		return nil
	}); err != nil {
		return err
	}

	fmt.Printf("\n  %s\n\n", strings.ReplaceAll(result.Summary(), "\n", "\n  "))

	if result.Failed > 0 {
		fmt.Printf("  %s %d document(s) failed. Run %s to inspect failure reasons.\n\n",
			cliui.WarnStyle.Render("!"),
			result.Failed,
			cliui.NameStyle.Render("folio library"),
		)
	}

	return nil
}

func describePaths(paths []string) string {
	if len(paths) == 1 {
		return paths[0]
	}
	return fmt.Sprintf("%d paths", len(paths))
}
