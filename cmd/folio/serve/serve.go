// Package servecmder provides the serve command for running the folio API server.
package servecmder

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/folio/api"
	"github.com/papercomputeco/folio/pkg/chunker"
	"github.com/papercomputeco/folio/pkg/config"
	"github.com/papercomputeco/folio/pkg/credentials"
	"github.com/papercomputeco/folio/pkg/docstore"
	docstoreutils "github.com/papercomputeco/folio/pkg/docstore/utils"
	"github.com/papercomputeco/folio/pkg/dotdir"
	"github.com/papercomputeco/folio/pkg/embeddings"
	embeddingutils "github.com/papercomputeco/folio/pkg/embeddings/utils"
	"github.com/papercomputeco/folio/pkg/eventstream"
	eventstreamutils "github.com/papercomputeco/folio/pkg/eventstream/utils"
	"github.com/papercomputeco/folio/pkg/ingest"
	"github.com/papercomputeco/folio/pkg/llm"
	"github.com/papercomputeco/folio/pkg/llm/provider"
	"github.com/papercomputeco/folio/pkg/logger"
	"github.com/papercomputeco/folio/pkg/metrics"
	"github.com/papercomputeco/folio/pkg/vector"
	vectorutils "github.com/papercomputeco/folio/pkg/vector/utils"
)

type ServeCommander struct {
	listen string

	storageProvider string
	storagePath     string
	storageDSN      string

	vectorProvider   string
	vectorPath       string
	vectorTarget     string
	vectorCollection string

	embeddingProvider string
	embeddingTarget   string
	embeddingModel    string
	embeddingDims     uint

	llmProvider    string
	llmTarget      string
	llmModel       string
	llmTemperature float64
	llmMaxTokens   uint

	chunkSize    uint
	chunkOverlap uint
	workers      uint
	queueSize    uint
	maxFileMB    uint
	uploadDir    string
	watchDir     string

	topK           uint
	scoreThreshold float64

	eventsProvider string
	eventsBrokers  string
	eventsTopic    string

	watch bool
	mcp   bool

	configDir string
	debug     bool
	logger    *slog.Logger
}

const serveLongDesc string = `Run the folio API server.

Builds the document store, vector index, embedder, generator, and ingestion
worker pool from configuration, then serves the HTTP API until interrupted.

Every flag falls back to the corresponding config.toml key, then to a
FOLIO_* environment variable, then to the built-in default.

Examples:
  folio serve
  folio serve --api-listen :9090
  folio serve --vector-store-provider sqlitevec
  folio serve --watch --watch-dir ./inbox
  folio serve --mcp`

const serveShortDesc string = "Run the folio API server"

// serveFlags defines every config-backed flag the serve command registers.
var serveFlags = config.FlagSet{
	config.FlagAPIListen:        {Name: "api-listen", Shorthand: "a", ViperKey: "api.listen", Description: "Address for API server to listen on"},
	config.FlagStorageProvider:  {Name: "storage-provider", ViperKey: "storage.provider", Description: "Document store provider (jsonfile, sqlite, postgres, libsql, inmemory)"},
	config.FlagStoragePath:      {Name: "storage-path", ViperKey: "storage.path", Description: "Document store file path (jsonfile, sqlite)"},
	config.FlagStorageDSN:       {Name: "storage-dsn", ViperKey: "storage.dsn", Description: "Document store connection string (postgres, libsql)"},
	config.FlagVectorStoreProv:  {Name: "vector-store-provider", ViperKey: "vector_store.provider", Description: "Vector store provider (flat, sqlitevec, qdrant)"},
	config.FlagVectorStorePath:  {Name: "vector-store-path", ViperKey: "vector_store.path", Description: "Vector index path (flat, sqlitevec)"},
	config.FlagVectorStoreTgt:   {Name: "vector-store-target", ViperKey: "vector_store.target", Description: "Qdrant address as host:port"},
	config.FlagVectorCollection: {Name: "vector-store-collection", ViperKey: "vector_store.collection", Description: "Qdrant collection name"},
	config.FlagEmbeddingProv:    {Name: "embedding-provider", ViperKey: "embedding.provider", Description: "Embedding provider (gemini, openai, ollama)"},
	config.FlagEmbeddingTgt:     {Name: "embedding-target", ViperKey: "embedding.target", Description: "Embedding provider base URL"},
	config.FlagEmbeddingModel:   {Name: "embedding-model", ViperKey: "embedding.model", Description: "Embedding model name"},
	config.FlagEmbeddingDims:    {Name: "embedding-dimensions", ViperKey: "embedding.dimensions", Description: "Embedding vector dimension"},
	config.FlagLLMProv:          {Name: "llm-provider", ViperKey: "llm.provider", Description: "LLM provider (gemini, openai, ollama)"},
	config.FlagLLMTarget:        {Name: "llm-target", ViperKey: "llm.target", Description: "LLM provider base URL"},
	config.FlagLLMModel:         {Name: "llm-model", ViperKey: "llm.model", Description: "LLM model name"},
	config.FlagChunkSize:        {Name: "chunk-size", ViperKey: "ingest.chunk_size", Description: "Chunk size in characters"},
	config.FlagChunkOverlap:     {Name: "chunk-overlap", ViperKey: "ingest.chunk_overlap", Description: "Chunk overlap in characters"},
	config.FlagIngestWorkers:    {Name: "workers", ViperKey: "ingest.workers", Description: "Number of ingestion workers"},
	config.FlagIngestQueueSize:  {Name: "queue-size", ViperKey: "ingest.queue_size", Description: "Ingestion queue capacity"},
	config.FlagMaxFileMB:        {Name: "max-file-mb", ViperKey: "ingest.max_file_mb", Description: "Maximum upload size in MB"},
	config.FlagUploadDir:        {Name: "upload-dir", ViperKey: "ingest.upload_dir", Description: "Directory uploaded files are stored in"},
	config.FlagWatchDir:         {Name: "watch-dir", ViperKey: "ingest.watch_dir", Description: "Directory watched for new documents (with --watch)"},
	config.FlagTopK:             {Name: "top-k", Shorthand: "k", ViperKey: "retrieval.top_k", Description: "Default number of chunks to retrieve"},
	config.FlagScoreThreshold:   {Name: "score-threshold", ViperKey: "retrieval.score_threshold", Description: "Minimum similarity score for retrieved chunks"},
	config.FlagEventsProvider:   {Name: "events-provider", ViperKey: "events.provider", Description: "Document event publisher (nop, kafka)"},
	config.FlagEventsBrokers:    {Name: "events-brokers", ViperKey: "events.brokers", Description: "Comma-separated kafka broker addresses"},
	config.FlagEventsTopic:      {Name: "events-topic", ViperKey: "events.topic", Description: "Kafka topic for document events"},
}

// serveFlagKeys lists the registry keys bound to viper in PreRunE.
var serveFlagKeys = []string{
	config.FlagAPIListen,
	config.FlagStorageProvider,
	config.FlagStoragePath,
	config.FlagStorageDSN,
	config.FlagVectorStoreProv,
	config.FlagVectorStorePath,
	config.FlagVectorStoreTgt,
	config.FlagVectorCollection,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagLLMProv,
	config.FlagLLMTarget,
	config.FlagLLMModel,
	config.FlagChunkSize,
	config.FlagChunkOverlap,
	config.FlagIngestWorkers,
	config.FlagIngestQueueSize,
	config.FlagMaxFileMB,
	config.FlagUploadDir,
	config.FlagWatchDir,
	config.FlagTopK,
	config.FlagScoreThreshold,
	config.FlagEventsProvider,
	config.FlagEventsBrokers,
	config.FlagEventsTopic,
}

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cmder.configDir = configDir

			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}

			config.BindRegisteredFlags(v, cmd, serveFlags, serveFlagKeys)
			cmder.resolve(v)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, serveFlags, config.FlagAPIListen, &cmder.listen)
	config.AddStringFlag(cmd, serveFlags, config.FlagStorageProvider, &cmder.storageProvider)
	config.AddStringFlag(cmd, serveFlags, config.FlagStoragePath, &cmder.storagePath)
	config.AddStringFlag(cmd, serveFlags, config.FlagStorageDSN, &cmder.storageDSN)
	config.AddStringFlag(cmd, serveFlags, config.FlagVectorStoreProv, &cmder.vectorProvider)
	config.AddStringFlag(cmd, serveFlags, config.FlagVectorStorePath, &cmder.vectorPath)
	config.AddStringFlag(cmd, serveFlags, config.FlagVectorStoreTgt, &cmder.vectorTarget)
	config.AddStringFlag(cmd, serveFlags, config.FlagVectorCollection, &cmder.vectorCollection)
	config.AddStringFlag(cmd, serveFlags, config.FlagEmbeddingProv, &cmder.embeddingProvider)
	config.AddStringFlag(cmd, serveFlags, config.FlagEmbeddingTgt, &cmder.embeddingTarget)
	config.AddStringFlag(cmd, serveFlags, config.FlagEmbeddingModel, &cmder.embeddingModel)
	config.AddUintFlag(cmd, serveFlags, config.FlagEmbeddingDims, &cmder.embeddingDims)
	config.AddStringFlag(cmd, serveFlags, config.FlagLLMProv, &cmder.llmProvider)
	config.AddStringFlag(cmd, serveFlags, config.FlagLLMTarget, &cmder.llmTarget)
	config.AddStringFlag(cmd, serveFlags, config.FlagLLMModel, &cmder.llmModel)
	config.AddUintFlag(cmd, serveFlags, config.FlagChunkSize, &cmder.chunkSize)
	config.AddUintFlag(cmd, serveFlags, config.FlagChunkOverlap, &cmder.chunkOverlap)
	config.AddUintFlag(cmd, serveFlags, config.FlagIngestWorkers, &cmder.workers)
	config.AddUintFlag(cmd, serveFlags, config.FlagIngestQueueSize, &cmder.queueSize)
	config.AddUintFlag(cmd, serveFlags, config.FlagMaxFileMB, &cmder.maxFileMB)
	config.AddStringFlag(cmd, serveFlags, config.FlagUploadDir, &cmder.uploadDir)
	config.AddStringFlag(cmd, serveFlags, config.FlagWatchDir, &cmder.watchDir)
	config.AddUintFlag(cmd, serveFlags, config.FlagTopK, &cmder.topK)
	config.AddFloat64Flag(cmd, serveFlags, config.FlagScoreThreshold, &cmder.scoreThreshold)
	config.AddStringFlag(cmd, serveFlags, config.FlagEventsProvider, &cmder.eventsProvider)
	config.AddStringFlag(cmd, serveFlags, config.FlagEventsBrokers, &cmder.eventsBrokers)
	config.AddStringFlag(cmd, serveFlags, config.FlagEventsTopic, &cmder.eventsTopic)

	cmd.Flags().BoolVarP(&cmder.watch, "watch", "w", false, "Watch a directory and ingest new files automatically")
	cmd.Flags().BoolVar(&cmder.mcp, "mcp", false, "Mount the MCP server at /mcp")

	return cmd
}

// resolve copies the final values out of viper after flag binding, so each
// setting honors the flag > env > config file > default precedence.
func (c *ServeCommander) resolve(v *viper.Viper) {
	c.listen = v.GetString("api.listen")

	c.storageProvider = v.GetString("storage.provider")
	c.storagePath = v.GetString("storage.path")
	c.storageDSN = v.GetString("storage.dsn")

	c.vectorProvider = v.GetString("vector_store.provider")
	c.vectorPath = v.GetString("vector_store.path")
	c.vectorTarget = v.GetString("vector_store.target")
	c.vectorCollection = v.GetString("vector_store.collection")

	c.embeddingProvider = v.GetString("embedding.provider")
	c.embeddingTarget = v.GetString("embedding.target")
	c.embeddingModel = v.GetString("embedding.model")
	c.embeddingDims = v.GetUint("embedding.dimensions")

	c.llmProvider = v.GetString("llm.provider")
	c.llmTarget = v.GetString("llm.target")
	c.llmModel = v.GetString("llm.model")
	c.llmTemperature = v.GetFloat64("llm.temperature")
	c.llmMaxTokens = v.GetUint("llm.max_tokens")

	c.chunkSize = v.GetUint("ingest.chunk_size")
	c.chunkOverlap = v.GetUint("ingest.chunk_overlap")
	c.workers = v.GetUint("ingest.workers")
	c.queueSize = v.GetUint("ingest.queue_size")
	c.maxFileMB = v.GetUint("ingest.max_file_mb")
	c.uploadDir = v.GetString("ingest.upload_dir")
	c.watchDir = v.GetString("ingest.watch_dir")

	c.topK = v.GetUint("retrieval.top_k")
	c.scoreThreshold = v.GetFloat64("retrieval.score_threshold")

	c.eventsProvider = v.GetString("events.provider")
	c.eventsBrokers = v.GetString("events.brokers")
	c.eventsTopic = v.GetString("events.topic")
}

func (c *ServeCommander) run() error {
	c.logger = logger.New(logger.WithDebug(c.debug))

	ddm := dotdir.NewManager()
	dir, err := ddm.Ensure(c.configDir)
	if err != nil {
		return fmt.Errorf("resolving folio directory: %w", err)
	}
	c.applyPathDefaults(dir)

	creds, err := credentials.NewManager(c.configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	store, err := c.newDocumentStore()
	if err != nil {
		return err
	}
	defer store.Close()

	vectorDriver, err := c.newVectorDriver(creds)
	if err != nil {
		return err
	}
	defer vectorDriver.Close()

	if err := vectorDriver.Load(context.Background()); err != nil {
		return fmt.Errorf("loading vector index: %w", err)
	}

	embedder, err := c.newEmbedder(creds)
	if err != nil {
		return err
	}

	generator := c.newGenerator(creds)

	publisher, err := c.newPublisher()
	if err != nil {
		return err
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

	pool, err := ingest.NewPool(&ingest.PoolConfig{
		Ingestor:   ingestor,
		NumWorkers: c.workers,
		QueueSize:  c.queueSize,
		Logger:     c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating worker pool: %w", err)
	}
	defer pool.Close()

	server, err := api.NewServer(api.Config{
		ListenAddr:     c.listen,
		Docstore:       store,
		VectorDriver:   vectorDriver,
		Embedder:       embedder,
		Generator:      generator,
		Pool:           pool,
		Metrics:        metrics.NewAggregator(),
		Publisher:      publisher,
		UploadDir:      c.uploadDir,
		MaxFileMB:      c.maxFileMB,
		DefaultTopK:    c.topK,
		ScoreThreshold: float32(c.scoreThreshold),
		MCP:            c.mcp,
		Logger:         c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Channel to capture errors from goroutines
	errChan := make(chan error, 2)

	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	if c.watch {
		if c.watchDir == "" {
			return fmt.Errorf("--watch requires a watch directory (--watch-dir or ingest.watch_dir)")
		}

		watcher, err := ingest.NewWatcher(&ingest.WatcherConfig{
			Dir:      c.watchDir,
			Pool:     pool,
			Docstore: store,
			Logger:   c.logger,
		})
		if err != nil {
			return fmt.Errorf("creating watcher: %w", err)
		}

		c.logger.Info("watching directory", "dir", c.watchDir)

		go func() {
			if err := watcher.Run(ctx); err != nil {
				errChan <- fmt.Errorf("watcher error: %w", err)
			}
		}()
	}

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
		return server.Shutdown()
	}
}

// applyPathDefaults fills path-like settings that live under the .folio/
// directory when not configured explicitly.
func (c *ServeCommander) applyPathDefaults(dir string) {
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

	if c.uploadDir == "" {
		c.uploadDir = filepath.Join(dir, "uploads")
	}
}

func (c *ServeCommander) newDocumentStore() (docstore.Driver, error) {
	store, err := docstoreutils.NewDocumentStore(&docstoreutils.NewDocumentStoreOpts{
		ProviderType: c.storageProvider,
		Path:         c.storagePath,
		DatabaseURL:  c.storageDSN,
		Logger:       c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating document store: %w", err)
	}

	c.logger.Info("using document store",
		"provider", c.storageProvider,
	)
	return store, nil
}

func (c *ServeCommander) newVectorDriver(creds *credentials.Manager) (vector.Driver, error) {
	opts := &vectorutils.NewVectorDriverOpts{
		ProviderType: c.vectorProvider,
		Dimension:    int(c.embeddingDims),
		Path:         c.vectorPath,
		Collection:   c.vectorCollection,
		Logger:       c.logger,
	}

	if c.vectorProvider == "qdrant" {
		host, port, err := splitHostPort(c.vectorTarget)
		if err != nil {
			return nil, fmt.Errorf("invalid vector store target %q: %w", c.vectorTarget, err)
		}
		opts.Host = host
		opts.Port = port

		key, err := creds.ResolveKey("qdrant")
		if err != nil {
			return nil, fmt.Errorf("resolving qdrant credentials: %w", err)
		}
		opts.APIKey = key
		// A key implies Qdrant Cloud, which requires TLS.
		opts.UseTLS = key != ""
	}

	driver, err := vectorutils.NewVectorDriver(opts)
	if err != nil {
		return nil, fmt.Errorf("creating vector store: %w", err)
	}

	c.logger.Info("using vector store",
		"provider", c.vectorProvider,
	)
	return driver, nil
}

func (c *ServeCommander) newEmbedder(creds *credentials.Manager) (embeddings.Embedder, error) {
	key, err := creds.ResolveKey(c.embeddingProvider)
	if err != nil {
		return nil, fmt.Errorf("resolving %s credentials: %w", c.embeddingProvider, err)
	}

	if key == "" && credentials.IsSupportedProvider(c.embeddingProvider) {
		return nil, fmt.Errorf("no API key for embedding provider %q: set %s or run 'folio auth %s'",
			c.embeddingProvider,
			credentials.EnvVarForProvider(c.embeddingProvider),
			c.embeddingProvider,
		)
	}

	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: c.embeddingProvider,
		TargetURL:    c.embeddingTarget,
		Model:        c.embeddingModel,
		APIKey:       key,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	return embedder, nil
}

// newGenerator builds the answer generator. A missing key disables ask
// rather than failing the server: upload, search, and the document
// endpoints work without an LLM.
func (c *ServeCommander) newGenerator(creds *credentials.Manager) llm.Generator {
	key, err := creds.ResolveKey(c.llmProvider)
	if err != nil {
		c.logger.Warn("resolving llm credentials, ask is disabled",
			"provider", c.llmProvider,
			"error", err,
		)
		return nil
	}

	if key == "" && credentials.IsSupportedProvider(c.llmProvider) {
		c.logger.Warn("no API key for LLM provider, ask is disabled",
			"provider", c.llmProvider,
			"env", credentials.EnvVarForProvider(c.llmProvider),
		)
		return nil
	}

	generator, err := provider.NewGenerator(&provider.NewGeneratorOpts{
		ProviderType: c.llmProvider,
		TargetURL:    c.llmTarget,
		Model:        c.llmModel,
		APIKey:       key,
		Temperature:  c.llmTemperature,
		MaxTokens:    int(c.llmMaxTokens),
	})
	if err != nil {
		c.logger.Warn("creating generator, ask is disabled",
			"error", err,
		)
		return nil
	}

	return generator
}

func (c *ServeCommander) newPublisher() (eventstream.Publisher, error) {
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
		return nil, fmt.Errorf("creating event publisher: %w", err)
	}

	return publisher, nil
}

// splitHostPort parses a host:port target, tolerating a bare host so the
// driver's default port applies.
func splitHostPort(target string) (string, int, error) {
	if !strings.Contains(target, ":") {
		return target, 0, nil
	}

	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		return "", 0, err
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port %q", portStr)
	}

	return host, port, nil
}
