package config

const (
	defaultStorageProvider = "jsonfile"

	defaultAPIListen       = ":8081"
	defaultClientAPITarget = "http://localhost:8081"

	defaultVectorProvider   = "flat"
	defaultVectorCollection = "folio_chunks"

	defaultEmbeddingProvider   = "gemini"
	defaultEmbeddingModel      = "models/embedding-001"
	defaultEmbeddingDimensions = 768

	defaultLLMProvider    = "gemini"
	defaultLLMModel       = "gemini-1.5-flash"
	defaultLLMTemperature = 0.3
	defaultLLMMaxTokens   = 1024

	defaultChunkSize       = 512
	defaultChunkOverlap    = 50
	defaultIngestWorkers   = 3
	defaultIngestQueueSize = 256
	defaultIngestMaxFileMB = 10

	defaultRetrievalTopK           = 5
	defaultRetrievalScoreThreshold = 0.3

	defaultEventsProvider = "nop"
	defaultEventsTopic    = "folio.documents"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values. Path-like fields
// (storage.path, vector_store.path, ingest.upload_dir) default to empty so
// callers can resolve them under the .folio/ directory.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Provider: defaultStorageProvider,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
		VectorStore: VectorStoreConfig{
			Provider:   defaultVectorProvider,
			Collection: defaultVectorCollection,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		LLM: LLMConfig{
			Provider:    defaultLLMProvider,
			Model:       defaultLLMModel,
			Temperature: defaultLLMTemperature,
			MaxTokens:   defaultLLMMaxTokens,
		},
		Ingest: IngestConfig{
			ChunkSize:    defaultChunkSize,
			ChunkOverlap: defaultChunkOverlap,
			Workers:      defaultIngestWorkers,
			QueueSize:    defaultIngestQueueSize,
			MaxFileMB:    defaultIngestMaxFileMB,
		},
		Retrieval: RetrievalConfig{
			TopK:           defaultRetrievalTopK,
			ScoreThreshold: defaultRetrievalScoreThreshold,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
	}
}
