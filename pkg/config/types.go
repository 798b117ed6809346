package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent folio configuration stored as config.toml
// in the .folio/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Storage     StorageConfig     `toml:"storage"`
	API         APIConfig         `toml:"api"`
	Client      ClientConfig      `toml:"client"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	LLM         LLMConfig         `toml:"llm"`
	Ingest      IngestConfig      `toml:"ingest"`
	Retrieval   RetrievalConfig   `toml:"retrieval"`
	Events      EventsConfig      `toml:"events"`
}

// StorageConfig holds document store settings.
type StorageConfig struct {
	// Provider selects the docstore driver: jsonfile, sqlite, postgres,
	// libsql, or inmemory.
	Provider string `toml:"provider,omitempty"`

	// Path is the JSON file for jsonfile and the database file for sqlite.
	// Empty means a default under the .folio/ directory.
	Path string `toml:"path,omitempty"`

	// DSN is the connection string for postgres and libsql.
	DSN string `toml:"dsn,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to a running
// API server (e.g. folio ask, folio search, folio chat).
// The value is a full URL (scheme + host + port).
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`
}

// VectorStoreConfig holds vector index settings.
type VectorStoreConfig struct {
	// Provider selects the vector driver: flat, sqlitevec, or qdrant.
	Provider string `toml:"provider,omitempty"`

	// Path is the index directory for flat and the database file for
	// sqlitevec. Empty means a default under the .folio/ directory.
	Path string `toml:"path,omitempty"`

	// Target is the qdrant address as host:port.
	Target string `toml:"target,omitempty"`

	// Collection is the qdrant collection name.
	Collection string `toml:"collection,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
}

// LLMConfig holds answer generation settings.
type LLMConfig struct {
	Provider    string  `toml:"provider,omitempty"`
	Target      string  `toml:"target,omitempty"`
	Model       string  `toml:"model,omitempty"`
	Temperature float64 `toml:"temperature,omitempty"`
	MaxTokens   uint    `toml:"max_tokens,omitempty"`
}

// IngestConfig holds ingestion pipeline settings.
type IngestConfig struct {
	ChunkSize    uint   `toml:"chunk_size,omitempty"`
	ChunkOverlap uint   `toml:"chunk_overlap,omitempty"`
	Workers      uint   `toml:"workers,omitempty"`
	QueueSize    uint   `toml:"queue_size,omitempty"`
	MaxFileMB    uint   `toml:"max_file_mb,omitempty"`
	UploadDir    string `toml:"upload_dir,omitempty"`
	WatchDir     string `toml:"watch_dir,omitempty"`
}

// RetrievalConfig holds retrieval settings.
type RetrievalConfig struct {
	TopK           uint    `toml:"top_k,omitempty"`
	ScoreThreshold float64 `toml:"score_threshold,omitempty"`
}

// EventsConfig holds document event publishing settings.
type EventsConfig struct {
	// Provider selects the publisher: nop or kafka.
	Provider string `toml:"provider,omitempty"`

	// Brokers is a comma-separated list of kafka broker addresses.
	Brokers string `toml:"brokers,omitempty"`

	// Topic is the kafka topic document events are published to.
	Topic string `toml:"topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// uintVal and floatVal format numeric config values for display,
// rendering unset (zero) values as empty strings.
func uintVal(n uint) string {
	if n == 0 {
		return ""
	}
	return strconv.FormatUint(uint64(n), 10)
}

func floatVal(f float64) string {
	if f == 0 {
		return ""
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func parseUintVal(key, v string) (uint, error) {
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return uint(n), nil
}

func parseFloatVal(key, v string) (float64, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return f, nil
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.provider": {
		get: func(c *Config) string { return c.Storage.Provider },
		set: func(c *Config, v string) error { c.Storage.Provider = v; return nil },
	},
	"storage.path": {
		get: func(c *Config) string { return c.Storage.Path },
		set: func(c *Config, v string) error { c.Storage.Path = v; return nil },
	},
	"storage.dsn": {
		get: func(c *Config) string { return c.Storage.DSN },
		set: func(c *Config, v string) error { c.Storage.DSN = v; return nil },
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"client.api_target": {
		get: func(c *Config) string { return c.Client.APITarget },
		set: func(c *Config, v string) error { c.Client.APITarget = v; return nil },
	},
	"vector_store.provider": {
		get: func(c *Config) string { return c.VectorStore.Provider },
		set: func(c *Config, v string) error { c.VectorStore.Provider = v; return nil },
	},
	"vector_store.path": {
		get: func(c *Config) string { return c.VectorStore.Path },
		set: func(c *Config, v string) error { c.VectorStore.Path = v; return nil },
	},
	"vector_store.target": {
		get: func(c *Config) string { return c.VectorStore.Target },
		set: func(c *Config, v string) error { c.VectorStore.Target = v; return nil },
	},
	"vector_store.collection": {
		get: func(c *Config) string { return c.VectorStore.Collection },
		set: func(c *Config, v string) error { c.VectorStore.Collection = v; return nil },
	},
	"embedding.provider": {
		get: func(c *Config) string { return c.Embedding.Provider },
		set: func(c *Config, v string) error { c.Embedding.Provider = v; return nil },
	},
	"embedding.target": {
		get: func(c *Config) string { return c.Embedding.Target },
		set: func(c *Config, v string) error { c.Embedding.Target = v; return nil },
	},
	"embedding.model": {
		get: func(c *Config) string { return c.Embedding.Model },
		set: func(c *Config, v string) error { c.Embedding.Model = v; return nil },
	},
	"embedding.dimensions": {
		get: func(c *Config) string { return uintVal(c.Embedding.Dimensions) },
		set: func(c *Config, v string) error {
			n, err := parseUintVal("embedding.dimensions", v)
			if err != nil {
				return err
			}
			c.Embedding.Dimensions = n
			return nil
		},
	},
	"llm.provider": {
		get: func(c *Config) string { return c.LLM.Provider },
		set: func(c *Config, v string) error { c.LLM.Provider = v; return nil },
	},
	"llm.target": {
		get: func(c *Config) string { return c.LLM.Target },
		set: func(c *Config, v string) error { c.LLM.Target = v; return nil },
	},
	"llm.model": {
		get: func(c *Config) string { return c.LLM.Model },
		set: func(c *Config, v string) error { c.LLM.Model = v; return nil },
	},
	"llm.temperature": {
		get: func(c *Config) string { return floatVal(c.LLM.Temperature) },
		set: func(c *Config, v string) error {
			f, err := parseFloatVal("llm.temperature", v)
			if err != nil {
				return err
			}
			c.LLM.Temperature = f
			return nil
		},
	},
	"llm.max_tokens": {
		get: func(c *Config) string { return uintVal(c.LLM.MaxTokens) },
		set: func(c *Config, v string) error {
			n, err := parseUintVal("llm.max_tokens", v)
			if err != nil {
				return err
			}
			c.LLM.MaxTokens = n
			return nil
		},
	},
	"ingest.chunk_size": {
		get: func(c *Config) string { return uintVal(c.Ingest.ChunkSize) },
		set: func(c *Config, v string) error {
			n, err := parseUintVal("ingest.chunk_size", v)
			if err != nil {
				return err
			}
			c.Ingest.ChunkSize = n
			return nil
		},
	},
	"ingest.chunk_overlap": {
		get: func(c *Config) string { return uintVal(c.Ingest.ChunkOverlap) },
		set: func(c *Config, v string) error {
			n, err := parseUintVal("ingest.chunk_overlap", v)
			if err != nil {
				return err
			}
			c.Ingest.ChunkOverlap = n
			return nil
		},
	},
	"ingest.workers": {
		get: func(c *Config) string { return uintVal(c.Ingest.Workers) },
		set: func(c *Config, v string) error {
			n, err := parseUintVal("ingest.workers", v)
			if err != nil {
				return err
			}
			c.Ingest.Workers = n
			return nil
		},
	},
	"ingest.queue_size": {
		get: func(c *Config) string { return uintVal(c.Ingest.QueueSize) },
		set: func(c *Config, v string) error {
			n, err := parseUintVal("ingest.queue_size", v)
			if err != nil {
				return err
			}
			c.Ingest.QueueSize = n
			return nil
		},
	},
	"ingest.max_file_mb": {
		get: func(c *Config) string { return uintVal(c.Ingest.MaxFileMB) },
		set: func(c *Config, v string) error {
			n, err := parseUintVal("ingest.max_file_mb", v)
			if err != nil {
				return err
			}
			c.Ingest.MaxFileMB = n
			return nil
		},
	},
	"ingest.upload_dir": {
		get: func(c *Config) string { return c.Ingest.UploadDir },
		set: func(c *Config, v string) error { c.Ingest.UploadDir = v; return nil },
	},
	"ingest.watch_dir": {
		get: func(c *Config) string { return c.Ingest.WatchDir },
		set: func(c *Config, v string) error { c.Ingest.WatchDir = v; return nil },
	},
	"retrieval.top_k": {
		get: func(c *Config) string { return uintVal(c.Retrieval.TopK) },
		set: func(c *Config, v string) error {
			n, err := parseUintVal("retrieval.top_k", v)
			if err != nil {
				return err
			}
			c.Retrieval.TopK = n
			return nil
		},
	},
	"retrieval.score_threshold": {
		get: func(c *Config) string { return floatVal(c.Retrieval.ScoreThreshold) },
		set: func(c *Config, v string) error {
			f, err := parseFloatVal("retrieval.score_threshold", v)
			if err != nil {
				return err
			}
			c.Retrieval.ScoreThreshold = f
			return nil
		},
	},
	"events.provider": {
		get: func(c *Config) string { return c.Events.Provider },
		set: func(c *Config, v string) error { c.Events.Provider = v; return nil },
	},
	"events.brokers": {
		get: func(c *Config) string { return c.Events.Brokers },
		set: func(c *Config, v string) error { c.Events.Brokers = v; return nil },
	},
	"events.topic": {
		get: func(c *Config) string { return c.Events.Topic },
		set: func(c *Config, v string) error { c.Events.Topic = v; return nil },
	},
}
