package config

import (
	"time"

	"github.com/bull/pdf-ingest/internal/embedding"
	"github.com/bull/pdf-ingest/internal/extract"
	"github.com/bull/pdf-ingest/internal/fetch"
	"github.com/bull/pdf-ingest/internal/indexer"
	"github.com/bull/pdf-ingest/internal/storage"
)

// DefaultPath is the config file read when none is given.
const DefaultPath = "ingest.yml"

// DefaultConfig returns a Config with sensible defaults: a local chromem
// index, OpenAI embeddings and a SQLite job store under .ingest/.
func DefaultConfig() *Config {
	return &Config{
		WorkDir:  ".ingest/files",
		LogLevel: "info",
		HTTP: HTTPConfig{
			Addr:        ":8080",
			CORSOrigins: []string{"*"},
		},
		Index: IndexConfig{
			Backend:    BackendChromem,
			Collection: storage.DefaultCollection,
			Path:       ".ingest/index.gob",
			Qdrant: QdrantConfig{
				Host: "localhost",
				Port: 6334,
			},
		},
		// Model and dimension default per provider.
		Embedding: EmbeddingConfig{
			Provider:  EmbeddingOpenAI,
			BatchSize: embedding.DefaultBatchSize,
		},
		Jobs: JobsConfig{
			Driver:  DriverSQLite,
			DSN:     ".ingest/jobs.db",
			Workers: 2,
			Timeout: 30 * time.Minute,
			Buffer:  256,
		},
		Ingest: IngestConfig{
			BatchSize:    indexer.DefaultBatchSize,
			Concurrency:  indexer.DefaultConcurrency,
			ChunkSize:    extract.DefaultChunkSize,
			ChunkOverlap: extract.DefaultChunkOverlap,
			Lang:         "en",
		},
		Fetch: FetchConfig{
			MaxBytes: fetch.DefaultMaxBytes,
			S3: S3Config{
				Region: "us-east-1",
			},
		},
	}
}
