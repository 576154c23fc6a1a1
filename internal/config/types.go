package config

import "time"

// Backend selects the vector index implementation.
type Backend string

const (
	BackendChromem Backend = "chromem"
	BackendQdrant  Backend = "qdrant"
)

// EmbeddingProvider selects the embedding service.
type EmbeddingProvider string

const (
	EmbeddingOpenAI EmbeddingProvider = "openai"
	EmbeddingOllama EmbeddingProvider = "ollama"
)

// JobDriver selects the job store database.
type JobDriver string

const (
	DriverSQLite   JobDriver = "sqlite"
	DriverPostgres JobDriver = "postgres"
)

// Config is the top-level configuration, corresponding to ingest.yml.
type Config struct {
	WorkDir   string          `yaml:"work_dir" koanf:"work_dir"`
	LogLevel  string          `yaml:"log_level" koanf:"log_level"`
	HTTP      HTTPConfig      `yaml:"http" koanf:"http"`
	Index     IndexConfig     `yaml:"index" koanf:"index"`
	Embedding EmbeddingConfig `yaml:"embedding" koanf:"embedding"`
	Jobs      JobsConfig      `yaml:"jobs" koanf:"jobs"`
	Ingest    IngestConfig    `yaml:"ingest" koanf:"ingest"`
	Fetch     FetchConfig     `yaml:"fetch" koanf:"fetch"`
}

// HTTPConfig holds API server settings.
type HTTPConfig struct {
	Addr        string   `yaml:"addr" koanf:"addr"`
	CORSOrigins []string `yaml:"cors_origins" koanf:"cors_origins"`
}

// IndexConfig holds vector index settings.
type IndexConfig struct {
	Backend    Backend      `yaml:"backend" koanf:"backend"`
	Collection string       `yaml:"collection" koanf:"collection"`
	Path       string       `yaml:"path" koanf:"path"`
	Qdrant     QdrantConfig `yaml:"qdrant" koanf:"qdrant"`
}

// QdrantConfig holds Qdrant connection settings.
type QdrantConfig struct {
	Host   string `yaml:"host" koanf:"host"`
	Port   int    `yaml:"port" koanf:"port"`
	APIKey string `yaml:"api_key,omitempty" koanf:"api_key"`
	UseTLS bool   `yaml:"use_tls" koanf:"use_tls"`
}

// EmbeddingConfig holds embedding provider settings. An empty APIKey falls
// back to OPENAI_API_KEY.
type EmbeddingConfig struct {
	Provider  EmbeddingProvider `yaml:"provider" koanf:"provider"`
	Model     string            `yaml:"model" koanf:"model"`
	Version   string            `yaml:"version" koanf:"version"`
	Dimension int               `yaml:"dimension" koanf:"dimension"`
	BaseURL   string            `yaml:"base_url" koanf:"base_url"`
	APIKey    string            `yaml:"api_key,omitempty" koanf:"api_key"`
	BatchSize int               `yaml:"batch_size" koanf:"batch_size"`
}

// JobsConfig holds job store and worker settings.
type JobsConfig struct {
	Driver  JobDriver     `yaml:"driver" koanf:"driver"`
	DSN     string        `yaml:"dsn" koanf:"dsn"`
	Workers int           `yaml:"workers" koanf:"workers"`
	Timeout time.Duration `yaml:"timeout" koanf:"timeout"`
	Buffer  int           `yaml:"buffer" koanf:"buffer"`
}

// IngestConfig holds pipeline settings.
type IngestConfig struct {
	BatchSize    int    `yaml:"batch_size" koanf:"batch_size"`
	Concurrency  int    `yaml:"concurrency" koanf:"concurrency"`
	ChunkSize    int    `yaml:"chunk_size" koanf:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap" koanf:"chunk_overlap"`
	LowerCase    bool   `yaml:"lower_case" koanf:"lower_case"`
	Lang         string `yaml:"lang" koanf:"lang"`
}

// FetchConfig holds remote download settings.
type FetchConfig struct {
	MaxBytes   int64    `yaml:"max_bytes" koanf:"max_bytes"`
	AllowCIDRs []string `yaml:"allow_cidrs" koanf:"allow_cidrs"`
	S3         S3Config `yaml:"s3" koanf:"s3"`
}

// S3Config holds credentials for s3:// inputs. Empty keys use the default
// AWS credential chain.
type S3Config struct {
	Region          string `yaml:"region" koanf:"region"`
	Endpoint        string `yaml:"endpoint,omitempty" koanf:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" koanf:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" koanf:"secret_access_key"`
}
