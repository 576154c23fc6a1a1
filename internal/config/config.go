// Package config loads service configuration from YAML and environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/bull/pdf-ingest/internal/fetch"
)

// EnvPrefix marks environment overrides. A double underscore separates
// nested keys: INGEST_INDEX__BACKEND sets index.backend.
const EnvPrefix = "INGEST_"

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("accessing config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.WorkDir == "" {
		return fmt.Errorf("work_dir is required")
	}

	switch c.Index.Backend {
	case BackendChromem:
	case BackendQdrant:
		if c.Index.Qdrant.Host == "" {
			return fmt.Errorf("index.qdrant.host is required for the qdrant backend")
		}
		if c.Index.Qdrant.Port <= 0 || c.Index.Qdrant.Port > 65535 {
			return fmt.Errorf("invalid index.qdrant.port %d", c.Index.Qdrant.Port)
		}
	default:
		return fmt.Errorf("invalid index.backend %q: must be one of chromem, qdrant", c.Index.Backend)
	}

	switch c.Embedding.Provider {
	case EmbeddingOpenAI, EmbeddingOllama:
	default:
		return fmt.Errorf("invalid embedding.provider %q: must be one of openai, ollama", c.Embedding.Provider)
	}
	if c.Embedding.Dimension < 0 {
		return fmt.Errorf("embedding.dimension must be non-negative")
	}

	switch c.Jobs.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("invalid jobs.driver %q: must be one of sqlite, postgres", c.Jobs.Driver)
	}
	if c.Jobs.DSN == "" {
		return fmt.Errorf("jobs.dsn is required")
	}
	if c.Jobs.Workers < 1 {
		return fmt.Errorf("jobs.workers must be at least 1")
	}

	if c.Ingest.BatchSize < 1 {
		return fmt.Errorf("ingest.batch_size must be at least 1")
	}
	if c.Ingest.Concurrency < 0 {
		return fmt.Errorf("ingest.concurrency must be non-negative")
	}
	if c.Ingest.ChunkSize < 1 {
		return fmt.Errorf("ingest.chunk_size must be at least 1")
	}
	if c.Ingest.ChunkOverlap < 0 {
		return fmt.Errorf("ingest.chunk_overlap must be non-negative")
	}

	if c.Fetch.MaxBytes < 0 {
		return fmt.Errorf("fetch.max_bytes must be non-negative")
	}
	if _, err := fetch.ParseAllowList(c.Fetch.AllowCIDRs); err != nil {
		return err
	}
	return nil
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
