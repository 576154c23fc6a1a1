// Package app assembles the ingestion services from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"path/filepath"

	"github.com/bull/pdf-ingest/internal/config"
	"github.com/bull/pdf-ingest/internal/document"
	"github.com/bull/pdf-ingest/internal/embedding"
	"github.com/bull/pdf-ingest/internal/extract"
	"github.com/bull/pdf-ingest/internal/fetch"
	"github.com/bull/pdf-ingest/internal/indexer"
	"github.com/bull/pdf-ingest/internal/jobs"
	"github.com/bull/pdf-ingest/internal/storage"
	"github.com/bull/pdf-ingest/internal/tasks"
)

// App holds the wired services.
type App struct {
	Config   *config.Config
	Embedder embedding.Embedder
	Index    storage.Index
	Pipeline *indexer.Pipeline
	Fetcher  *fetch.Fetcher
	Sources  *fetch.Mux
	Store    jobs.Store
	Queue    *jobs.Queue

	closers []func() error
	logger  *slog.Logger
}

// New builds the embedder, index and pipeline. The job store and queue are
// opened separately with OpenJobs so one-shot commands can skip them.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	allow, err := fetch.ParseAllowList(cfg.Fetch.AllowCIDRs)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	embedder, err := NewEmbedder(cfg.Embedding)
	if err != nil {
		return nil, err
	}
	a.Embedder = embedder

	index, err := a.openIndex(ctx)
	if err != nil {
		return nil, err
	}
	a.Index = index

	splitter := extract.NewSplitter(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	normalizer := document.NewNormalizer()
	normalizer.LowerCase = cfg.Ingest.LowerCase
	normalizer.Lang = cfg.Ingest.Lang
	normalizer.EmbeddingModel = embedder.Model()
	normalizer.EmbeddingModelVersion = cfg.Embedding.Version

	a.Pipeline = indexer.NewPipeline(extract.NewRouter(splitter, logger), index, indexer.Options{
		BatchSize:   cfg.Ingest.BatchSize,
		Concurrency: cfg.Ingest.Concurrency,
		Normalizer:  normalizer,
	}, logger)

	a.Fetcher = fetch.NewFetcher(fetch.NewGuard(net.DefaultResolver, allow...), cfg.WorkDir, cfg.Fetch.MaxBytes, logger)
	a.Sources = &fetch.Mux{HTTP: a.Fetcher}

	s3, s3Err := fetch.NewS3Downloader(ctx, fetch.S3Config{
		Region:          cfg.Fetch.S3.Region,
		AccessKeyID:     cfg.Fetch.S3.AccessKeyID,
		SecretAccessKey: cfg.Fetch.S3.SecretAccessKey,
		Endpoint:        cfg.Fetch.S3.Endpoint,
	}, cfg.WorkDir, logger)
	if s3Err != nil {
		logger.Warn("S3 sources disabled", "error", s3Err)
	} else {
		a.Sources.S3 = s3
	}

	return a, nil
}

// NewEmbedder builds the configured embedding provider.
func NewEmbedder(cfg config.EmbeddingConfig) (embedding.Embedder, error) {
	switch cfg.Provider {
	case config.EmbeddingOllama:
		return embedding.NewOllamaEmbedder(cfg.Model, cfg.Dimension, cfg.BaseURL), nil
	case config.EmbeddingOpenAI, "":
		client, err := embedding.NewClient(cfg.APIKey)
		if err != nil {
			return nil, fmt.Errorf("create embedding client: %w", err)
		}
		return embedding.NewOpenAIEmbedder(client, cfg.Model, cfg.Dimension, cfg.BatchSize), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

func (a *App) openIndex(ctx context.Context) (storage.Index, error) {
	cfg := a.Config.Index
	switch cfg.Backend {
	case config.BackendQdrant:
		idx, err := storage.NewQdrantIndex(ctx, storage.QdrantConfig{
			Host:       cfg.Qdrant.Host,
			Port:       cfg.Qdrant.Port,
			APIKey:     cfg.Qdrant.APIKey,
			UseTLS:     cfg.Qdrant.UseTLS,
			Collection: cfg.Collection,
		}, a.Embedder, a.logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, idx.Close)
		return idx, nil
	default:
		return storage.NewChromemIndex(cfg.Path, cfg.Collection, a.Embedder, a.logger)
	}
}

// OpenStore opens the configured job store.
func OpenStore(ctx context.Context, cfg config.JobsConfig) (*jobs.SQLStore, error) {
	var (
		store *jobs.SQLStore
		err   error
	)
	switch cfg.Driver {
	case config.DriverPostgres:
		store, err = jobs.OpenPostgres(ctx, cfg.DSN)
	default:
		store, err = jobs.OpenSQLite(filepath.Clean(cfg.DSN))
	}
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}
	return store, nil
}

// OpenJobs opens the job store and creates the queue with the ingest and
// fetch tasks registered. Workers are started by the caller.
func (a *App) OpenJobs(ctx context.Context) error {
	store, err := OpenStore(ctx, a.Config.Jobs)
	if err != nil {
		return err
	}
	a.Store = store
	a.closers = append(a.closers, store.Close)

	a.Queue = jobs.NewQueue(store, jobs.QueueOptions{
		Buffer:     a.Config.Jobs.Buffer,
		JobTimeout: a.Config.Jobs.Timeout,
	}, a.logger)
	tasks.Register(a.Queue, a.Pipeline, a.Sources, a.logger)
	return nil
}

// Flush persists the index if it buffers writes.
func (a *App) Flush(ctx context.Context) error {
	if f, ok := a.Index.(storage.Flusher); ok {
		return f.Flush(ctx)
	}
	return nil
}

// Close releases the index connection and job store.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}
