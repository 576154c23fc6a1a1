package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/bull/pdf-ingest/internal/document"
	"github.com/bull/pdf-ingest/internal/embedding"
)

// ChromemIndex is an embedded index backed by chromem-go. Writes stay in
// memory until Flush exports the database to its file.
type ChromemIndex struct {
	mu         sync.RWMutex
	db         *chromem.DB
	collection *chromem.Collection
	name       string
	path       string
	embedder   embedding.Embedder
	embedFunc  chromem.EmbeddingFunc
	logger     *slog.Logger
}

// NewChromemIndex opens the index stored at path, or an empty one when the
// file does not exist yet. An empty path keeps the index in memory only.
func NewChromemIndex(path, collection string, embedder embedding.Embedder, logger *slog.Logger) (*ChromemIndex, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if collection == "" {
		collection = DefaultCollection
	}

	db := chromem.NewDB()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := db.ImportFromFile(path, ""); err != nil {
				return nil, fmt.Errorf("%w: import %s: %v", ErrIndexUnavailable, path, err)
			}
			logger.Info("Loaded index", "path", path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: stat %s: %v", ErrIndexUnavailable, path, err)
		}
	}

	ef := embedding.ToChromemFunc(embedder)
	col, err := db.GetOrCreateCollection(collection, nil, ef)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	return &ChromemIndex{
		db:         db,
		collection: col,
		name:       collection,
		path:       path,
		embedder:   embedder,
		embedFunc:  ef,
		logger:     logger,
	}, nil
}

func (s *ChromemIndex) col() *chromem.Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collection
}

func (s *ChromemIndex) Exists(ctx context.Context, ids []string) (map[string]bool, error) {
	col := s.col()
	found := make(map[string]bool)
	for _, id := range ids {
		if _, err := col.GetByID(ctx, id); err == nil {
			found[id] = true
		}
	}
	return found, nil
}

func (s *ChromemIndex) Upsert(ctx context.Context, ids []string, segments []document.Segment) error {
	if len(ids) != len(segments) {
		return fmt.Errorf("%w: %d ids, %d segments", ErrLengthMismatch, len(ids), len(segments))
	}
	if len(ids) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(ids))
	for i, id := range ids {
		meta := segments[i].StringMetadata()
		meta[document.KeyDocID] = id
		docs[i] = chromem.Document{
			ID:       id,
			Content:  segments[i].Content,
			Metadata: meta,
		}
	}

	if err := s.col().AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("%w: chromem add documents: %w", ErrIndexUnavailable, err)
	}
	return nil
}

func (s *ChromemIndex) Count(_ context.Context) (int, error) {
	return s.col().Count(), nil
}

func (s *ChromemIndex) Query(ctx context.Context, text string, k int) ([]Hit, error) {
	col := s.col()
	if k <= 0 {
		k = 5
	}

	// chromem-go requires nResults <= collection size.
	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	results, err := col.Query(ctx, text, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: chromem query: %w", ErrIndexUnavailable, err)
	}

	hits := make([]Hit, len(results))
	for i, r := range results {
		hits[i] = Hit{
			ID:       r.ID,
			Content:  r.Content,
			Metadata: r.Metadata,
			Score:    float64(r.Similarity),
		}
	}
	return hits, nil
}

// DeleteCollection drops the collection and recreates it empty.
func (s *ChromemIndex) DeleteCollection(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DeleteCollection(s.name); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	col, err := s.db.GetOrCreateCollection(s.name, nil, s.embedFunc)
	if err != nil {
		return fmt.Errorf("recreate collection: %w", err)
	}
	s.collection = col
	s.logger.Info("Deleted collection", "collection", s.name)
	return nil
}

// Flush exports the database to its file. It is a no-op for in-memory indexes.
func (s *ChromemIndex) Flush(_ context.Context) error {
	if s.path == "" {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	if err := s.db.ExportToFile(s.path, true, ""); err != nil {
		return fmt.Errorf("export index: %w", err)
	}
	s.logger.Debug("Flushed index", "path", s.path, "count", s.collection.Count())
	return nil
}

// Info reports backend, collection and size.
func (s *ChromemIndex) Info(ctx context.Context) (*Info, error) {
	count, _ := s.Count(ctx)
	return &Info{Backend: "chromem", Collection: s.name, Count: count, Model: s.embedder.Model()}, nil
}
