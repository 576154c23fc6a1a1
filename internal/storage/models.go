package storage

import (
	"context"

	"github.com/bull/pdf-ingest/internal/document"
)

// DefaultCollection is the collection used when none is configured.
const DefaultCollection = "pdf_documents"

// Index is an embedding-backed store keyed by canonical segment ID.
// Upsert must be idempotent: writing an existing ID replaces the entry.
type Index interface {
	// Exists reports which of ids are already stored.
	Exists(ctx context.Context, ids []string) (map[string]bool, error)
	// Upsert writes segments under the matching ids.
	Upsert(ctx context.Context, ids []string, segments []document.Segment) error
	Count(ctx context.Context) (int, error)
	// Query returns up to k stored segments nearest to text.
	Query(ctx context.Context, text string, k int) ([]Hit, error)
	// DeleteCollection drops every stored segment and leaves an empty
	// collection ready for writes.
	DeleteCollection(ctx context.Context) error
}

// Flusher is implemented by indexes that buffer writes and need an explicit
// persist step.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Hit is a single query result.
type Hit struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
	Score    float64           `json:"score"`
}

// Info describes an index for status reporting.
type Info struct {
	Backend    string `json:"backend"`
	Collection string `json:"collection"`
	Count      int    `json:"count"`
	Model      string `json:"embedding_model"`
}

// Describer is implemented by indexes that can report their status.
type Describer interface {
	Info(ctx context.Context) (*Info, error)
}
