package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bull/pdf-ingest/internal/document"
	"github.com/bull/pdf-ingest/internal/storage"
)

// DefaultBatchSize is the number of segments written per upsert call.
const DefaultBatchSize = 64

// ProgressFunc receives the number of segments written so far and the total.
type ProgressFunc func(done, total int)

// Upserter writes candidates to an index in fixed-size, ordered batches.
type Upserter struct {
	index     storage.Index
	batchSize int
	progress  ProgressFunc
	logger    *slog.Logger
}

// NewUpserter creates an Upserter. A non-positive batchSize uses DefaultBatchSize.
func NewUpserter(index storage.Index, batchSize int, logger *slog.Logger) *Upserter {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Upserter{index: index, batchSize: batchSize, logger: logger}
}

// OnProgress registers fn to be called after every committed batch.
func (u *Upserter) OnProgress(fn ProgressFunc) {
	u.progress = fn
}

// Upsert writes candidates batch by batch and returns how many were written.
// The first failing batch stops the run; earlier batches stay committed. The
// index is flushed after the last batch when it supports flushing.
func (u *Upserter) Upsert(ctx context.Context, candidates []Candidate) (int, error) {
	total := len(candidates)
	if total == 0 {
		return 0, nil
	}

	start := time.Now()
	written := 0
	for i := 0; i < total; i += u.batchSize {
		end := min(i+u.batchSize, total)
		batch := candidates[i:end]

		ids := make([]string, len(batch))
		segs := make([]document.Segment, len(batch))
		for j, c := range batch {
			ids[j] = c.ID
			segs[j] = c.Segment
		}

		if err := u.index.Upsert(ctx, ids, segs); err != nil {
			return written, fmt.Errorf("upsert batch %d-%d: %w", i, end, err)
		}
		written += len(batch)

		u.logger.Info("Upserted batch",
			"processed", written,
			"total", total,
			"elapsed", time.Since(start).Round(time.Millisecond),
		)
		if u.progress != nil {
			u.progress(written, total)
		}
	}

	if f, ok := u.index.(storage.Flusher); ok {
		if err := f.Flush(ctx); err != nil {
			return written, fmt.Errorf("flush index: %w", err)
		}
	}

	return written, nil
}
