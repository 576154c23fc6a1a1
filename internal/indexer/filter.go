package indexer

import (
	"context"
	"log/slog"

	"github.com/bull/pdf-ingest/internal/document"
	"github.com/bull/pdf-ingest/internal/storage"
)

// Candidate is a normalized segment paired with its canonical ID.
type Candidate struct {
	ID      string
	Segment document.Segment
}

// FilterNew drops candidates whose ID is already stored or repeats an earlier
// candidate. Order is preserved and the first occurrence wins. The index is
// consulted once; if that check fails every candidate is treated as new and
// the upsert stays safe because writes are keyed by ID.
func FilterNew(ctx context.Context, index storage.Index, candidates []Candidate, logger *slog.Logger) ([]Candidate, int) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(candidates) == 0 {
		return nil, 0
	}

	ids := make([]string, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		ids = append(ids, c.ID)
	}

	existing, err := index.Exists(ctx, ids)
	if err != nil {
		logger.Warn("Existence check failed, treating all segments as new",
			"candidates", len(ids), "error", err)
		existing = nil
	}

	kept := make([]Candidate, 0, len(ids))
	emitted := make(map[string]bool, len(ids))
	for _, c := range candidates {
		if existing[c.ID] || emitted[c.ID] {
			continue
		}
		emitted[c.ID] = true
		kept = append(kept, c)
	}

	return kept, len(candidates) - len(kept)
}
