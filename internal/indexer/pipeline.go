package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/bull/pdf-ingest/internal/document"
	"github.com/bull/pdf-ingest/internal/extract"
	"github.com/bull/pdf-ingest/internal/storage"
)

// ErrNoInput is returned when an ingestion is requested without paths.
var ErrNoInput = errors.New("no input paths")

// DefaultConcurrency bounds parallel extraction within one ingestion.
const DefaultConcurrency = 4

// maintenanceWeight is the full weight of the maintenance semaphore. An
// ingestion holds one unit; Rebuild holds all of them.
const maintenanceWeight = 1 << 20

// Result contains statistics about an ingestion.
type Result struct {
	Inserted          int           `json:"inserted"`
	SkippedDuplicates int           `json:"skipped_duplicates"`
	NoDocuments       bool          `json:"no_documents"`
	Segments          int           `json:"segments"`
	FailedPaths       []FailedPath  `json:"failed_paths,omitempty"`
	Duration          time.Duration `json:"duration"`
}

// FailedPath represents an input that could not be extracted.
type FailedPath struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Options tunes a Pipeline. Zero values use the defaults.
type Options struct {
	BatchSize   int
	Concurrency int
	Normalizer  *document.Normalizer
}

// Pipeline turns input files into deduplicated index entries.
type Pipeline struct {
	extractor   extract.Extractor
	index       storage.Index
	normalizer  *document.Normalizer
	upserter    *Upserter
	concurrency int
	logger      *slog.Logger

	// maintenance is held shared by ingestions and exclusively by Rebuild.
	// Waiters are served in order, so a pending rebuild holds back new
	// ingestions.
	maintenance *semaphore.Weighted
}

// NewPipeline creates an ingestion pipeline over the given extractor and index.
func NewPipeline(extractor extract.Extractor, index storage.Index, opts Options, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Normalizer == nil {
		opts.Normalizer = document.NewNormalizer()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	return &Pipeline{
		extractor:   extractor,
		index:       index,
		normalizer:  opts.Normalizer,
		upserter:    NewUpserter(index, opts.BatchSize, logger),
		concurrency: opts.Concurrency,
		logger:      logger,
		maintenance: semaphore.NewWeighted(maintenanceWeight),
	}
}

// Index returns the index the pipeline writes to.
func (p *Pipeline) Index() storage.Index {
	return p.index
}

// OnProgress registers a callback for batch progress.
func (p *Pipeline) OnProgress(fn ProgressFunc) {
	p.upserter.OnProgress(fn)
}

// Ingest extracts, normalizes, deduplicates and upserts the given paths.
// Paths that fail extraction are reported in the result without failing the
// run. Re-running with the same inputs inserts nothing new.
func (p *Pipeline) Ingest(ctx context.Context, paths []string) (*Result, error) {
	if len(paths) == 0 {
		return nil, ErrNoInput
	}

	if err := p.maintenance.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("wait for index maintenance: %w", err)
	}
	defer p.maintenance.Release(1)

	start := time.Now()
	result := &Result{}
	p.logger.Info("Starting ingestion", "paths", len(paths))

	segments := p.extractAll(ctx, paths, result)
	result.Segments = len(segments)
	if len(segments) == 0 {
		result.NoDocuments = true
		result.Duration = time.Since(start)
		p.logger.Warn("No documents produced", "paths", len(paths), "failed", len(result.FailedPaths))
		return result, nil
	}

	candidates := make([]Candidate, len(segments))
	for i, seg := range segments {
		norm, id := p.normalizer.Normalize(seg)
		candidates[i] = Candidate{ID: id, Segment: norm}
	}

	fresh, skipped := FilterNew(ctx, p.index, candidates, p.logger)
	result.SkippedDuplicates = skipped

	inserted, err := p.upserter.Upsert(ctx, fresh)
	result.Inserted = inserted
	result.Duration = time.Since(start)
	if err != nil {
		return result, fmt.Errorf("store segments: %w", err)
	}

	p.logger.Info("Ingestion complete",
		"inserted", result.Inserted,
		"skipped", result.SkippedDuplicates,
		"failed", len(result.FailedPaths),
		"duration", result.Duration,
	)
	return result, nil
}

// extractAll extracts every path with bounded concurrency and returns the
// segments in input order.
func (p *Pipeline) extractAll(ctx context.Context, paths []string, result *Result) []document.Segment {
	perPath := make([][]document.Segment, len(paths))
	errs := make([]error, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, path := range paths {
		g.Go(func() error {
			segs, err := p.extractor.Extract(gctx, path)
			if err != nil {
				errs[i] = err
				return nil
			}
			perPath[i] = segs
			return nil
		})
	}
	_ = g.Wait()

	var all []document.Segment
	for i, path := range paths {
		if errs[i] != nil {
			p.logger.Warn("Failed to extract document", "path", path, "error", errs[i])
			result.FailedPaths = append(result.FailedPaths, FailedPath{Path: path, Reason: errs[i].Error()})
			continue
		}
		p.logger.Debug("Extracted document", "path", path, "segments", len(perPath[i]))
		all = append(all, perPath[i]...)
	}
	return all
}

// Rebuild empties the index. It waits for in-flight ingestions and blocks new
// ones until the collection has been recreated. If ctx ends while waiting,
// Rebuild gives up without touching the index.
func (p *Pipeline) Rebuild(ctx context.Context) error {
	if err := p.maintenance.Acquire(ctx, maintenanceWeight); err != nil {
		return fmt.Errorf("wait for in-flight ingestions: %w", err)
	}
	defer p.maintenance.Release(maintenanceWeight)

	p.logger.Info("Rebuilding index")
	if err := p.index.DeleteCollection(ctx); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	if f, ok := p.index.(storage.Flusher); ok {
		if err := f.Flush(ctx); err != nil {
			return fmt.Errorf("flush index: %w", err)
		}
	}
	return nil
}
