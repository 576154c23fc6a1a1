// Package tasks binds job kinds to the ingestion pipeline.
package tasks

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"

	"github.com/bull/pdf-ingest/internal/fetch"
	"github.com/bull/pdf-ingest/internal/indexer"
	"github.com/bull/pdf-ingest/internal/jobs"
	"github.com/bull/pdf-ingest/internal/storage"
)

// Ingester is the part of the pipeline tasks depend on.
type Ingester interface {
	Ingest(ctx context.Context, paths []string) (*indexer.Result, error)
}

// Register installs the ingest and fetch runners on q.
func Register(q *jobs.Queue, ingester Ingester, downloader fetch.Downloader, logger *slog.Logger) {
	q.Register(jobs.KindIngest, IngestRunner(ingester))
	q.Register(jobs.KindFetch, FetchRunner(downloader, ingester, logger))
}

// IngestRunner ingests the job's local paths.
func IngestRunner(ingester Ingester) jobs.Runner {
	return func(ctx context.Context, rec *jobs.Record) (any, error) {
		return ingest(ctx, ingester, rec.Inputs)
	}
}

// FetchRunner downloads every URL of the job and ingests the local copies.
// A URL rejected by the safety guard fails the job before anything is
// fetched or ingested.
func FetchRunner(downloader fetch.Downloader, ingester Ingester, logger *slog.Logger) jobs.Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, rec *jobs.Record) (any, error) {
		paths := make([]string, 0, len(rec.Inputs))
		for _, raw := range rec.Inputs {
			path, err := downloader.Download(ctx, raw)
			if err != nil {
				return nil, classifyFetch(raw, err)
			}
			logger.Debug("Fetched input", "job_id", rec.ID, "path", path)
			paths = append(paths, path)
		}
		return ingest(ctx, ingester, paths)
	}
}

func ingest(ctx context.Context, ingester Ingester, paths []string) (*indexer.Result, error) {
	res, err := ingester.Ingest(ctx, paths)
	if err != nil {
		return nil, classifyIngest(err)
	}
	return res, nil
}

// classifyFetch keeps the offending input in the stored detail; the
// underlying error is only logged by the queue.
func classifyFetch(raw string, err error) error {
	switch {
	case errors.Is(err, fetch.ErrUnsafeURL):
		return jobs.FailWith(jobs.ReasonSafetyViolation, "url rejected by safety policy: "+displayURL(raw), err)
	default:
		return jobs.FailWith(jobs.ReasonFetchFailed, "download failed: "+displayURL(raw), err)
	}
}

// displayURL strips credentials from raw for storage on the job record.
func displayURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "(unparseable url)"
	}
	return u.Redacted()
}

func classifyIngest(err error) error {
	switch {
	case errors.Is(err, indexer.ErrNoInput):
		return jobs.Fail(jobs.ReasonInput, err)
	case errors.Is(err, storage.ErrIndexUnavailable):
		return jobs.Fail(jobs.ReasonIndexUnavailable, err)
	default:
		return err
	}
}
