package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/pdf-ingest/internal/jobs"
	"github.com/bull/pdf-ingest/internal/storage"
)

const defaultListLimit = 20

// hideError logs err and returns msg alone, keeping backend details out of
// tool results.
func hideError(logger *slog.Logger, msg string, err error) error {
	logger.Error("Tool call failed", "message", msg, "error", err)
	return errors.New(msg)
}

// makeJobStatusHandler creates the get_job_status tool handler. Unknown IDs
// are reported with Found false rather than as errors.
func makeJobStatusHandler(q JobQueue, logger *slog.Logger) func(
	context.Context, *mcp.CallToolRequest, GetJobStatusInput,
) (*mcp.CallToolResult, GetJobStatusOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input GetJobStatusInput) (
		*mcp.CallToolResult, GetJobStatusOutput, error,
	) {
		rec, err := q.Status(ctx, input.ID)
		if errors.Is(err, jobs.ErrNotFound) {
			return nil, GetJobStatusOutput{Found: false}, nil
		}
		if err != nil {
			return nil, GetJobStatusOutput{}, hideError(logger, "failed to load job", err)
		}
		view := toView(rec)
		return nil, GetJobStatusOutput{Found: true, Job: &view}, nil
	}
}

// makeListJobsHandler creates the list_jobs tool handler.
func makeListJobsHandler(q JobQueue, logger *slog.Logger) func(
	context.Context, *mcp.CallToolRequest, ListJobsInput,
) (*mcp.CallToolResult, ListJobsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListJobsInput) (
		*mcp.CallToolResult, ListJobsOutput, error,
	) {
		limit := input.Limit
		if limit <= 0 {
			limit = defaultListLimit
		}
		records, err := q.List(ctx, limit)
		if err != nil {
			return nil, ListJobsOutput{}, hideError(logger, "failed to list jobs", err)
		}

		views := make([]JobView, len(records))
		for i := range records {
			views[i] = toView(&records[i])
		}
		return nil, ListJobsOutput{Jobs: views, Count: len(views)}, nil
	}
}

// makeStatusHandler creates the get_index_status tool handler.
func makeStatusHandler(index storage.Index, q JobQueue, logger *slog.Logger) func(
	context.Context, *mcp.CallToolRequest, StatusInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input StatusInput) (
		*mcp.CallToolResult, StatusOutput, error,
	) {
		var out StatusOutput
		if d, ok := index.(storage.Describer); ok {
			info, err := d.Info(ctx)
			if err != nil {
				return nil, StatusOutput{}, hideError(logger, "index_error: index unavailable", err)
			}
			out.Backend = info.Backend
			out.Collection = info.Collection
			out.Model = info.Model
			out.Documents = info.Count
		} else {
			count, err := index.Count(ctx)
			if err != nil {
				return nil, StatusOutput{}, hideError(logger, "index_error: index unavailable", err)
			}
			out.Documents = count
		}

		records, err := q.List(ctx, 0)
		if err != nil {
			return nil, StatusOutput{}, hideError(logger, "failed to list jobs", err)
		}
		out.Jobs = map[string]int{
			string(jobs.StatePending): 0,
			string(jobs.StateRunning): 0,
			string(jobs.StateSuccess): 0,
			string(jobs.StateFailure): 0,
		}
		for _, r := range records {
			out.Jobs[string(r.State)]++
		}
		return nil, out, nil
	}
}

// makeSubmitHandler creates the submit_ingest tool handler.
func makeSubmitHandler(q JobQueue) func(
	context.Context, *mcp.CallToolRequest, SubmitIngestInput,
) (*mcp.CallToolResult, SubmitIngestOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SubmitIngestInput) (
		*mcp.CallToolResult, SubmitIngestOutput, error,
	) {
		kind := jobs.Kind(input.Kind)
		if kind == "" {
			kind = jobs.KindIngest
		}
		id, err := q.Submit(ctx, kind, input.Inputs)
		if err != nil {
			return nil, SubmitIngestOutput{}, fmt.Errorf("submit failed: %w", err)
		}
		return nil, SubmitIngestOutput{ID: id, Kind: string(kind)}, nil
	}
}

func toView(rec *jobs.Record) JobView {
	inputs := rec.Inputs
	if inputs == nil {
		inputs = []string{}
	}
	v := JobView{
		ID:        rec.ID,
		Kind:      string(rec.Kind),
		Inputs:    inputs,
		State:     string(rec.State),
		Reason:    rec.Reason,
		Detail:    rec.Detail,
		CreatedAt: rec.CreatedAt.Format(time.RFC3339),
	}
	if len(rec.Result) > 0 {
		var result any
		if err := json.Unmarshal(rec.Result, &result); err == nil {
			v.Result = result
		}
	}
	if rec.StartedAt != nil {
		v.StartedAt = rec.StartedAt.Format(time.RFC3339)
	}
	if rec.DoneAt != nil {
		v.DateDone = rec.DoneAt.Format(time.RFC3339)
	}
	return v
}
