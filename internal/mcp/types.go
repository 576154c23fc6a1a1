// Package mcp exposes ingestion jobs and index status as MCP tools.
package mcp

// GetJobStatusInput defines the input parameters for the get_job_status tool.
type GetJobStatusInput struct {
	ID string `json:"id" jsonschema:"the job ID returned at submission"`
}

// GetJobStatusOutput contains the job record.
type GetJobStatusOutput struct {
	// Found indicates whether the job exists.
	Found bool     `json:"found"`
	Job   *JobView `json:"job,omitempty"`
}

// JobView is the tool-facing form of a job record. Timestamps are RFC 3339.
type JobView struct {
	ID        string   `json:"id"`
	Kind      string   `json:"kind"`
	Inputs    []string `json:"inputs"`
	State     string   `json:"state"`
	Result    any      `json:"result,omitempty"`
	Reason    string   `json:"reason,omitempty"`
	Detail    string   `json:"detail,omitempty"`
	CreatedAt string   `json:"created_at"`
	StartedAt string   `json:"started_at,omitempty"`
	DateDone  string   `json:"date_done,omitempty"`
}

// ListJobsInput defines the input parameters for the list_jobs tool.
type ListJobsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of jobs to return, newest first (default 20)"`
}

// ListJobsOutput contains recent jobs.
type ListJobsOutput struct {
	Jobs  []JobView `json:"jobs"`
	Count int       `json:"count"`
}

// StatusInput takes no parameters.
type StatusInput struct{}

// StatusOutput describes the index and the job backlog.
type StatusOutput struct {
	Backend    string         `json:"backend,omitempty"`
	Collection string         `json:"collection,omitempty"`
	Model      string         `json:"model,omitempty"`
	Documents  int            `json:"documents"`
	Jobs       map[string]int `json:"jobs"`
}

// SubmitIngestInput defines the input parameters for the submit_ingest tool.
type SubmitIngestInput struct {
	Inputs []string `json:"inputs" jsonschema:"local file paths, or http(s) and s3 URLs when kind is fetch"`
	Kind   string   `json:"kind,omitempty" jsonschema:"ingest (default) for local paths or fetch for URLs"`
}

// SubmitIngestOutput identifies the submitted job.
type SubmitIngestOutput struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
}
