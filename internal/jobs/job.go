package jobs

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// State is the lifecycle position of a job.
type State string

const (
	StatePending State = "PENDING"
	StateRunning State = "RUNNING"
	StateSuccess State = "SUCCESS"
	StateFailure State = "FAILURE"
)

// IsTerminal reports whether no further transitions are allowed.
func (s State) IsTerminal() bool {
	return s == StateSuccess || s == StateFailure
}

// Kind selects the task a job runs.
type Kind string

const (
	// KindIngest ingests local paths.
	KindIngest Kind = "ingest"
	// KindFetch downloads one URL and ingests it.
	KindFetch Kind = "fetch"
)

// Failure reasons recorded on FAILURE.
const (
	ReasonInput            = "input_error"
	ReasonSafetyViolation  = "safety_violation"
	ReasonFetchFailed      = "fetch_failed"
	ReasonIndexUnavailable = "index_unavailable"
	ReasonTimeout          = "timeout"
	ReasonInternal         = "internal_error"
)

// reasonMessages are the details stored when a failure carries no
// user-facing message of its own.
var reasonMessages = map[string]string{
	ReasonInput:            "no documents to ingest",
	ReasonSafetyViolation:  "url rejected by safety policy",
	ReasonFetchFailed:      "document could not be downloaded",
	ReasonIndexUnavailable: "index unavailable",
	ReasonTimeout:          "job exceeded its time limit",
	ReasonInternal:         "internal error",
}

var (
	ErrNotFound        = errors.New("job not found")
	ErrAlreadyTerminal = errors.New("job already finished")
	ErrNoInput         = errors.New("job has no inputs")
	ErrUnknownKind     = errors.New("unknown job kind")
)

// Record is the persisted view of a job.
type Record struct {
	ID        string          `json:"id"`
	Kind      Kind            `json:"kind"`
	Inputs    []string        `json:"inputs"`
	State     State           `json:"state"`
	Result    json.RawMessage `json:"result,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	Detail    string          `json:"detail,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	StartedAt *time.Time      `json:"started_at,omitempty"`
	DoneAt    *time.Time      `json:"date_done,omitempty"`
}

// Failure is an error carrying a classified reason. Task runners return it
// so the queue can record why a job failed. Err is only logged; Detail is
// the message stored on the record.
type Failure struct {
	Reason string
	Detail string
	Err    error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return f.Reason
	}
	return f.Reason + ": " + f.Err.Error()
}

func (f *Failure) Unwrap() error { return f.Err }

// Fail wraps err with reason. The stored detail is the reason's default message.
func Fail(reason string, err error) error {
	return &Failure{Reason: reason, Err: err}
}

// FailWith wraps err with reason and a user-facing detail.
func FailWith(reason, detail string, err error) error {
	return &Failure{Reason: reason, Detail: detail, Err: err}
}

const maxDetail = 300

// Classify returns the reason and a single-line detail for err. The detail
// never contains the wrapped error's text.
func Classify(err error) (reason, detail string) {
	reason = ReasonInternal
	var f *Failure
	if errors.As(err, &f) {
		reason = f.Reason
		detail = f.Detail
	}
	if detail == "" {
		detail = reasonMessages[reason]
	}
	if detail == "" {
		detail = reasonMessages[ReasonInternal]
	}
	return reason, sanitize(detail)
}

func sanitize(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > maxDetail {
		s = string(r[:maxDetail]) + "..."
	}
	return s
}
