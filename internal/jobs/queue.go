package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Runner executes one job and returns a JSON-encodable result.
type Runner func(ctx context.Context, rec *Record) (any, error)

// QueueOptions tunes a Queue. Zero values use the defaults.
type QueueOptions struct {
	// Buffer is the capacity of the in-process delivery channel.
	Buffer int
	// JobTimeout bounds a single job's execution.
	JobTimeout time.Duration
}

// Queue persists jobs and runs them on a pool of workers. Delivery is
// at-least-once: jobs left PENDING or RUNNING by a previous process are
// delivered again when the queue starts.
type Queue struct {
	store   Store
	runners map[Kind]Runner
	jobs    chan string
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	queued map[string]bool
	wg     sync.WaitGroup
}

// NewQueue creates a queue backed by store.
func NewQueue(store Store, opts QueueOptions, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 256
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 30 * time.Minute
	}
	return &Queue{
		store:   store,
		runners: make(map[Kind]Runner),
		jobs:    make(chan string, opts.Buffer),
		timeout: opts.JobTimeout,
		logger:  logger,
		queued:  make(map[string]bool),
	}
}

// Register sets the runner for kind. It must be called before Start.
func (q *Queue) Register(kind Kind, r Runner) {
	q.runners[kind] = r
}

// Submit validates and persists a PENDING job, then schedules it. If the
// delivery buffer is full it blocks until space frees up or ctx ends; the
// job is persisted either way and will be delivered on the next start.
func (q *Queue) Submit(ctx context.Context, kind Kind, inputs []string) (string, error) {
	if len(inputs) == 0 {
		return "", ErrNoInput
	}
	if _, ok := q.runners[kind]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	rec := &Record{
		ID:        uuid.NewString(),
		Kind:      kind,
		Inputs:    inputs,
		State:     StatePending,
		CreatedAt: time.Now().UTC(),
	}
	if err := q.store.Create(ctx, rec); err != nil {
		return "", fmt.Errorf("persist job: %w", err)
	}
	q.logger.Info("Job submitted", "job_id", rec.ID, "kind", kind, "inputs", len(inputs))

	if err := q.enqueue(ctx, rec.ID); err != nil {
		q.logger.Warn("Job not scheduled, it will be delivered on restart", "job_id", rec.ID, "error", err)
	}
	return rec.ID, nil
}

func (q *Queue) enqueue(ctx context.Context, id string) error {
	q.mu.Lock()
	if q.queued[id] {
		q.mu.Unlock()
		return nil
	}
	q.queued[id] = true
	q.mu.Unlock()

	select {
	case q.jobs <- id:
		return nil
	case <-ctx.Done():
		q.mu.Lock()
		delete(q.queued, id)
		q.mu.Unlock()
		return ctx.Err()
	}
}

// Start redelivers unfinished jobs and launches workers. Workers stop
// taking new jobs when ctx is canceled; Wait blocks until they exit.
func (q *Queue) Start(ctx context.Context, workers int) error {
	if workers <= 0 {
		workers = 1
	}

	for w := 1; w <= workers; w++ {
		q.wg.Add(1)
		go q.worker(ctx, w)
	}

	ids, err := q.store.Unfinished(ctx)
	if err != nil {
		return fmt.Errorf("load unfinished jobs: %w", err)
	}
	if len(ids) > 0 {
		q.logger.Info("Redelivering unfinished jobs", "count", len(ids))
	}
	for _, id := range ids {
		if err := q.enqueue(ctx, id); err != nil {
			return fmt.Errorf("redeliver job %s: %w", id, err)
		}
	}
	return nil
}

// Wait blocks until all workers have exited.
func (q *Queue) Wait() {
	q.wg.Wait()
}

func (q *Queue) worker(ctx context.Context, n int) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			q.logger.Debug("Worker shutting down", "worker", n)
			return
		case id := <-q.jobs:
			q.run(ctx, id)
			q.mu.Lock()
			delete(q.queued, id)
			q.mu.Unlock()
		}
	}
}

// storeTimeout bounds each state write so a job's own deadline never
// prevents its terminal state from being recorded.
const storeTimeout = 10 * time.Second

// run executes one delivery. The job runs on a context detached from
// cancellation so shutdown does not abort it midway.
func (q *Queue) run(parent context.Context, id string) {
	base := context.WithoutCancel(parent)
	log := q.logger.With("job_id", id)

	getCtx, cancelGet := context.WithTimeout(base, storeTimeout)
	rec, err := q.store.Get(getCtx, id)
	cancelGet()
	if err != nil {
		log.Error("Failed to load job", "error", err)
		return
	}
	if rec.State.IsTerminal() {
		log.Debug("Skipping finished job", "state", rec.State)
		return
	}

	markCtx, cancelMark := context.WithTimeout(base, storeTimeout)
	if err := q.store.MarkRunning(markCtx, id); err != nil {
		log.Warn("Failed to record RUNNING state, continuing", "error", err)
	} else {
		rec.State = StateRunning
	}
	cancelMark()

	start := time.Now()
	jobCtx, cancelJob := context.WithTimeout(base, q.timeout)
	result, runErr := q.execute(jobCtx, rec)
	if runErr != nil && errors.Is(jobCtx.Err(), context.DeadlineExceeded) {
		runErr = Fail(ReasonTimeout, runErr)
	}
	cancelJob()

	state := StateSuccess
	var payload json.RawMessage
	var reason, detail string
	if runErr != nil {
		state = StateFailure
		reason, detail = Classify(runErr)
		log.Warn("Job failed", "kind", rec.Kind, "reason", reason, "error", runErr)
	} else if result != nil {
		payload, err = json.Marshal(result)
		if err != nil {
			state = StateFailure
			reason, detail = Classify(err)
			log.Error("Failed to encode job result", "error", err)
			payload = nil
		}
	}

	finishCtx, cancelFinish := context.WithTimeout(base, storeTimeout)
	defer cancelFinish()
	err = q.store.Finish(finishCtx, id, state, payload, reason, detail)
	switch {
	case errors.Is(err, ErrAlreadyTerminal):
		log.Info("Job already finished by another delivery")
	case err != nil:
		log.Error("Failed to record terminal state", "state", state, "error", err)
	default:
		log.Info("Job finished", "state", state, "duration", time.Since(start))
	}
}

// execute runs the registered runner, converting panics into failures.
func (q *Queue) execute(ctx context.Context, rec *Record) (result any, err error) {
	runner, ok := q.runners[rec.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, rec.Kind)
	}
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("Job panicked", "job_id", rec.ID, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return runner(ctx, rec)
}

// Status returns the stored record for id, or ErrNotFound.
func (q *Queue) Status(ctx context.Context, id string) (*Record, error) {
	return q.store.Get(ctx, id)
}

// List returns recent jobs, newest first.
func (q *Queue) List(ctx context.Context, limit int) ([]Record, error) {
	return q.store.List(ctx, limit)
}
