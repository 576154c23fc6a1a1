package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Store persists job records.
type Store interface {
	Create(ctx context.Context, rec *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	// List returns records newest first; limit <= 0 returns all.
	List(ctx context.Context, limit int) ([]Record, error)
	// MarkRunning moves a non-terminal job to RUNNING.
	MarkRunning(ctx context.Context, id string) error
	// Finish writes the terminal state. It returns ErrAlreadyTerminal if
	// another terminal state was written first.
	Finish(ctx context.Context, id string, state State, result json.RawMessage, reason, detail string) error
	// Unfinished returns the IDs of PENDING and RUNNING jobs, oldest first.
	Unfinished(ctx context.Context) ([]string, error)
	Close() error
}

// Dialect selects placeholder syntax.
type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectPostgres
)

// SQLStore implements Store on database/sql for SQLite and Postgres.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

const schema = `
CREATE TABLE IF NOT EXISTS ingest_jobs (
    task_id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    inputs TEXT NOT NULL DEFAULT '[]',
    status TEXT NOT NULL,
    result TEXT,
    traceback TEXT,
    detail TEXT,
    created_at TIMESTAMP NOT NULL,
    started_at TIMESTAMP,
    date_done TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_ingest_jobs_status ON ingest_jobs(status);
CREATE INDEX IF NOT EXISTS idx_ingest_jobs_created ON ingest_jobs(created_at);
`

// OpenSQLite creates or opens a SQLite job store at path.
func OpenSQLite(path string) (*SQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return newSQLStore(db, DialectSQLite)
}

// OpenMemory creates an in-memory SQLite job store (useful for testing).
func OpenMemory() (*SQLStore, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory database: %w", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	return newSQLStore(db, DialectSQLite)
}

// OpenPostgres connects to Postgres through pgx's database/sql driver.
func OpenPostgres(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return newSQLStore(db, DialectPostgres)
}

func newSQLStore(db *sql.DB, dialect Dialect) (*SQLStore, error) {
	s := &SQLStore{db: db, dialect: dialect}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

func (s *SQLStore) migrate() error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for Postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) Create(ctx context.Context, rec *Record) error {
	inputs, err := json.Marshal(rec.Inputs)
	if err != nil {
		return fmt.Errorf("marshaling inputs: %w", err)
	}
	_, err = s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO ingest_jobs (task_id, kind, inputs, status, created_at) VALUES (?, ?, ?, ?, ?)`),
		rec.ID, string(rec.Kind), string(inputs), string(rec.State), rec.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("creating job: %w", err)
	}
	return nil
}

const selectColumns = `SELECT task_id, kind, inputs, status, result, traceback, detail, created_at, started_at, date_done FROM ingest_jobs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var (
		rec                    Record
		kind, inputs, status   string
		result, reason, detail sql.NullString
		startedAt, doneAt      sql.NullTime
	)
	if err := row.Scan(&rec.ID, &kind, &inputs, &status, &result, &reason, &detail,
		&rec.CreatedAt, &startedAt, &doneAt); err != nil {
		return nil, err
	}
	rec.Kind = Kind(kind)
	rec.State = State(status)
	if err := json.Unmarshal([]byte(inputs), &rec.Inputs); err != nil {
		return nil, fmt.Errorf("unmarshaling inputs: %w", err)
	}
	if result.Valid && result.String != "" {
		rec.Result = json.RawMessage(result.String)
	}
	rec.Reason = reason.String
	rec.Detail = detail.String
	if startedAt.Valid {
		t := startedAt.Time
		rec.StartedAt = &t
	}
	if doneAt.Valid {
		t := doneAt.Time
		rec.DoneAt = &t
	}
	return &rec, nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (*Record, error) {
	rec, err := scanRecord(s.db.QueryRowContext(ctx, s.rebind(selectColumns+` WHERE task_id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting job: %w", err)
	}
	return rec, nil
}

func (s *SQLStore) List(ctx context.Context, limit int) ([]Record, error) {
	query := selectColumns + ` ORDER BY created_at DESC, task_id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning job: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (s *SQLStore) MarkRunning(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE ingest_jobs SET status = ?, started_at = ? WHERE task_id = ? AND status IN (?, ?)`),
		string(StateRunning), time.Now().UTC(), id, string(StatePending), string(StateRunning),
	)
	if err != nil {
		return fmt.Errorf("marking job running: %w", err)
	}
	return s.checkUpdated(ctx, res, id)
}

func (s *SQLStore) Finish(ctx context.Context, id string, state State, result json.RawMessage, reason, detail string) error {
	if !state.IsTerminal() {
		return fmt.Errorf("finish job %s: %s is not a terminal state", id, state)
	}
	var resultVal sql.NullString
	if len(result) > 0 {
		resultVal = sql.NullString{String: string(result), Valid: true}
	}
	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE ingest_jobs SET status = ?, result = ?, traceback = ?, detail = ?, date_done = ?
		 WHERE task_id = ? AND status NOT IN (?, ?)`),
		string(state), resultVal, nullIfEmpty(reason), nullIfEmpty(detail), time.Now().UTC(),
		id, string(StateSuccess), string(StateFailure),
	)
	if err != nil {
		return fmt.Errorf("finishing job: %w", err)
	}
	return s.checkUpdated(ctx, res, id)
}

// checkUpdated maps a zero-row update to ErrNotFound or ErrAlreadyTerminal.
func (s *SQLStore) checkUpdated(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return ErrAlreadyTerminal
}

func (s *SQLStore) Unfinished(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT task_id FROM ingest_jobs WHERE status IN (?, ?) ORDER BY created_at, task_id`),
		string(StatePending), string(StateRunning),
	)
	if err != nil {
		return nil, fmt.Errorf("listing unfinished jobs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning job id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
