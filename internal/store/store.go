// Package store persists completed analysis workflows to SQLite for audit.
// The selection engine itself is stateless; the store only records outputs.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"mapshock/internal/logging"
	"mapshock/internal/orchestrate"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	workflow_id TEXT PRIMARY KEY,
	query       TEXT NOT NULL,
	tier        INTEGER NOT NULL,
	protocols   TEXT NOT NULL,
	stage_times TEXT NOT NULL,
	created_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON sessions(created_at);
`

// ErrNotFound marks a lookup for a workflow id that was never recorded.
var ErrNotFound = errors.New("session not found")

// Session is one persisted workflow record.
type Session struct {
	WorkflowID string             `json:"workflow_id"`
	Query      string             `json:"query"`
	Tier       int                `json:"tier"`
	Protocols  []string           `json:"protocols"`
	StageTimes map[string]float64 `json:"stage_times"` // seconds per stage
	CreatedAt  time.Time          `json:"created_at"`
}

// Store is a SQLite-backed session log. It implements orchestrate.Recorder.
type Store struct {
	db *sql.DB
}

// Open creates or opens the session database at path. ":memory:" works for
// tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	// SQLite handles a single writer; serialize access through one conn.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create session schema: %w", err)
	}

	logging.Get(logging.CategoryStore).Infof("session store open at %s", path)
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record persists one completed workflow.
func (s *Store) Record(ctx context.Context, res *orchestrate.Result) error {
	protocols, err := json.Marshal(res.Selection.SelectedProtocols)
	if err != nil {
		return fmt.Errorf("failed to encode protocols: %w", err)
	}

	times := make(map[string]float64, len(res.StageTimes))
	for stage, d := range res.StageTimes {
		times[stage] = d.Seconds()
	}
	stageTimes, err := json.Marshal(times)
	if err != nil {
		return fmt.Errorf("failed to encode stage times: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (workflow_id, query, tier, protocols, stage_times, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		res.WorkflowID, res.Query, res.Selection.Tier,
		string(protocols), string(stageTimes), res.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record session: %w", err)
	}
	return nil
}

// Get loads one session by workflow id.
func (s *Store) Get(ctx context.Context, workflowID string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT workflow_id, query, tier, protocols, stage_times, created_at
		 FROM sessions WHERE workflow_id = ?`, workflowID)

	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", workflowID, ErrNotFound)
	}
	return sess, err
}

// Recent returns up to limit sessions, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT workflow_id, query, tier, protocols, stage_times, created_at
		 FROM sessions ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var (
		sess       Session
		protocols  string
		stageTimes string
	)
	if err := row.Scan(&sess.WorkflowID, &sess.Query, &sess.Tier,
		&protocols, &stageTimes, &sess.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(protocols), &sess.Protocols); err != nil {
		return nil, fmt.Errorf("corrupt protocols column: %w", err)
	}
	if err := json.Unmarshal([]byte(stageTimes), &sess.StageTimes); err != nil {
		return nil, fmt.Errorf("corrupt stage_times column: %w", err)
	}
	return &sess, nil
}
