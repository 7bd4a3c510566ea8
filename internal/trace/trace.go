// Package trace records per-step sampling diagnostics in a SQLite database.
// The recorder replaces ad-hoc global timing state with an explicit
// diagnostic context: a session owns (or shares) a Recorder whose lifetime
// is tied to session init and teardown. Recording failures are diagnostics,
// never fatal to generation.
package trace

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Step is one sampling decision's diagnostic record.
type Step struct {
	SessionID  string
	Step       int
	Token      int32
	Stop       string
	Mode       string // constraint mode: "", "static" or "dynamic"
	Degraded   bool   // constraint was configured but skipped this step
	StackDepth int
	Elapsed    time.Duration
	CreatedAt  time.Time
}

// Recorder wraps a SQLite connection for persisting sampling steps.
type Recorder struct {
	db         *sql.DB
	insertStmt *sql.Stmt
	selectStmt *sql.Stmt
	mu         sync.Mutex
}

// NewRecorder opens (and initializes) a SQLite database file for step
// diagnostics.
func NewRecorder(path string) (*Recorder, error) {
	if path == "" {
		path = "tokenweir_trace.db"
	}

	if dir := filepath.Dir(filepath.Clean(path)); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to ensure trace directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open trace store: %w", err)
	}

	if err := bootstrap(db); err != nil {
		db.Close()
		return nil, err
	}

	insertStmt, err := db.Prepare(`INSERT INTO steps (session_id, step, token, stop, mode, degraded, stack_depth, elapsed_us, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare insert statement: %w", err)
	}

	selectStmt, err := db.Prepare(`SELECT session_id, step, token, stop, mode, degraded, stack_depth, elapsed_us, created_at FROM steps WHERE session_id = ? OR ? = '' ORDER BY id DESC LIMIT ?`)
	if err != nil {
		insertStmt.Close()
		db.Close()
		return nil, fmt.Errorf("failed to prepare select statement: %w", err)
	}

	return &Recorder{db: db, insertStmt: insertStmt, selectStmt: selectStmt}, nil
}

func bootstrap(db *sql.DB) error {
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA synchronous=NORMAL;
	`); err != nil {
		return fmt.Errorf("failed to configure database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS steps (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			step INTEGER NOT NULL,
			token INTEGER NOT NULL,
			stop TEXT NOT NULL,
			mode TEXT NOT NULL,
			degraded INTEGER NOT NULL,
			stack_depth INTEGER NOT NULL,
			elapsed_us INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		);
	`); err != nil {
		return fmt.Errorf("failed to create steps table: %w", err)
	}

	return nil
}

// Record persists one sampling step.
func (r *Recorder) Record(s Step) error {
	if r == nil || r.db == nil {
		return errors.New("trace recorder is not initialized")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.insertStmt.Exec(
		s.SessionID, s.Step, s.Token, s.Stop, s.Mode, s.Degraded,
		s.StackDepth, s.Elapsed.Microseconds(), time.Now().Unix(),
	); err != nil {
		return fmt.Errorf("failed to record step: %w", err)
	}
	return nil
}

// Steps retrieves up to limit most recent steps, newest first. An empty
// sessionID matches all sessions.
func (r *Recorder) Steps(sessionID string, limit int) ([]Step, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("trace recorder is not initialized")
	}
	if limit <= 0 {
		limit = 100
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.selectStmt.Query(sessionID, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query steps: %w", err)
	}
	defer rows.Close()

	var steps []Step
	for rows.Next() {
		var s Step
		var elapsedUS, createdAt int64
		if err := rows.Scan(&s.SessionID, &s.Step, &s.Token, &s.Stop, &s.Mode, &s.Degraded, &s.StackDepth, &elapsedUS, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		s.Elapsed = time.Duration(elapsedUS) * time.Microsecond
		s.CreatedAt = time.Unix(createdAt, 0)
		steps = append(steps, s)
	}
	return steps, rows.Err()
}

// Close releases the prepared statements and the database connection.
func (r *Recorder) Close() error {
	if r == nil || r.db == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.insertStmt != nil {
		r.insertStmt.Close()
	}
	if r.selectStmt != nil {
		r.selectStmt.Close()
	}
	err := r.db.Close()
	r.db = nil
	return err
}
