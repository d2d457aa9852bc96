package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Entry is one recorded run.
type Entry struct {
	ID          string
	Script      string
	Interpreter string
	StartedAt   time.Time
	EndedAt     time.Time
	ExitCode    int
	Exited      bool
	TimedOut    bool
	Cancelled   bool
	LastLine    string
}

// Duration returns the recorded wall-clock runtime.
func (e *Entry) Duration() time.Duration { return e.EndedAt.Sub(e.StartedAt) }

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	script      TEXT NOT NULL,
	interpreter TEXT NOT NULL,
	started_at  INTEGER NOT NULL,
	ended_at    INTEGER NOT NULL,
	exit_code   INTEGER NOT NULL,
	exited      INTEGER NOT NULL,
	timed_out   INTEGER NOT NULL,
	cancelled   INTEGER NOT NULL,
	last_line   TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS runs_started_at ON runs(started_at);
`

// Store persists run history in a sqlite database.
type Store struct {
	db *sql.DB
}

// DefaultPath returns the default history database location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".pyrun", "history.db")
	}
	return filepath.Join(home, ".pyrun", "history.db")
}

// Open opens (creating if necessary) the history database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init history schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Record inserts a run entry, assigning an ID when none is set.
func (s *Store) Record(e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := s.db.Exec(
		`INSERT INTO runs (id, script, interpreter, started_at, ended_at, exit_code, exited, timed_out, cancelled, last_line)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Script, e.Interpreter,
		e.StartedAt.UnixMilli(), e.EndedAt.UnixMilli(),
		e.ExitCode, boolInt(e.Exited), boolInt(e.TimedOut), boolInt(e.Cancelled),
		e.LastLine,
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, script, interpreter, started_at, ended_at, exit_code, exited, timed_out, cancelled, last_line
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		var started, ended int64
		var exited, timedOut, cancelled int
		if err := rows.Scan(&e.ID, &e.Script, &e.Interpreter, &started, &ended,
			&e.ExitCode, &exited, &timedOut, &cancelled, &e.LastLine); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		e.StartedAt = time.UnixMilli(started)
		e.EndedAt = time.UnixMilli(ended)
		e.Exited = exited != 0
		e.TimedOut = timedOut != 0
		e.Cancelled = cancelled != 0
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// Clear removes all recorded runs.
func (s *Store) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM runs`); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
