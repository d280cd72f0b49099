// Package history persists implementation attempts so operators can review
// past runs after the fact.
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ticketsmith-io/ticketsmith/pkg/protocol"
)

// Attempt is one recorded implementation run.
type Attempt struct {
	ID            int64     `json:"id"`
	TicketRef     string    `json:"ticketRef"`
	TicketKey     string    `json:"ticketKey"`
	Success       bool      `json:"success"`
	TicketUpdated bool      `json:"ticketUpdated"`
	Summary       string    `json:"summary"`
	Error         string    `json:"error,omitempty"`
	Branch        string    `json:"branch,omitempty"`
	WorkspacePath string    `json:"workspacePath,omitempty"`
	CommitSha     string    `json:"commitSha,omitempty"`
	FilesChanged  []string  `json:"filesChanged,omitempty"`
	StartedAt     time.Time `json:"startedAt"`
	FinishedAt    time.Time `json:"finishedAt"`
}

// FromOutput builds an Attempt from an orchestration result.
func FromOutput(ref string, out protocol.ImplementationOutput, started, finished time.Time) Attempt {
	return Attempt{
		TicketRef:     ref,
		TicketKey:     out.TicketKey,
		Success:       out.Success,
		TicketUpdated: out.TicketUpdated,
		Summary:       out.Summary,
		Error:         out.Error,
		Branch:        out.Branch,
		WorkspacePath: out.WorkspacePath,
		CommitSha:     out.CommitSha,
		FilesChanged:  out.FilesChanged,
		StartedAt:     started,
		FinishedAt:    finished,
	}
}

// Filter narrows List results. Zero values mean "no constraint".
type Filter struct {
	TicketKey string
	Limit     int
}

// Store implements attempt persistence on SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the database and runs migrations.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open: %w", err)
	}

	// Enable WAL mode for better concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: wal: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS attempts (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			ticket_ref     TEXT NOT NULL,
			ticket_key     TEXT NOT NULL DEFAULT '',
			success        INTEGER NOT NULL,
			ticket_updated INTEGER NOT NULL DEFAULT 0,
			summary        TEXT NOT NULL DEFAULT '',
			error          TEXT NOT NULL DEFAULT '',
			branch         TEXT NOT NULL DEFAULT '',
			workspace_path TEXT NOT NULL DEFAULT '',
			commit_sha     TEXT NOT NULL DEFAULT '',
			files_changed  TEXT NOT NULL DEFAULT '[]',
			started_at     TEXT NOT NULL,
			finished_at    TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_attempts_key ON attempts(ticket_key);
		CREATE INDEX IF NOT EXISTS idx_attempts_started ON attempts(started_at);
	`)
	if err != nil {
		return fmt.Errorf("history: migrate: %w", err)
	}
	return nil
}

// Record inserts an attempt and fills in its assigned ID.
func (s *Store) Record(a *Attempt) error {
	files, _ := json.Marshal(a.FilesChanged)
	res, err := s.db.Exec(`
		INSERT INTO attempts (ticket_ref, ticket_key, success, ticket_updated, summary, error,
			branch, workspace_path, commit_sha, files_changed, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.TicketRef, a.TicketKey, boolInt(a.Success), boolInt(a.TicketUpdated), a.Summary, a.Error,
		a.Branch, a.WorkspacePath, a.CommitSha, string(files),
		a.StartedAt.Format(time.RFC3339), a.FinishedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("history: record: %w", err)
	}
	a.ID, _ = res.LastInsertId()
	return nil
}

// List returns attempts, newest first.
func (s *Store) List(filter Filter) ([]Attempt, error) {
	query := `SELECT id, ticket_ref, ticket_key, success, ticket_updated, summary, error,
		branch, workspace_path, commit_sha, files_changed, started_at, finished_at
		FROM attempts WHERE 1=1`
	var args []any

	if filter.TicketKey != "" {
		query += " AND ticket_key = ?"
		args = append(args, filter.TicketKey)
	}
	query += " ORDER BY started_at DESC, id DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		var a Attempt
		var success, updated int
		var files, startedAt, finishedAt string
		if err := rows.Scan(&a.ID, &a.TicketRef, &a.TicketKey, &success, &updated, &a.Summary, &a.Error,
			&a.Branch, &a.WorkspacePath, &a.CommitSha, &files, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("history: list scan: %w", err)
		}
		a.Success = success != 0
		a.TicketUpdated = updated != 0
		json.Unmarshal([]byte(files), &a.FilesChanged)
		a.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
		a.FinishedAt, _ = time.Parse(time.RFC3339, finishedAt)
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// Count returns the number of recorded attempts matching the filter.
func (s *Store) Count(filter Filter) (int, error) {
	query := "SELECT COUNT(*) FROM attempts WHERE 1=1"
	var args []any
	if filter.TicketKey != "" {
		query += " AND ticket_key = ?"
		args = append(args, filter.TicketKey)
	}
	var count int
	if err := s.db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("history: count: %w", err)
	}
	return count, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
