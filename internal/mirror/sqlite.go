// Package mirror persists workflow record snapshots to SQLite. The mirror
// is strictly best-effort: the registry fires writes at it and ignores
// failures, and nothing in the request path reads it back. It exists so
// finished workflows survive a restart for post-mortem inspection.
package mirror

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/heliograph/research-digest/internal/domain"
)

// Store writes workflow snapshots to a SQLite database.
type Store struct {
	db *sql.DB
}

// NewStore opens or creates the mirror database at path, creating parent
// directories and the schema as needed.
func NewStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating mirror directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening mirror database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating mirror schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS workflows (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			progress REAL NOT NULL,
			message TEXT,
			error TEXT,
			result_json TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_workflows_status ON workflows(status)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Save upserts the snapshot. Result payloads are stored as JSON.
func (s *Store) Save(ctx context.Context, record *domain.WorkflowRecord) error {
	var resultJSON sql.NullString
	if record.Result != nil {
		raw, err := json.Marshal(record.Result)
		if err != nil {
			return fmt.Errorf("marshaling result payload: %w", err)
		}
		resultJSON = sql.NullString{String: string(raw), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workflows (id, status, progress, message, error, result_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			progress = excluded.progress,
			message = excluded.message,
			error = excluded.error,
			result_json = excluded.result_json,
			updated_at = excluded.updated_at`,
		record.ID,
		string(record.Status),
		record.Progress,
		record.Message,
		record.Error,
		resultJSON,
		record.CreatedAt.UTC().Format(time.RFC3339Nano),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upserting workflow %s: %w", record.ID, err)
	}
	return nil
}

// Load reads a stored snapshot back, primarily for inspection and tests.
func (s *Store) Load(ctx context.Context, id string) (*domain.WorkflowRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, status, progress, message, error, result_json, created_at
		FROM workflows WHERE id = ?`, id)

	var (
		record     domain.WorkflowRecord
		status     string
		resultJSON sql.NullString
		createdAt  string
	)
	if err := row.Scan(&record.ID, &status, &record.Progress, &record.Message,
		&record.Error, &resultJSON, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.NewNotFoundError("workflow", id)
		}
		return nil, fmt.Errorf("loading workflow %s: %w", id, err)
	}

	record.Status = domain.WorkflowStatus(status)
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		record.CreatedAt = t
	}
	if resultJSON.Valid {
		var result domain.ResultPayload
		if err := json.Unmarshal([]byte(resultJSON.String), &result); err != nil {
			return nil, fmt.Errorf("unmarshaling result payload: %w", err)
		}
		record.Result = &result
	}
	return &record, nil
}
