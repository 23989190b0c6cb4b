package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/omni-cli/omni/llm"
)

// SqliteHistory implements HistoryStore on a SQLite database file.
// Thread-safe: sql.DB handles connection pooling and concurrent access.
type SqliteHistory struct {
	db *sql.DB
}

// OpenSqlite opens or creates a history database at the given path.
// Creates parent directories if they don't exist.
func OpenSqlite(path string) (*SqliteHistory, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	store := &SqliteHistory{db: db}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// NewSqliteInMemory creates an in-memory history store (useful for
// testing).
func NewSqliteInMemory() (*SqliteHistory, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}

	store := &SqliteHistory{db: db}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *SqliteHistory) Close() error {
	return s.db.Close()
}

func (s *SqliteHistory) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS asks (
			id TEXT PRIMARY KEY,
			provider TEXT NOT NULL,
			family TEXT NOT NULL,
			model TEXT NOT NULL,
			prompt TEXT NOT NULL,
			response TEXT NOT NULL,
			finish_reason TEXT NOT NULL,
			latency_ms INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_asks_created
		ON asks(created_at DESC);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Append stores one ask record.
func (s *SqliteHistory) Append(ctx context.Context, rec AskRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO asks (id, provider, family, model, prompt, response, finish_reason, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.Provider,
		rec.Family.String(),
		rec.Model,
		rec.Prompt,
		rec.ResponseText,
		rec.FinishReason,
		rec.LatencyMs,
		rec.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to append ask record: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (s *SqliteHistory) Recent(ctx context.Context, limit int) ([]AskRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, provider, family, model, prompt, response, finish_reason, latency_ms, created_at
		FROM asks
		ORDER BY created_at DESC, id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	records := []AskRecord{} // Start with empty slice, not nil
	for rows.Next() {
		var rec AskRecord
		var family string
		var createdAt int64
		err := rows.Scan(
			&rec.ID,
			&rec.Provider,
			&family,
			&rec.Model,
			&rec.Prompt,
			&rec.ResponseText,
			&rec.FinishReason,
			&rec.LatencyMs,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ask record: %w", err)
		}
		rec.Family, _ = llm.ParseFamily(family)
		rec.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}
	return records, nil
}

// Purge deletes all records.
func (s *SqliteHistory) Purge(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM asks"); err != nil {
		return fmt.Errorf("failed to purge history: %w", err)
	}
	return nil
}

// Verify SqliteHistory implements HistoryStore
var _ HistoryStore = (*SqliteHistory)(nil)
