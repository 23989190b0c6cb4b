// Package storage provides SQLite-backed ask history.
//
// History is strictly best-effort bookkeeping: the dispatcher result
// is already in the caller's hands before anything is written, and a
// storage failure never fails the ask.
package storage

import (
	"context"
	"time"

	"github.com/omni-cli/omni/llm"
)

// AskRecord is one completed ask invocation.
type AskRecord struct {
	ID           string
	Provider     string
	Family       llm.ProviderFamily
	Model        string
	Prompt       string
	ResponseText string
	FinishReason string
	LatencyMs    int64
	CreatedAt    time.Time
}

// HistoryStore persists ask records.
type HistoryStore interface {
	// Append stores one record. A missing ID is filled in.
	Append(ctx context.Context, rec AskRecord) error

	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]AskRecord, error)

	// Purge deletes all records.
	Purge(ctx context.Context) error

	Close() error
}
