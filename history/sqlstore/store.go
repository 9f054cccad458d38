// Package sqlstore implements history.Store on any database/sql
// connection speaking PostgreSQL placeholders, such as lib/pq. Use
// pgstore when a pgx pool is available; use this package to share an
// existing *sql.DB.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/agentctx/agentctx/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS agentctx_entries (
	seq        BIGSERIAL PRIMARY KEY,
	id         TEXT NOT NULL,
	session_id TEXT NOT NULL,
	kind       TEXT NOT NULL,
	is_marker  BOOLEAN NOT NULL DEFAULT FALSE,
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_agentctx_entries_session
	ON agentctx_entries (session_id, seq);

CREATE INDEX IF NOT EXISTS idx_agentctx_entries_markers
	ON agentctx_entries (session_id, seq) WHERE is_marker;
`

// Store implements history.Store over a *sql.DB.
type Store struct {
	db *sql.DB
}

// New creates a Store over an existing database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the entries table and indexes if missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// AppendEntries implements history.Store. All entries are inserted in
// one transaction so a partial turn is never visible.
func (s *Store) AppendEntries(ctx context.Context, sessionID string, entries ...*types.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO agentctx_entries (id, session_id, kind, is_marker, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	for _, e := range entries {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal entry %s: %w", e.ID, err)
		}
		marker := e.Kind == types.EntryCompaction
		if _, err := tx.ExecContext(ctx, query, e.ID, sessionID, string(e.Kind), marker, payload, e.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert entry %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit entries: %w", err)
	}
	return nil
}

// AppendMarker implements history.Store.
func (s *Store) AppendMarker(ctx context.Context, sessionID string, marker *types.Entry) error {
	return s.AppendEntries(ctx, sessionID, marker)
}

// ListEntries implements history.Store.
func (s *Store) ListEntries(ctx context.Context, sessionID string) ([]*types.Entry, error) {
	query := `
		SELECT payload
		FROM agentctx_entries
		WHERE session_id = $1
		ORDER BY seq
	`

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []*types.Entry
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		var entry types.Entry
		if err := json.Unmarshal(payload, &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal entry: %w", err)
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entries: %w", err)
	}
	return entries, nil
}

// LatestEntry implements history.Store.
func (s *Store) LatestEntry(ctx context.Context, sessionID string) (*types.Entry, error) {
	query := `
		SELECT payload
		FROM agentctx_entries
		WHERE session_id = $1
		ORDER BY seq DESC
		LIMIT 1
	`

	var payload []byte
	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest entry: %w", err)
	}

	var entry types.Entry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entry: %w", err)
	}
	return &entry, nil
}
