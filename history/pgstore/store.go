// Package pgstore implements history.Store on PostgreSQL via pgx v5.
//
// Entries are stored append-only in a single table, one JSON payload
// per entry, ordered by a per-table sequence. Compaction markers are
// flagged so the latest boundary can be found without decoding rows.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

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

// Store implements history.Store backed by a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store over an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Open connects to the database and ensures the schema exists.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the entries table and indexes if missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// AppendEntries implements history.Store. All entries are inserted in
// one transaction so a partial turn is never visible.
func (s *Store) AppendEntries(ctx context.Context, sessionID string, entries ...*types.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

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
		if _, err := tx.Exec(ctx, query, e.ID, sessionID, string(e.Kind), marker, payload, e.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert entry %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
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

	rows, err := s.pool.Query(ctx, query, sessionID)
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
	err := s.pool.QueryRow(ctx, query, sessionID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
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

// ListSessions returns the distinct session IDs with stored entries,
// most recently active first.
func (s *Store) ListSessions(ctx context.Context) ([]string, error) {
	query := `
		SELECT session_id
		FROM agentctx_entries
		GROUP BY session_id
		ORDER BY MAX(seq) DESC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	return ids, nil
}
