// Package history defines the append-only entry store consumed by the
// session layer, plus an in-memory implementation. SQL-backed
// implementations live in the pgstore and sqlstore subpackages.
package history

import (
	"context"
	"errors"
	"sync"

	"github.com/agentctx/agentctx/types"
)

// ErrSessionNotFound is returned when a session has no entries.
var ErrSessionNotFound = errors.New("session not found")

// Store is an ordered, append-only list of entries per session.
// Entries are never mutated or deleted; compaction appends a marker
// entry like any other.
type Store interface {
	// AppendEntries appends entries in order to the session's history.
	AppendEntries(ctx context.Context, sessionID string, entries ...*types.Entry) error

	// AppendMarker appends a compaction marker. Split out from
	// AppendEntries so implementations can index markers for fast
	// boundary lookup.
	AppendMarker(ctx context.Context, sessionID string, marker *types.Entry) error

	// ListEntries returns all entries for the session in append order.
	ListEntries(ctx context.Context, sessionID string) ([]*types.Entry, error)

	// LatestEntry returns the most recent entry, or nil when the
	// session has none.
	LatestEntry(ctx context.Context, sessionID string) (*types.Entry, error)
}

// MemoryStore is an in-memory Store, safe for concurrent use. Useful
// for tests and for callers that persist elsewhere.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]*types.Entry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]*types.Entry)}
}

// AppendEntries implements Store.
func (s *MemoryStore) AppendEntries(ctx context.Context, sessionID string, entries ...*types.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = append(s.sessions[sessionID], entries...)
	return nil
}

// AppendMarker implements Store.
func (s *MemoryStore) AppendMarker(ctx context.Context, sessionID string, marker *types.Entry) error {
	return s.AppendEntries(ctx, sessionID, marker)
}

// ListEntries implements Store.
func (s *MemoryStore) ListEntries(ctx context.Context, sessionID string) ([]*types.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.sessions[sessionID]
	out := make([]*types.Entry, len(entries))
	copy(out, entries)
	return out, nil
}

// LatestEntry implements Store.
func (s *MemoryStore) LatestEntry(ctx context.Context, sessionID string) (*types.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.sessions[sessionID]
	if len(entries) == 0 {
		return nil, nil
	}
	return entries[len(entries)-1], nil
}
