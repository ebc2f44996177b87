// Package inmem implements runstore.Store in memory, for tests and local
// CLI runs. Adapted from the teacher's runtime/agent/run/inmem/inmem.go.
package inmem

import (
	"context"
	"sync"
	"time"

	"github.com/deepresearchhq/engine/runstore"
)

// Store implements runstore.Store with no durability across process
// restarts. All operations are safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	records map[string]runstore.Record
}

// New constructs an empty Store.
func New() *Store {
	return &Store{records: make(map[string]runstore.Record)}
}

// Upsert inserts or updates the record for r.ThreadID, preserving the
// original StartedAt across updates and defaulting UpdatedAt to now.
func (s *Store) Upsert(_ context.Context, r runstore.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.records[r.ThreadID]; ok && r.StartedAt.IsZero() {
		r.StartedAt = existing.StartedAt
	} else if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = time.Now()
	}
	s.records[r.ThreadID] = r
	return nil
}

// Load retrieves the record for threadID, or runstore.ErrNotFound.
func (s *Store) Load(_ context.Context, threadID string) (runstore.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[threadID]
	if !ok {
		return runstore.Record{}, runstore.ErrNotFound
	}
	return r, nil
}
