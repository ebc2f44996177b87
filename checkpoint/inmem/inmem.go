// Package inmem implements checkpoint.Store in memory, adapted from the
// teacher's runtime/agent/runlog/inmem append-only event store: a
// per-thread monotonic sequence counter plus an append-only slice, with
// Latest returning the highest-seq entry.
package inmem

import (
	"context"
	"sync"

	"github.com/deepresearchhq/engine/checkpoint"
)

// Store is an in-memory checkpoint.Store, used in tests and single-process
// deployments.
type Store struct {
	mu       sync.Mutex
	nextSeq  map[string]int64
	byThread map[string][]checkpoint.Checkpoint
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		nextSeq:  make(map[string]int64),
		byThread: make(map[string][]checkpoint.Checkpoint),
	}
}

func (s *Store) Append(ctx context.Context, cp checkpoint.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := s.nextSeq[cp.ThreadID]
	cp.Seq = seq
	s.nextSeq[cp.ThreadID] = seq + 1
	s.byThread[cp.ThreadID] = append(s.byThread[cp.ThreadID], cp)
	return nil
}

func (s *Store) Latest(ctx context.Context, threadID string) (checkpoint.Checkpoint, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.byThread[threadID]
	if len(entries) == 0 {
		return checkpoint.Checkpoint{}, false, nil
	}
	return entries[len(entries)-1], true, nil
}
