// Package runstore tracks the coarse lifecycle of a thread's run
// (pending/running/paused/completed/failed/canceled), independent of the
// fine-grained checkpoint.Store snapshots driver.run appends at every node
// boundary (spec section 6.4). Grounded on the teacher's
// runtime/agent/run/run.go (Record/Status shape) and
// runtime/agent/session/session.go (store-by-id pattern), narrowed from the
// teacher's multi-run/session/turn hierarchy to this engine's one run per
// thread_id.
package runstore

import (
	"context"
	"errors"
	"time"
)

// Status is the coarse lifecycle state of a thread's most recent run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// ErrNotFound indicates no run record exists for the given thread.
var ErrNotFound = errors.New("runstore: run not found")

// Record is the durable bookkeeping entry for one thread's current run.
type Record struct {
	ThreadID  string
	Status    Status
	StartedAt time.Time
	UpdatedAt time.Time
}

// Store persists coarse run lifecycle state, giving driver.Cancel something
// durable to flip even when no new checkpoint is about to be written.
type Store interface {
	Upsert(ctx context.Context, record Record) error
	Load(ctx context.Context, threadID string) (Record, error)
}
