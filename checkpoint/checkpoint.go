// Package checkpoint defines the durable, thread-scoped snapshot contract
// the driver writes to at node boundaries and on interrupt (spec section
// 6.4), grounded on the teacher's append-only runlog/session stores.
package checkpoint

import (
	"context"

	"github.com/deepresearchhq/engine/state"
)

// RunStatus is the coarse lifecycle of a checkpointed thread.
type RunStatus string

const (
	StatusRunning               RunStatus = "running"
	StatusAwaitingConfirmation  RunStatus = "awaiting_confirmation"
	StatusCompleted             RunStatus = "completed"
	StatusFailed                RunStatus = "failed"
	StatusCancelled              RunStatus = "cancelled"
)

// PendingDispatch is an outstanding web_research dispatch not yet joined;
// persisted so a crash mid-fan-out can be resumed without re-dispatching
// already-completed branches.
type PendingDispatch struct {
	Query     string
	SegmentID int
}

// Checkpoint is one durable snapshot for a thread: the full state, the set
// of dispatches still outstanding, and the run's coarse status.
type Checkpoint struct {
	ThreadID          string
	Seq               int64
	State             *state.OverallState
	PendingDispatches []PendingDispatch
	Status            RunStatus
}

// Store is the checkpointer contract. Append is called at every node
// boundary and on interrupt; Latest is called by resume to load the
// highest-seq checkpoint for a thread. Implementations must make Append
// monotonic per thread (seq strictly increasing) so resume is well defined
// even under concurrent writers.
type Store interface {
	Append(ctx context.Context, cp Checkpoint) error
	Latest(ctx context.Context, threadID string) (Checkpoint, bool, error)
}

// ErrNotFound is returned by Latest when no checkpoint exists for a thread.
type ErrNotFound struct{ ThreadID string }

func (e *ErrNotFound) Error() string { return "checkpoint: no checkpoint for thread " + e.ThreadID }
