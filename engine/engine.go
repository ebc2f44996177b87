// Package engine abstracts the durable workflow substrate the driver runs
// on top of. The research graph itself never talks to Temporal or goroutines
// directly; it only talks to Engine, WorkflowContext, Future, and
// SignalChannel, so the same graph runs unmodified over an in-memory engine
// (tests, local CLI) or a Temporal-backed one (production durability).
package engine

import (
	"context"
	"time"
)

// NodeFunc is a node body executed inside a workflow: given the current
// WorkflowContext and run input, it returns a NodeOutcome. Per spec section
// 9's "async with interrupt sentinels" redesign note, suspension is
// expressed as an explicit return value (NodeOutcome.Suspend) rather than a
// raised exception, so control flow stays visible at the call site.
type NodeFunc func(ctx WorkflowContext, input any) (NodeOutcome, error)

// ActivityFunc is a unit of work dispatched via ExecuteActivity: a
// collaborator call (LLM, search) or any I/O the engine should retry and
// checkpoint independently of the enclosing node.
type ActivityFunc func(ctx context.Context, input any) (any, error)

// NodeOutcomeKind tags which variant of NodeOutcome is populated.
type NodeOutcomeKind string

const (
	OutcomeDelta   NodeOutcomeKind = "delta"
	OutcomeSuspend NodeOutcomeKind = "suspend"
	OutcomeFail    NodeOutcomeKind = "fail"
)

// NodeOutcome is the tagged sum NodeOutcome = Delta | Suspend{reason,
// checkpoint} | Fail{error} named by spec section 9: a node never raises a
// control-flow sentinel, it returns one.
type NodeOutcome struct {
	Kind NodeOutcomeKind

	// Delta, populated when Kind == OutcomeDelta, is the state.Delta the
	// node produced; typed as any here to avoid an import cycle with
	// package state.
	Delta any

	// SuspendReason/SuspendCheckpoint, populated when Kind == OutcomeSuspend.
	SuspendReason     string
	SuspendCheckpoint any

	// FailErr, populated when Kind == OutcomeFail.
	FailErr error
}

// WorkflowContext is the handle a node body uses to interact with the
// engine: execute activities, read/write signals, and query deterministic
// time (required for replay-safe engines like Temporal).
type WorkflowContext interface {
	Context() context.Context
	WorkflowID() string
	RunID() string

	// ExecuteActivity runs fn synchronously (from the node's point of view)
	// with retry/timeout policy applied by the engine adapter.
	ExecuteActivity(name string, input any, opts ActivityOptions) (any, error)

	// ExecuteActivityAsync starts fn and returns immediately with a Future,
	// used by fan-out dispatch so siblings run concurrently.
	ExecuteActivityAsync(name string, input any, opts ActivityOptions) Future

	// SignalChannel returns the named signal channel for this workflow.
	SignalChannel(name string) SignalChannel

	// Now returns engine time: wall-clock for the in-memory engine,
	// deterministic replay time for Temporal.
	Now() time.Time
}

// Future represents the result of an asynchronously started activity.
type Future interface {
	Get(ctx context.Context) (any, error)
	IsReady() bool
}

// SignalChannel is a named, buffered channel a workflow can block on to
// receive signals sent from outside the run.
type SignalChannel interface {
	Receive(ctx context.Context) (any, error)
	ReceiveAsync() (any, bool)
}

// ActivityOptions configures retry/timeout policy for a single activity
// invocation; engine adapters translate this into their native retry
// mechanism (a loop for inmem, a Temporal RetryPolicy for temporal).
type ActivityOptions struct {
	AttemptLimit  int
	CallTimeout   time.Duration
	BackoffBase   time.Duration
	BackoffJitter float64
}

// WorkflowDefinition registers a named workflow entrypoint with the engine.
type WorkflowDefinition struct {
	Name string
	Func func(ctx WorkflowContext, input any) (any, error)
}

// ActivityDefinition registers a named activity with the engine.
type ActivityDefinition struct {
	Name string
	Func ActivityFunc
}

// WorkflowStartRequest starts a new workflow run.
type WorkflowStartRequest struct {
	WorkflowID string
	Workflow   string
	Input      any
}

// WorkflowHandle lets a caller wait on, signal, or cancel a started run.
type WorkflowHandle interface {
	Wait(ctx context.Context) (any, error)
	Signal(ctx context.Context, name string, payload any) error
	Cancel(ctx context.Context) error
}

// Engine is the durable workflow substrate contract. The driver registers
// the research graph's single workflow entrypoint plus its activities (LLM
// calls, search calls) once at startup, then starts one workflow run per
// invoke/stream/resume call.
type Engine interface {
	RegisterWorkflow(def WorkflowDefinition) error
	RegisterActivity(def ActivityDefinition) error
	StartWorkflow(ctx context.Context, req WorkflowStartRequest) (WorkflowHandle, error)
}

// ErrWorkflowNotFound is returned when a handle references a run the engine
// no longer tracks (completed and reaped, or never started).
type ErrWorkflowNotFound struct{ WorkflowID string }

func (e *ErrWorkflowNotFound) Error() string { return "engine: workflow not found: " + e.WorkflowID }
