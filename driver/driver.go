// Package driver implements the research engine's public API (spec
// section 6.1): invoke, stream, resume, and cancel, each running the fixed
// node/router graph of section 4 over one engine.Engine-managed workflow
// per call. Grounded in shape on the teacher's
// runtime/agent/runtime/workflow_loop.go (the node-loop/deadline pattern)
// and runtime/agent/runtime/tool_calls.go (fan-out dispatch/collect),
// generalized from a many-tool agent loop to this fixed research graph.
package driver

import (
	"context"
	"fmt"
	"sync"

	"github.com/deepresearchhq/engine/checkpoint"
	"github.com/deepresearchhq/engine/config"
	"github.com/deepresearchhq/engine/engine"
	engineerrors "github.com/deepresearchhq/engine/errors"
	"github.com/deepresearchhq/engine/model"
	"github.com/deepresearchhq/engine/nodes"
	"github.com/deepresearchhq/engine/runstore"
	"github.com/deepresearchhq/engine/state"
	"github.com/deepresearchhq/engine/telemetry"
)

const workflowName = "research.run"

// Driver wires the node/router graph to an engine.Engine, a
// checkpoint.Store, an optional runstore.Store, and a nodes.Deps
// collaborator bundle, and exposes the invoke/stream/resume/cancel surface
// spec section 6.1 names. Every call starts (or resumes into) exactly one
// engine.Engine workflow run, so the same graph runs unmodified whether eng
// is the in-memory scheduler or a Temporal-backed one.
type Driver struct {
	eng         engine.Engine
	checkpoints checkpoint.Store
	runs        runstore.Store
	deps        *nodes.Deps
	config      config.Config
	logger      telemetry.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// New builds a Driver and registers its workflow with eng. deps must
// already have Compile() called on it. runs may be nil, in which case the
// driver skips coarse run bookkeeping (checkpoints remain authoritative).
func New(eng engine.Engine, checkpoints checkpoint.Store, runs runstore.Store, deps *nodes.Deps, cfg config.Config, logger telemetry.Logger) (*Driver, error) {
	d := &Driver{
		eng:         eng,
		checkpoints: checkpoints,
		runs:        runs,
		deps:        deps,
		config:      cfg,
		logger:      logger,
		cancels:     make(map[string]context.CancelFunc),
	}
	err := eng.RegisterWorkflow(engine.WorkflowDefinition{
		Name: workflowName,
		Func: func(wfCtx engine.WorkflowContext, input any) (any, error) {
			ri, _ := input.(runInput)
			return d.run(wfCtx, ri), nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("driver: register workflow: %w", err)
	}
	if err := d.registerActivities(); err != nil {
		return nil, err
	}
	return d, nil
}

// Invoke implements spec section 6.1's invoke(state_init, config): runs the
// graph to completion or interrupt and returns the final OverallState.
func (d *Driver) Invoke(ctx context.Context, threadID string, messages []model.Message) (*state.OverallState, error) {
	st := state.New(d.config.InitialSearchQueryCount, d.config.MaxResearchLoops, d.config.ReasoningModel)
	st.Messages = append(st.Messages, messages...)

	out, err := d.execute(ctx, threadID, runInput{ThreadID: threadID, State: st})
	if err != nil {
		return nil, err
	}
	if out.Kind == "error" {
		return out.State, out.Err
	}
	return out.State, nil
}

// Stream implements spec section 6.1's stream(state_init, config): runs the
// graph exactly as Invoke does, but returns a channel of Event values the
// caller can range over as the run progresses, closed once the run reaches
// a terminal outcome (done, interrupt, error, or cancelled).
func (d *Driver) Stream(ctx context.Context, threadID string, messages []model.Message) (<-chan Event, error) {
	st := state.New(d.config.InitialSearchQueryCount, d.config.MaxResearchLoops, d.config.ReasoningModel)
	st.Messages = append(st.Messages, messages...)
	return d.executeStreaming(ctx, threadID, runInput{ThreadID: threadID, State: st})
}

// Resume implements spec section 6.1's resume(thread_id, input): loads the
// last checkpoint for threadID, appends the user's message, and re-enters
// planning_mode directly (generate_query is not re-run). Resuming is
// idempotent against replays of the same checkpoint: two calls against an
// unchanged awaiting_confirmation checkpoint both load the same state and
// apply the same planning_mode transition, so they converge on the same
// outcome regardless of how many times the caller replays the resume.
func (d *Driver) Resume(ctx context.Context, threadID string, message string) (<-chan Event, error) {
	cp, ok, err := d.checkpoints.Latest(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &checkpoint.ErrNotFound{ThreadID: threadID}
	}
	if cp.Status != checkpoint.StatusAwaitingConfirmation {
		return nil, engineerrors.NewResearchError(engineerrors.KindPlanning, "thread is not awaiting plan confirmation", nil)
	}

	st := cp.State
	st.Messages = append(st.Messages, model.Message{Role: model.RoleUser, Parts: []model.Part{model.TextPart{Text: message}}})

	return d.executeStreaming(ctx, threadID, runInput{ThreadID: threadID, State: st, IsResume: true})
}

// Cancel implements spec section 6.1's cancel(thread_id): cancels the
// in-flight run for threadID, if any, and marks its checkpoint cancelled.
// Cancellation is cooperative: the workflow observes ctx.Done() at its next
// suspension point (a node boundary or a collaborator call), not
// preemptively. The runstore record is flipped to canceled synchronously,
// independent of that cooperative checkpoint write, so a caller polling
// runstore sees the cancellation take effect immediately rather than
// waiting on the run's next node boundary.
func (d *Driver) Cancel(threadID string) {
	d.mu.Lock()
	cancel, ok := d.cancels[threadID]
	d.mu.Unlock()
	if ok {
		cancel()
	}
	d.markRunStatus(context.Background(), threadID, runstore.StatusCanceled)
}

// execute starts the workflow, blocks for it to reach a terminal outcome,
// and returns that outcome directly (no event channel). Used by Invoke,
// which only cares about the final state.
func (d *Driver) execute(ctx context.Context, threadID string, input runInput) (outcome, error) {
	runCtx, cancel := context.WithCancel(ctx)
	d.registerCancel(threadID, cancel)
	defer d.clearCancel(threadID)
	defer cancel()

	d.markRunStatus(ctx, threadID, runstore.StatusRunning)

	handle, err := d.eng.StartWorkflow(runCtx, engine.WorkflowStartRequest{
		WorkflowID: threadID,
		Workflow:   workflowName,
		Input:      input,
	})
	if err != nil {
		return outcome{}, fmt.Errorf("driver: start workflow: %w", err)
	}
	res, err := handle.Wait(runCtx)
	if err != nil {
		return outcome{}, err
	}
	out, _ := res.(outcome)
	d.markRunStatus(ctx, threadID, runStatusFor(out))
	return out, nil
}

// executeStreaming starts the workflow with a live event channel attached
// to input and returns the read side immediately; the channel is closed
// once the workflow reaches a terminal outcome.
func (d *Driver) executeStreaming(ctx context.Context, threadID string, input runInput) (<-chan Event, error) {
	events := make(chan Event, 64)
	input.Events = events

	runCtx, cancel := context.WithCancel(ctx)
	d.registerCancel(threadID, cancel)

	d.markRunStatus(ctx, threadID, runstore.StatusRunning)

	handle, err := d.eng.StartWorkflow(runCtx, engine.WorkflowStartRequest{
		WorkflowID: threadID,
		Workflow:   workflowName,
		Input:      input,
	})
	if err != nil {
		cancel()
		d.clearCancel(threadID)
		close(events)
		return nil, fmt.Errorf("driver: start workflow: %w", err)
	}

	go func() {
		defer close(events)
		defer d.clearCancel(threadID)
		defer cancel()
		res, _ := handle.Wait(context.Background())
		out, _ := res.(outcome)
		d.markRunStatus(context.Background(), threadID, runStatusFor(out))
	}()
	return events, nil
}

// runStatusFor maps a workflow outcome to the coarse runstore.Status it
// leaves the thread in.
func runStatusFor(out outcome) runstore.Status {
	switch out.Kind {
	case "done":
		return runstore.StatusCompleted
	case "interrupt":
		return runstore.StatusPaused
	case "cancelled":
		return runstore.StatusCanceled
	default:
		return runstore.StatusFailed
	}
}

func (d *Driver) markRunStatus(ctx context.Context, threadID string, status runstore.Status) {
	if d.runs == nil {
		return
	}
	_ = d.runs.Upsert(ctx, runstore.Record{ThreadID: threadID, Status: status})
}

func (d *Driver) registerCancel(threadID string, cancel context.CancelFunc) {
	d.mu.Lock()
	d.cancels[threadID] = cancel
	d.mu.Unlock()
}

func (d *Driver) clearCancel(threadID string) {
	d.mu.Lock()
	delete(d.cancels, threadID)
	d.mu.Unlock()
}
