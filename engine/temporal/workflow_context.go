package temporal

import (
	"context"
	"time"

	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/deepresearchhq/engine/engine"
)

// workflowContext adapts Temporal's replay-safe workflow.Context into
// engine.WorkflowContext. Grounded on the teacher's temporalWorkflowContext
// (runtime/agent/engine/temporal/workflow_context.go), narrowed to this
// module's smaller WorkflowContext surface (no planner/tool/child-workflow
// activity call shapes — driver.run dispatches generate_query, web_research,
// reflection, and finalize_answer as named activities via ExecuteActivity/
// ExecuteActivityAsync, so this surface only needs the plain activity call
// shape, not a child-workflow one).
type workflowContext struct {
	engine     *Engine
	ctx        workflow.Context
	workflowID string
	runID      string
}

func newWorkflowContext(e *Engine, ctx workflow.Context) *workflowContext {
	info := workflow.GetInfo(ctx)
	wf := &workflowContext{
		engine:     e,
		ctx:        ctx,
		workflowID: info.WorkflowExecution.ID,
		runID:      info.WorkflowExecution.RunID,
	}
	e.workflowContexts.Store(wf.runID, wf)
	return wf
}

func (w *workflowContext) Context() context.Context {
	return engine.WithWorkflowContext(context.Background(), w)
}

func (w *workflowContext) WorkflowID() string { return w.workflowID }
func (w *workflowContext) RunID() string      { return w.runID }
func (w *workflowContext) Now() time.Time     { return workflow.Now(w.ctx) }

func (w *workflowContext) ExecuteActivity(name string, input any, opts engine.ActivityOptions) (any, error) {
	fut := workflow.ExecuteActivity(w.activityContext(opts), name, input)
	var out any
	if err := fut.Get(w.ctx, &out); err != nil {
		return nil, normalizeError(err)
	}
	return out, nil
}

func (w *workflowContext) ExecuteActivityAsync(name string, input any, opts engine.ActivityOptions) engine.Future {
	fut := workflow.ExecuteActivity(w.activityContext(opts), name, input)
	return &future{future: fut, ctx: w.ctx}
}

func (w *workflowContext) SignalChannel(name string) engine.SignalChannel {
	return &signalChannel{ctx: w.ctx, ch: workflow.GetSignalChannel(w.ctx, name)}
}

func (w *workflowContext) activityContext(opts engine.ActivityOptions) workflow.Context {
	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	var retry *temporalsdk.RetryPolicy
	if opts.AttemptLimit > 0 {
		retry = &temporalsdk.RetryPolicy{
			MaximumAttempts:    int32(opts.AttemptLimit), //nolint:gosec
			InitialInterval:    opts.BackoffBase,
			BackoffCoefficient: 2.0,
		}
	}
	return workflow.WithActivityOptions(w.ctx, workflow.ActivityOptions{
		ScheduleToStartTimeout: timeout,
		StartToCloseTimeout:    timeout,
		TaskQueue:              w.engine.queue,
		RetryPolicy:            retry,
	})
}

// normalizeError translates Temporal's cancellation error into
// context.Canceled so callers can classify cancellation the same way
// regardless of which engine backend ran the workflow.
func normalizeError(err error) error {
	if err == nil {
		return nil
	}
	if temporalsdk.IsCanceledError(err) {
		return context.Canceled
	}
	return err
}

type future struct {
	future workflow.Future
	ctx    workflow.Context
}

func (f *future) Get(_ context.Context) (any, error) {
	var out any
	if err := f.future.Get(f.ctx, &out); err != nil {
		return nil, normalizeError(err)
	}
	return out, nil
}

func (f *future) IsReady() bool { return f.future.IsReady() }

type signalChannel struct {
	ctx workflow.Context
	ch  workflow.ReceiveChannel
}

func (s *signalChannel) Receive(ctx context.Context) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out any
	s.ch.Receive(s.ctx, &out)
	return out, nil
}

func (s *signalChannel) ReceiveAsync() (any, bool) {
	var out any
	ok := s.ch.ReceiveAsync(&out)
	return out, ok
}
