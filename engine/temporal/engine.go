// Package temporal implements engine.Engine over a Temporal workflow worker,
// giving the research graph real suspend/resume across process restarts
// instead of the in-memory engine's goroutine lifetime. Adapted from the
// teacher's runtime/agent/engine/temporal/engine.go, narrowed from a
// multi-queue, multi-activity-type generic agent engine down to this
// engine's single workflow entrypoint and small activity set, and with OTEL
// wiring kept exactly in the teacher's style (client.Options interceptors,
// not a hand-rolled span helper).
package temporal

import (
	"context"
	"fmt"
	"sync"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	temporalotel "go.temporal.io/sdk/contrib/opentelemetry"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/deepresearchhq/engine/engine"
	"github.com/deepresearchhq/engine/telemetry"
)

// Options configures the Temporal engine adapter. Either Client or
// ClientOptions must be provided; TaskQueue is always required.
type Options struct {
	Client        client.Client
	ClientOptions *client.Options
	TaskQueue     string
	WorkerOptions worker.Options

	DisableTracing bool
	DisableMetrics bool

	Logger telemetry.Logger
}

// Engine implements engine.Engine using Temporal as the durable execution
// backend: one worker polling a single task queue for this module's fixed
// workflow entrypoint and activity set.
type Engine struct {
	client      client.Client
	closeClient bool
	queue       string
	worker      worker.Worker
	logger      telemetry.Logger

	mu      sync.Mutex
	started bool

	workflowContexts sync.Map // runID -> engine.WorkflowContext
}

// New constructs a Temporal-backed Engine and its single task-queue worker.
func New(opts Options) (*Engine, error) {
	if opts.TaskQueue == "" {
		return nil, fmt.Errorf("temporal engine: task queue is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}

	cli := opts.Client
	closeClient := false
	if cli == nil {
		if opts.ClientOptions == nil {
			return nil, fmt.Errorf("temporal engine: client options are required when Client is nil")
		}
		clientOpts := *opts.ClientOptions
		if err := applyInstrumentation(&clientOpts, opts); err != nil {
			return nil, err
		}
		var err error
		cli, err = client.NewLazyClient(clientOpts)
		if err != nil {
			return nil, fmt.Errorf("temporal engine: create client: %w", err)
		}
		closeClient = true
	}

	e := &Engine{
		client:      cli,
		closeClient: closeClient,
		queue:       opts.TaskQueue,
		worker:      worker.New(cli, opts.TaskQueue, opts.WorkerOptions),
		logger:      logger,
	}
	return e, nil
}

func applyInstrumentation(opts *client.Options, cfg Options) error {
	if !cfg.DisableTracing {
		tracer, err := temporalotel.NewTracingInterceptor(temporalotel.TracerOptions{})
		if err != nil {
			return fmt.Errorf("temporal engine: configure tracing interceptor: %w", err)
		}
		opts.Interceptors = append(opts.Interceptors, tracer)
	}
	if !cfg.DisableMetrics && opts.MetricsHandler == nil {
		opts.MetricsHandler = temporalotel.NewMetricsHandler(temporalotel.MetricsHandlerOptions{})
	}
	return nil
}

// RegisterWorkflow registers def with the worker, wrapping its handler so
// that every invocation sees an engine.WorkflowContext backed by Temporal's
// replay-safe workflow.Context rather than the raw one.
func (e *Engine) RegisterWorkflow(def engine.WorkflowDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("temporal engine: workflow name cannot be empty")
	}
	e.worker.RegisterWorkflowWithOptions(
		func(tctx workflow.Context, input any) (any, error) {
			wfCtx := newWorkflowContext(e, tctx)
			defer e.workflowContexts.Delete(wfCtx.RunID())
			return def.Func(wfCtx, input)
		},
		workflow.RegisterOptions{Name: def.Name},
	)
	return nil
}

// RegisterActivity registers def with the worker. Activities run outside
// workflow.Context, so the handler is invoked directly with the activity
// context Temporal provides; nodes.Deps collaborators stay plain Go
// functions and don't need to know they're being called as an activity.
func (e *Engine) RegisterActivity(def engine.ActivityDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("temporal engine: activity name cannot be empty")
	}
	e.worker.RegisterActivityWithOptions(
		func(actx context.Context, input any) (any, error) {
			return def.Func(actx, input)
		},
		activity.RegisterOptions{Name: def.Name},
	)
	return nil
}

// StartWorkflow launches req.Workflow on Temporal, starting the worker on
// first use so callers don't have to sequence Worker().Start() themselves.
func (e *Engine) StartWorkflow(ctx context.Context, req engine.WorkflowStartRequest) (engine.WorkflowHandle, error) {
	if req.Workflow == "" {
		return nil, fmt.Errorf("temporal engine: workflow name is required")
	}
	e.ensureStarted()

	run, err := e.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        req.WorkflowID,
		TaskQueue: e.queue,
	}, req.Workflow, req.Input)
	if err != nil {
		return nil, fmt.Errorf("temporal engine: start workflow %q: %w", req.Workflow, err)
	}
	return &workflowHandle{run: run, client: e.client}, nil
}

// ensureStarted starts the worker's polling loop the first time a workflow
// is started, mirroring the teacher's auto-start default (production
// deployments that want explicit control call Worker().Start() earlier).
func (e *Engine) ensureStarted() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return
	}
	e.started = true
	go func() {
		if err := e.worker.Run(worker.InterruptCh()); err != nil {
			e.logger.Error(context.Background(), "temporal worker exited", "queue", e.queue, "err", err)
		}
	}()
}

// Worker exposes the underlying Temporal worker for callers that want
// explicit Start()/Stop() control instead of StartWorkflow's auto-start.
func (e *Engine) Worker() worker.Worker { return e.worker }

// Close shuts down the Temporal client if this Engine created it.
func (e *Engine) Close() {
	if e.closeClient && e.client != nil {
		e.client.Close()
	}
}

type workflowHandle struct {
	run    client.WorkflowRun
	client client.Client
}

func (h *workflowHandle) Wait(ctx context.Context) (any, error) {
	var result any
	if err := h.run.Get(ctx, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (h *workflowHandle) Signal(ctx context.Context, name string, payload any) error {
	return h.client.SignalWorkflow(ctx, h.run.GetID(), h.run.GetRunID(), name, payload)
}

func (h *workflowHandle) Cancel(ctx context.Context) error {
	return h.client.CancelWorkflow(ctx, h.run.GetID(), h.run.GetRunID())
}
