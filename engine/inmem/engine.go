// Package inmem implements engine.Engine as a single-process, goroutine-
// based scheduler, used for tests and local CLI runs. Adapted from the
// teacher's runtime/agent/engine/inmem engine, simplified to this graph's
// fixed single-workflow/many-activity shape and made internally consistent
// (the teacher's inmem engine referenced several types not declared in its
// own engine.Engine interface).
package inmem

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/deepresearchhq/engine/engine"
)

// signalChan is a buffered channel of capacity 64: send blocks once the
// buffer is full, until a receiver drains it.
type signalChan struct {
	ch chan any
}

func newSignalChan() *signalChan {
	return &signalChan{ch: make(chan any, 64)}
}

func (s *signalChan) send(v any) {
	s.ch <- v
}

func (s *signalChan) Receive(ctx context.Context) (any, error) {
	select {
	case v := <-s.ch:
		return v, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *signalChan) ReceiveAsync() (any, bool) {
	select {
	case v := <-s.ch:
		return v, true
	default:
		return nil, false
	}
}

type future struct {
	done   chan struct{}
	result any
	err    error
}

func (f *future) Get(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *future) IsReady() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

type wfCtx struct {
	ctx        context.Context
	workflowID string
	runID      string
	eng        *Engine
	signals    map[string]*signalChan
	mu         sync.Mutex
}

func (w *wfCtx) Context() context.Context { return engine.WithWorkflowContext(w.ctx, w) }
func (w *wfCtx) WorkflowID() string       { return w.workflowID }
func (w *wfCtx) RunID() string            { return w.runID }
func (w *wfCtx) Now() time.Time           { return time.Now() }

func (w *wfCtx) SignalChannel(name string) engine.SignalChannel {
	w.mu.Lock()
	defer w.mu.Unlock()
	if sc, ok := w.signals[name]; ok {
		return sc
	}
	sc := newSignalChan()
	w.signals[name] = sc
	return sc
}

func (w *wfCtx) ExecuteActivity(name string, input any, opts engine.ActivityOptions) (any, error) {
	return w.eng.runActivityWithRetry(w.ctx, name, input, opts)
}

func (w *wfCtx) ExecuteActivityAsync(name string, input any, opts engine.ActivityOptions) engine.Future {
	f := &future{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.result, f.err = w.eng.runActivityWithRetry(w.ctx, name, input, opts)
	}()
	return f
}

type handle struct {
	workflowID string
	done       chan struct{}
	result     any
	err        error
	wf         *wfCtx
}

func (h *handle) Wait(ctx context.Context) (any, error) {
	select {
	case <-h.done:
		return h.result, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *handle) Signal(ctx context.Context, name string, payload any) error {
	h.wf.SignalChannel(name).(*signalChan).send(payload)
	return nil
}

func (h *handle) Cancel(ctx context.Context) error {
	h.wf.SignalChannel("cancel").(*signalChan).send(struct{}{})
	return nil
}

// Engine is a goroutine-backed engine.Engine.
type Engine struct {
	mu         sync.RWMutex
	workflows  map[string]engine.WorkflowDefinition
	activities map[string]engine.ActivityDefinition
	handles    map[string]*handle
}

// New constructs an empty in-memory Engine.
func New() *Engine {
	return &Engine{
		workflows:  make(map[string]engine.WorkflowDefinition),
		activities: make(map[string]engine.ActivityDefinition),
		handles:    make(map[string]*handle),
	}
}

func (e *Engine) RegisterWorkflow(def engine.WorkflowDefinition) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.workflows[def.Name] = def
	return nil
}

func (e *Engine) RegisterActivity(def engine.ActivityDefinition) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.activities[def.Name] = def
	return nil
}

func (e *Engine) StartWorkflow(ctx context.Context, req engine.WorkflowStartRequest) (engine.WorkflowHandle, error) {
	e.mu.RLock()
	def, ok := e.workflows[req.Workflow]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("inmem engine: workflow %q not registered", req.Workflow)
	}

	wf := &wfCtx{
		ctx:        ctx,
		workflowID: req.WorkflowID,
		runID:      req.WorkflowID,
		eng:        e,
		signals:    make(map[string]*signalChan),
	}
	h := &handle{workflowID: req.WorkflowID, done: make(chan struct{}), wf: wf}

	e.mu.Lock()
	e.handles[req.WorkflowID] = h
	e.mu.Unlock()

	go func() {
		defer close(h.done)
		h.result, h.err = def.Func(wf, req.Input)
	}()

	return h, nil
}

func (e *Engine) runActivityWithRetry(ctx context.Context, name string, input any, opts engine.ActivityOptions) (any, error) {
	e.mu.RLock()
	def, ok := e.activities[name]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("inmem engine: activity %q not registered", name)
	}

	attempts := opts.AttemptLimit
	if attempts <= 0 {
		attempts = 1
	}
	base := opts.BackoffBase
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		callCtx := engine.WithActivityContext(ctx)
		var cancel context.CancelFunc
		if opts.CallTimeout > 0 {
			callCtx, cancel = context.WithTimeout(callCtx, opts.CallTimeout)
		}
		result, err := def.Func(callCtx, input)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return result, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt < attempts-1 {
			wait := backoffWithJitter(base, attempt, opts.BackoffJitter)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, lastErr
}

func backoffWithJitter(base time.Duration, attempt int, jitter float64) time.Duration {
	d := base << attempt
	if jitter <= 0 {
		return d
	}
	delta := float64(d) * jitter
	return d + time.Duration(rand.Float64()*2*delta-delta) //nolint:gosec
}
