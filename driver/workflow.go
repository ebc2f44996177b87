package driver

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/deepresearchhq/engine/checkpoint"
	"github.com/deepresearchhq/engine/citation"
	"github.com/deepresearchhq/engine/engine"
	engineerrors "github.com/deepresearchhq/engine/errors"
	"github.com/deepresearchhq/engine/nodes"
	"github.com/deepresearchhq/engine/router"
	"github.com/deepresearchhq/engine/state"
)

// runInput is what starts one workflow execution: either a fresh run
// (IsResume false, State freshly built from the caller's input) or a
// resumption (IsResume true, State loaded from the last checkpoint with
// the resume message already appended to Messages).
type runInput struct {
	ThreadID string
	State    *state.OverallState
	IsResume bool
	Events   chan<- Event
}

// outcome is the workflow function's return value.
type outcome struct {
	Kind  string // "done" | "interrupt" | "error" | "cancelled"
	State *state.OverallState
	Err   error
}

// run executes the fixed research graph of spec section 4 against input,
// emitting Event values as it goes and appending a checkpoint at every
// node boundary (spec section 6.4). It is the driver's single workflow
// entrypoint, registered once with the engine. Every collaborator-calling
// node runs through wfCtx.ExecuteActivity/ExecuteActivityAsync rather than
// being called inline, so the same graph stays replay-safe whether wfCtx
// backs onto the in-memory engine or engine/temporal: no network I/O ever
// executes directly inside the workflow function itself.
func (d *Driver) run(wfCtx engine.WorkflowContext, input runInput) outcome {
	ctx := wfCtx.Context()
	st := input.State
	emit := func(e Event) {
		if input.Events != nil {
			select {
			case input.Events <- e:
			case <-ctx.Done():
			}
		}
	}

	checkpointAt := func(status checkpoint.RunStatus, pending []checkpoint.PendingDispatch) {
		_ = d.checkpoints.Append(ctx, checkpoint.Checkpoint{
			ThreadID:          input.ThreadID,
			State:             st,
			PendingDispatches: pending,
			Status:            status,
		})
	}

	fail := func(kind engineerrors.ResearchErrorKind, msg string, cause error) outcome {
		checkpointAt(checkpoint.StatusFailed, nil)
		emit(Event{Type: EventError, ErrorKind: string(kind), Message: msg})
		return outcome{Kind: "error", State: st, Err: engineerrors.NewResearchError(kind, msg, cause)}
	}

	cancelled := func() bool {
		select {
		case <-ctx.Done():
			return true
		default:
			return false
		}
	}

	if cancelled() {
		checkpointAt(checkpoint.StatusCancelled, nil)
		return outcome{Kind: "cancelled", State: st}
	}

	if !input.IsResume {
		res, err := wfCtx.ExecuteActivity(activityGenerateQuery, st, d.activityOpts())
		if err != nil {
			return fail(engineerrors.KindPlanning, "generate_query failed", err)
		}
		delta, _ := res.(state.Delta)
		st.Apply(delta)
		emit(Event{Type: EventNodeUpdate, Node: string(router.NodeGenerateQuery), StateDelta: delta})
		checkpointAt(checkpoint.StatusRunning, nil)
	}

	{
		delta := nodes.PlanningMode(st)
		st.Apply(delta)
		emit(Event{Type: EventNodeUpdate, Node: string(router.NodePlanningMode), StateDelta: delta})
		checkpointAt(checkpoint.StatusRunning, nil)
	}

	next := router.PlanningRouter(st.PlanningStatus)
	if next == router.NodePlanningWait {
		delta := nodes.PlanningWait()
		st.Apply(delta)
		checkpointAt(checkpoint.StatusAwaitingConfirmation, nil)
		emit(Event{
			Type:             EventInterrupt,
			Reason:           ReasonAwaitingPlanConfirmation,
			PlanningSteps:    append([]state.PlanStep{}, st.PlanningSteps...),
			PlanningFeedback: append([]string{}, st.PlanningFeedback...),
		})
		return outcome{Kind: "interrupt", State: st}
	}

	if next != router.NodeFinalizeAnswer {
		for {
			if cancelled() {
				checkpointAt(checkpoint.StatusCancelled, nil)
				return outcome{Kind: "cancelled", State: st}
			}

			dispatches := router.FanoutRouter(st)
			if len(dispatches) > 0 {
				pending := make([]checkpoint.PendingDispatch, len(dispatches))
				for i, dd := range dispatches {
					pending[i] = checkpoint.PendingDispatch{Query: dd.Query, SegmentID: dd.SegmentID}
				}
				checkpointAt(checkpoint.StatusRunning, pending)

				failErr := d.runBranches(ctx, wfCtx, st, dispatches, emit)
				if failErr != nil {
					return fail(engineerrors.KindSearch, "web_research failed", failErr)
				}
				checkpointAt(checkpoint.StatusRunning, nil)
			}

			{
				delta := nodes.ValidateWebResults(st, d.config.StrictCitations)
				st.Apply(delta)
				emit(Event{Type: EventNodeUpdate, Node: string(router.NodeValidateWebResults), StateDelta: delta})
				checkpointAt(checkpoint.StatusRunning, nil)
			}

			res, err := wfCtx.ExecuteActivity(activityReflection, st, d.activityOpts())
			if err != nil {
				return fail(engineerrors.KindReflection, "reflection failed", err)
			}
			rr, _ := res.(reflectionResult)
			st.Apply(rr.Delta)
			emit(Event{Type: EventNodeUpdate, Node: string(router.NodeReflection), StateDelta: rr.Delta})
			checkpointAt(checkpoint.StatusRunning, nil)

			if router.EvaluateResearch(rr.Verdict.IsSufficient, st.ResearchLoopCount, st.MaxResearchLoops) == router.NodeFinalizeAnswer {
				break
			}
		}
	}

	res, err := wfCtx.ExecuteActivity(activityFinalizeAnswer, st, d.activityOpts())
	if err != nil {
		return fail(engineerrors.KindFinalize, "finalize_answer failed", err)
	}
	delta, _ := res.(state.Delta)
	st.Apply(delta)
	emit(Event{Type: EventNodeUpdate, Node: string(router.NodeFinalizeAnswer), StateDelta: delta})
	checkpointAt(checkpoint.StatusCompleted, nil)

	msgID := ""
	if n := len(st.Messages); n > 0 {
		msgID = fmt.Sprintf("%s-msg-%d", input.ThreadID, n-1)
	}
	emit(Event{Type: EventDone, MessageID: msgID})
	return outcome{Kind: "done", State: st}
}

// runBranches fans out one web_research activity per dispatch via
// wfCtx.ExecuteActivityAsync, bounded to Driver.config.MaxParallel
// concurrent branches, and joins all of them before returning. A branch
// whose error is nodes.Degradable degrades to an empty rendered summary
// and a feedback note (spec section 4.7); any other branch error is
// returned to the caller, which fails the whole run.
//
// Short_url assignment happens here, sequentially, after every branch in
// the wave has completed: results are sorted by segment_id and walked in
// that order through a single citation.Assigner, so assignment order
// matches spec section 5's "the aggregator observes branches in segment_id
// order" guarantee regardless of which branch actually finished first, and
// the Assigner is never touched by more than one goroutine at a time.
func (d *Driver) runBranches(ctx context.Context, wfCtx engine.WorkflowContext, st *state.OverallState, dispatches []router.Dispatch, emit func(Event)) error {
	type branchResult struct {
		dispatch router.Dispatch
		out      nodes.WebResearchOutput
		err      error
	}

	sem := make(chan struct{}, d.maxParallel())
	results := make(chan branchResult, len(dispatches))
	var wg sync.WaitGroup

	for _, dd := range dispatches {
		dd := dd
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			fut := wfCtx.ExecuteActivityAsync(activityWebResearch, nodes.WebResearchInput{Query: dd.Query, SegmentID: dd.SegmentID}, d.webResearchOpts())
			res, err := fut.Get(ctx)
			out, _ := res.(nodes.WebResearchOutput)
			results <- branchResult{dispatch: dd, out: out, err: err}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]branchResult, 0, len(dispatches))
	for r := range results {
		ordered = append(ordered, r)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].dispatch.SegmentID < ordered[j].dispatch.SegmentID })

	assigner := citation.NewAssigner(st.SourcesGathered)
	for _, r := range ordered {
		var delta state.Delta
		if r.err != nil {
			if !nodes.Degradable(r.err) {
				return r.err
			}
			delta = state.Delta{
				NewWebResearchResult: []state.ResultEntry{{SegmentID: r.dispatch.SegmentID, Text: ""}},
				NewPlanningFeedback:  []string{fmt.Sprintf("web_research failed for query %q after retries: %v", r.dispatch.Query, r.err)},
			}
		} else {
			rendered := citation.Rewrite(r.out.Text, r.out.Citations, assigner, r.dispatch.SegmentID)
			delta = state.Delta{
				NewWebResearchResult: []state.ResultEntry{{SegmentID: r.dispatch.SegmentID, Text: rendered}},
				NewSources:           assigner.NewSources(),
			}
		}
		st.Apply(delta)
		markStepDone(st, r.dispatch.SegmentID, delta)
		emit(Event{Type: EventNodeUpdate, Node: string(router.NodeWebResearch), StateDelta: delta})
	}
	return nil
}

// markStepDone marks the PlanStep at index segmentID (when a plan exists)
// done, recording the branch's rendered text as its result (spec section
// 4.7 point 6). Applied strictly after st.Apply for this branch so it sees
// the same delta the reducers already folded in.
func markStepDone(st *state.OverallState, segmentID int, delta state.Delta) {
	if segmentID < 0 || segmentID >= len(st.PlanningSteps) {
		return
	}
	result := ""
	for _, e := range delta.NewWebResearchResult {
		if e.SegmentID == segmentID {
			result = e.Text
		}
	}
	st.PlanningSteps[segmentID].Status = state.PlanStepDone
	st.PlanningSteps[segmentID].Result = result
}

func (d *Driver) maxParallel() int {
	if d.config.MaxParallel <= 0 {
		return 1
	}
	return d.config.MaxParallel
}
