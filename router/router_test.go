package router

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deepresearchhq/engine/state"
)

func TestPlanningRouter(t *testing.T) {
	require.Equal(t, NodePlanningWait, PlanningRouter(state.PlanningProposed))
	require.Equal(t, NodePlanningWait, PlanningRouter(state.PlanningAwaitingConfirmation))
	require.Equal(t, NodeWebResearch, PlanningRouter(state.PlanningConfirmed))
	require.Equal(t, NodeWebResearch, PlanningRouter(state.PlanningAutoApproved))
	require.Equal(t, NodeFinalizeAnswer, PlanningRouter(state.PlanningEnded))
}

func TestFanoutRouterNoPlanDispatchesRemainingQueries(t *testing.T) {
	st := &state.OverallState{SearchQuery: []string{"q1", "q2", "q3"}, ResultSegmentIDs: []int{0}}
	dispatches := FanoutRouter(st)
	require.Len(t, dispatches, 2)
	require.Equal(t, Dispatch{Query: "q2", SegmentID: 1}, dispatches[0])
	require.Equal(t, Dispatch{Query: "q3", SegmentID: 2}, dispatches[1])
}

func TestFanoutRouterWithPlanDispatchesPendingStepsOnly(t *testing.T) {
	st := &state.OverallState{
		PlanningSteps: []state.PlanStep{
			{Query: "q1", Status: state.PlanStepDone},
			{Query: "q2", Status: state.PlanStepPending},
		},
	}
	dispatches := FanoutRouter(st)
	require.Equal(t, []Dispatch{{Query: "q2", SegmentID: 1}}, dispatches)
}

func TestEvaluateResearch(t *testing.T) {
	require.Equal(t, NodeFinalizeAnswer, EvaluateResearch(true, 1, 3))
	require.Equal(t, NodeFinalizeAnswer, EvaluateResearch(false, 3, 3))
	require.Equal(t, NodeWebResearch, EvaluateResearch(false, 1, 3))
	require.Equal(t, NodeFinalizeAnswer, EvaluateResearch(false, 0, 0), "max_research_loops=0 must route to finalize on first visit")
}
