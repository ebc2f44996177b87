// Package router implements the research graph's conditional edges (spec
// section 4.5, 4.6, 4.10): pure predicates over state that name the next
// node, with no teacher-style global registry — each router is a plain
// function the driver calls explicitly between node executions.
package router

import "github.com/deepresearchhq/engine/state"

// NodeName identifies a node in the fixed research graph, including the
// terminal sentinel used when a router has nowhere further to send the run.
type NodeName string

const (
	NodeGenerateQuery       NodeName = "generate_query"
	NodePlanningMode        NodeName = "planning_mode"
	NodePlanningWait        NodeName = "planning_wait"
	NodeWebResearch         NodeName = "web_research"
	NodeValidateWebResults  NodeName = "validate_web_results"
	NodeReflection          NodeName = "reflection"
	NodeFinalizeAnswer      NodeName = "finalize_answer"
	NodeTerminal            NodeName = "__terminal__"
)

// PlanningRouter implements spec section 4.5.
func PlanningRouter(status state.PlanningStatus) NodeName {
	switch status {
	case state.PlanningProposed, state.PlanningAwaitingConfirmation:
		return NodePlanningWait
	case state.PlanningConfirmed, state.PlanningAutoApproved:
		return NodeWebResearch // fanout_router's dispatch point
	case state.PlanningEnded:
		return NodeFinalizeAnswer
	default:
		return NodePlanningWait
	}
}

// Dispatch is one fan-out descriptor: a single web_research branch bound to
// a query and its deterministic segment_id (spec section 4.6).
type Dispatch struct {
	Query     string
	SegmentID int
}

// FanoutRouter implements spec section 4.6: one dispatch per pending
// PlanStep when a plan exists, or one per not-yet-researched query when it
// does not. segment_id is the position used for deterministic aggregation
// ordering at the join.
func FanoutRouter(st *state.OverallState) []Dispatch {
	if len(st.PlanningSteps) > 0 {
		var out []Dispatch
		for i, step := range st.PlanningSteps {
			if step.Status == state.PlanStepPending {
				out = append(out, Dispatch{Query: step.Query, SegmentID: i})
			}
		}
		return out
	}

	researched := make(map[int]struct{}, len(st.ResultSegmentIDs))
	for _, seg := range st.ResultSegmentIDs {
		researched[seg] = struct{}{}
	}
	var out []Dispatch
	for i, q := range st.SearchQuery {
		if _, done := researched[i]; done {
			continue
		}
		out = append(out, Dispatch{Query: q, SegmentID: i})
	}
	return out
}

// EvaluateResearch implements spec section 4.10.
func EvaluateResearch(isSufficient bool, researchLoopCount, maxResearchLoops int) NodeName {
	if isSufficient || researchLoopCount >= maxResearchLoops {
		return NodeFinalizeAnswer
	}
	return NodeWebResearch
}
