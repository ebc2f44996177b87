package nodes

import (
	"fmt"
	"strings"

	"github.com/deepresearchhq/engine/state"
)

// Planning bare commands recognized on the messages channel (spec 6.2).
// Matching is case-insensitive and whitespace-tolerant (spec 8's boundary
// behavior), handled by commandFromMessage below.
const (
	CmdPlan        = "/plan"
	CmdConfirmPlan = "/confirm_plan"
	CmdEndPlan     = "/end_plan"
)

// commandFromMessage extracts a recognized bare planning command from a raw
// user message, or "" if msg is not one of the three exact commands.
func commandFromMessage(msg string) string {
	trimmed := strings.ToLower(strings.TrimSpace(msg))
	switch trimmed {
	case CmdPlan, CmdConfirmPlan, CmdEndPlan:
		return trimmed
	default:
		return ""
	}
}

// PlanningMode implements spec section 4.3. It never calls a collaborator:
// plan construction is a pure mapping from the queries generate_query (or a
// prior reflection loop) already produced onto PlanStep records.
func PlanningMode(st *state.OverallState) state.Delta {
	userMsg := lastUserMessage(st)
	cmd := commandFromMessage(userMsg)

	switch st.PlanningStatus {
	case state.PlanningNone:
		if cmd == CmdPlan {
			return proposePlan(st)
		}
		status := state.PlanningAutoApproved
		return state.Delta{SetPlanningStatus: &status}

	case state.PlanningProposed, state.PlanningAwaitingConfirmation:
		switch cmd {
		case CmdConfirmPlan:
			status := state.PlanningConfirmed
			return state.Delta{
				SetPlanningStatus:   &status,
				NewPlanningFeedback: []string{"Plan confirmed by user; proceeding to research."},
			}
		case CmdEndPlan:
			status := state.PlanningEnded
			return state.Delta{
				SetPlanningStatus:   &status,
				NewPlanningFeedback: []string{"Plan ended by user before research; finalizing with existing evidence only."},
			}
		default:
			// New user text while a plan is outstanding: regenerate/edit the
			// proposal (spec section 4.3's "proposed -> proposed" self-loop).
			return proposePlan(st)
		}

	default:
		// Terminal for this run (confirmed/auto_approved/ended); planning_mode
		// is not re-entered once terminal within a single run.
		return state.Delta{}
	}
}

// proposePlan builds PlanSteps from the accumulated search queries and
// enters (or re-enters) the proposed state, emitting a human-readable
// feedback summary.
func proposePlan(st *state.OverallState) state.Delta {
	steps := buildPlanSteps(st.SearchQuery)
	status := state.PlanningProposed
	return state.Delta{
		SetPlanningStatus: &status,
		SetPlanningSteps:  steps,
		HasPlanningSteps:  true,
		NewPlanningFeedback: []string{
			fmt.Sprintf("Proposed research plan with %d step(s); awaiting confirmation (%s or %s).", len(steps), CmdConfirmPlan, CmdEndPlan),
		},
	}
}

// buildPlanSteps maps each query to a PlanStep, titled with the query's
// first 8 words, per spec section 4.3.
func buildPlanSteps(queries []string) []state.PlanStep {
	steps := make([]state.PlanStep, 0, len(queries))
	for i, q := range queries {
		steps = append(steps, state.PlanStep{
			ID:     fmt.Sprintf("step-%d", i+1),
			Title:  firstNWords(q, 8),
			Query:  q,
			Status: state.PlanStepPending,
		})
	}
	return steps
}

func firstNWords(s string, n int) string {
	fields := strings.Fields(s)
	if len(fields) <= n {
		return s
	}
	return strings.Join(fields[:n], " ") + "..."
}

// PlanningWait implements spec section 4.4: set planning_status to
// awaiting_confirmation and record a feedback entry. The driver is
// responsible for treating the node's return as a suspend point (writing
// the interrupt checkpoint and halting the run) rather than this function
// raising a sentinel itself.
func PlanningWait() state.Delta {
	status := state.PlanningAwaitingConfirmation
	return state.Delta{
		SetPlanningStatus:   &status,
		NewPlanningFeedback: []string{"Waiting for user confirmation of the proposed plan."},
	}
}
