// Package state defines the run record (OverallState) the engine accumulates
// across a run, and the reducers that combine node-produced deltas into it.
// Every field carries an explicit combine rule instead of leaning on a
// generic mutable map, per the "typed dict with reducers" redesign note:
// state is a tagged record whose fields each know how to merge.
package state

import "github.com/deepresearchhq/engine/model"

// PlanStepStatus is the lifecycle of a single PlanStep.
type PlanStepStatus string

const (
	PlanStepPending PlanStepStatus = "pending"
	PlanStepRunning PlanStepStatus = "running"
	PlanStepDone    PlanStepStatus = "done"
	PlanStepSkipped PlanStepStatus = "skipped"
)

// PlanStep is one step of a proposed or confirmed research plan.
type PlanStep struct {
	ID     string
	Title  string
	Query  string
	Status PlanStepStatus
	Result string
}

// PlanningStatus is the planning_mode state machine's current phase.
type PlanningStatus string

const (
	PlanningNone                 PlanningStatus = "none"
	PlanningProposed             PlanningStatus = "proposed"
	PlanningAwaitingConfirmation PlanningStatus = "awaiting_confirmation"
	PlanningConfirmed            PlanningStatus = "confirmed"
	PlanningAutoApproved         PlanningStatus = "auto_approved"
	PlanningEnded                PlanningStatus = "ended"
)

// Terminal reports whether the planning status is terminal for the run:
// once reached, subsequent planning turns belong to later user messages.
func (s PlanningStatus) Terminal() bool {
	switch s {
	case PlanningConfirmed, PlanningAutoApproved, PlanningEnded:
		return true
	default:
		return false
	}
}

// Source is a deduplicated citation record. short_url is the canonical
// identifier used both for citation insertion and set-union dedup.
type Source struct {
	ShortURL    string
	OriginalURL string
	Label       string
	SegmentID   int
}

// OverallState is the run record. It is created at invoke/stream time from
// the caller's input and only grows via reducers until the driver returns.
type OverallState struct {
	Messages          []model.Message
	SearchQuery       []string
	WebResearchResult []string
	// ResultSegmentIDs tracks which segment_id each WebResearchResult entry
	// belongs to, so the aggregator can re-sort by segment_id regardless of
	// completion order; parallel arrays keep the zero value a valid state.
	ResultSegmentIDs []int

	SourcesGathered []Source

	InitialSearchQueryCount int
	MaxResearchLoops        int
	ResearchLoopCount       int
	ReasoningModel          string

	PlanningSteps   []PlanStep
	PlanningStatus  PlanningStatus
	PlanningFeedback []string
}

// New returns a zero-value OverallState seeded with caller-controlled
// config (initial_search_query_count, max_research_loops, reasoning_model).
func New(initialSearchQueryCount, maxResearchLoops int, reasoningModel string) *OverallState {
	return &OverallState{
		InitialSearchQueryCount: initialSearchQueryCount,
		MaxResearchLoops:        maxResearchLoops,
		ReasoningModel:          reasoningModel,
		PlanningStatus:          PlanningNone,
	}
}
