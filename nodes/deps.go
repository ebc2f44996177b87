// Package nodes implements the research graph's node bodies (spec section
// 4): generate_query, planning_mode, planning_wait, web_research,
// validate_web_results, reflection, and finalize_answer. Each node is a
// function of the current OverallState (plus, for web_research, its branch
// payload) to a state.Delta; nodes never mutate state directly and never
// talk to the durable workflow substrate themselves — that orchestration
// lives in package driver. Grounded in shape on the teacher's
// runtime/agent/planner.Planner contract (propose-a-structured-decision)
// and runtime/agent/runtime/tool_calls.go (fan-out branch body shape).
package nodes

import (
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/deepresearchhq/engine/model"
	"github.com/deepresearchhq/engine/search"
	"github.com/deepresearchhq/engine/telemetry"
)

// Deps bundles the collaborators and policy a node body needs. The caller
// builds it once (cmd/research does so at startup) and hands it to
// driver.New, which passes the same Deps to every run and node/activity
// invocation; nodes never reach for a package-level global.
type Deps struct {
	// LLM is the structured/text/grounded-search collaborator. Implementations
	// are expected to already carry retry and rate-limit middleware (package
	// llm/middleware), so nodes call it directly without re-wrapping.
	LLM model.Client
	// Search is consulted by web_research only when the grounded-search
	// Complete call returns an error; nil is valid, and that error is then
	// returned as is.
	Search search.Provider
	// ReasoningModel is the opaque model identifier forwarded on every
	// Request (state.OverallState.ReasoningModel mirrors this once set).
	ReasoningModel string
	// StrictCitations mirrors config.Config.StrictCitations. No node reads
	// it: the driver passes its own config value to ValidateWebResults.
	StrictCitations bool
	// Logger is carried for callers' use; no node body logs through it. May
	// be nil.
	Logger telemetry.Logger

	// compiled schemas, built once via Deps.Compile and reused by every node
	// invocation for the lifetime of the run.
	queriesSchema   *jsonschema.Schema
	reflectSchema   *jsonschema.Schema
}
