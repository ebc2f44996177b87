package driver

import (
	"context"
	"fmt"
	"time"

	"github.com/deepresearchhq/engine/engine"
	"github.com/deepresearchhq/engine/nodes"
	"github.com/deepresearchhq/engine/state"
)

// Activity names registered with eng alongside the single workflow
// definition. Every node that makes a collaborator call (LLM, search) runs
// as a named activity rather than inline in the workflow function, so a
// replay-safe engine (engine/temporal) can retry and checkpoint each
// collaborator call independently of the enclosing workflow, per
// engine.ActivityFunc's contract. planning_mode and validate_web_results do
// no I/O and stay as plain calls inside run.
const (
	activityGenerateQuery  = "generate_query"
	activityWebResearch    = "web_research"
	activityReflection     = "reflection"
	activityFinalizeAnswer = "finalize_answer"
)

// reflectionResult bundles Reflection's two return values (Verdict, Delta)
// into the single any an engine.ActivityFunc returns.
type reflectionResult struct {
	Verdict nodes.Verdict
	Delta   state.Delta
}

// registerActivities registers every collaborator-calling node as a named
// activity with eng. Called once from New, alongside RegisterWorkflow.
func (d *Driver) registerActivities() error {
	defs := []engine.ActivityDefinition{
		{Name: activityGenerateQuery, Func: d.activityGenerateQuery},
		{Name: activityWebResearch, Func: d.activityWebResearch},
		{Name: activityReflection, Func: d.activityReflection},
		{Name: activityFinalizeAnswer, Func: d.activityFinalizeAnswer},
	}
	for _, def := range defs {
		if err := d.eng.RegisterActivity(def); err != nil {
			return fmt.Errorf("driver: register activity %s: %w", def.Name, err)
		}
	}
	return nil
}

func (d *Driver) activityGenerateQuery(ctx context.Context, input any) (any, error) {
	st, _ := input.(*state.OverallState)
	return d.deps.GenerateQuery(ctx, st)
}

func (d *Driver) activityWebResearch(ctx context.Context, input any) (any, error) {
	in, _ := input.(nodes.WebResearchInput)
	return d.deps.WebResearch(ctx, in)
}

func (d *Driver) activityReflection(ctx context.Context, input any) (any, error) {
	st, _ := input.(*state.OverallState)
	verdict, delta, err := d.deps.Reflection(ctx, st)
	if err != nil {
		return nil, err
	}
	return reflectionResult{Verdict: verdict, Delta: delta}, nil
}

func (d *Driver) activityFinalizeAnswer(ctx context.Context, input any) (any, error) {
	st, _ := input.(*state.OverallState)
	return d.deps.FinalizeAnswer(ctx, st)
}

// activityOpts builds the retry/timeout policy for generate_query,
// reflection, and finalize_answer: each is exactly one collaborator call
// per node visit, so call_timeout_ms (spec section 6.1) bounds it directly.
func (d *Driver) activityOpts() engine.ActivityOptions {
	return engine.ActivityOptions{
		AttemptLimit:  d.config.AttemptLimit,
		CallTimeout:   time.Duration(d.config.CallTimeoutMs) * time.Millisecond,
		BackoffBase:   100 * time.Millisecond,
		BackoffJitter: 0.2,
	}
}

// webResearchOpts builds the retry/timeout policy for one web_research
// branch. Unlike the solo nodes, a single web_research node visit is a
// whole fan-out wave of concurrent branches, so each branch attempt gets
// node_timeout_ms (spec section 6.1's per-node deadline) as its timeout
// rather than call_timeout_ms. The timeout applies to every attempt of every
// branch separately; the wave as a whole has no deadline of its own. Falls
// back to call_timeout_ms if node_timeout_ms is unset.
func (d *Driver) webResearchOpts() engine.ActivityOptions {
	timeoutMs := d.config.NodeTimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = d.config.CallTimeoutMs
	}
	return engine.ActivityOptions{
		AttemptLimit:  d.config.AttemptLimit,
		CallTimeout:   time.Duration(timeoutMs) * time.Millisecond,
		BackoffBase:   100 * time.Millisecond,
		BackoffJitter: 0.2,
	}
}
