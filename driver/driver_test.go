package driver

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/deepresearchhq/engine/checkpoint/inmem"
	"github.com/deepresearchhq/engine/config"
	dinmem "github.com/deepresearchhq/engine/engine/inmem"
	engineerrors "github.com/deepresearchhq/engine/errors"
	"github.com/deepresearchhq/engine/model"
	"github.com/deepresearchhq/engine/nodes"
	"github.com/deepresearchhq/engine/runstore"
	runstoreinmem "github.com/deepresearchhq/engine/runstore/inmem"
	"github.com/deepresearchhq/engine/telemetry"
)

const groundedFindingsText = "Euro 2024's top scorer was confirmed by official UEFA statistics."
const groundedSourceURL = "https://uefa.example/top-scorer"

// stubLLM answers generate_query/reflection structured requests with canned
// JSON selected by which required property their schema names, and answers
// grounded-search/text requests with a fixed, cited string (optionally
// erroring for one specific query, to drive the web_research degrade path).
type stubLLM struct {
	sufficient bool
	failQuery  string
	failErr    error
}

func (c *stubLLM) Complete(ctx context.Context, req model.Request) (model.Response, error) {
	switch req.Class {
	case model.ClassStructured:
		if schemaHasRequired(req.Schema, "queries") {
			body, _ := json.Marshal(map[string]any{"queries": []string{"euro 2024 top scorer", "euro 2024 golden boot"}})
			return textResponse(string(body)), nil
		}
		if schemaHasRequired(req.Schema, "is_sufficient") {
			body, _ := json.Marshal(map[string]any{
				"is_sufficient":     c.sufficient,
				"knowledge_gap":     "",
				"follow_up_queries": []string{},
			})
			return textResponse(string(body)), nil
		}
		return model.Response{}, errors.New("stub: unrecognized structured schema")
	case model.ClassGroundedSearch:
		if c.failQuery != "" && strings.Contains(req.Messages[0].Text(), c.failQuery) {
			return model.Response{}, c.failErr
		}
		resp := textResponse(groundedFindingsText)
		resp.GroundingCitations = []model.Citation{{
			OriginalURL: groundedSourceURL,
			Label:       "UEFA Official Stats",
			Location:    model.CitationLocation{StartChar: len(groundedFindingsText), EndChar: len(groundedFindingsText)},
		}}
		return resp, nil
	default: // ClassText: finalize_answer synthesis
		return textResponse("The leading scorer at Euro 2024 is documented in the findings. [s1]"), nil
	}
}

func textResponse(text string) model.Response {
	return model.Response{Message: model.Message{Role: model.RoleAssistant, Parts: []model.Part{model.TextPart{Text: text}}}}
}

func schemaHasRequired(schema map[string]any, prop string) bool {
	req, _ := schema["required"].([]any)
	for _, r := range req {
		if s, ok := r.(string); ok && s == prop {
			return true
		}
	}
	return false
}

func newTestDriver(t *testing.T, llm model.Client, cfg config.Config) (*Driver, *inmem.Store) {
	t.Helper()
	deps := &nodes.Deps{LLM: llm, ReasoningModel: cfg.ReasoningModel}
	require.NoError(t, deps.Compile())

	eng := dinmem.New()
	checkpoints := inmem.New()
	d, err := New(eng, checkpoints, runstoreinmem.New(), deps, cfg, telemetry.NewNoopLogger())
	require.NoError(t, err)
	return d, checkpoints
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.InitialSearchQueryCount = 2
	cfg.MaxResearchLoops = 1
	cfg.MaxParallel = 2
	cfg.ReasoningModel = "test-model"
	return cfg
}

func userMessage(text string) model.Message {
	return model.Message{Role: model.RoleUser, Parts: []model.Part{model.TextPart{Text: text}}}
}

func drainEvents(ch <-chan Event) []Event {
	var out []Event
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func TestInvokeRunsToCompletionWithoutPlan(t *testing.T) {
	d, _ := newTestDriver(t, &stubLLM{sufficient: true}, testConfig())

	st, err := d.Invoke(context.Background(), "thread-invoke", []model.Message{userMessage("Who scored the most goals at Euro 2024?")})
	require.NoError(t, err)
	require.Len(t, st.Messages, 2, "user message plus the synthesized assistant answer")
	answer := st.Messages[len(st.Messages)-1].Text()
	require.Contains(t, answer, "(https://uefa.example/top-scorer)")
	require.Contains(t, answer, "Sources:")
}

func TestStreamInterruptsForPlanConfirmation(t *testing.T) {
	d, checkpoints := newTestDriver(t, &stubLLM{sufficient: true}, testConfig())

	events, err := d.Stream(context.Background(), "thread-plan", []model.Message{userMessage("/plan")})
	require.NoError(t, err)

	var sawInterrupt bool
	for ev := range events {
		if ev.Type == EventInterrupt {
			sawInterrupt = true
			require.Equal(t, ReasonAwaitingPlanConfirmation, ev.Reason)
			require.Len(t, ev.PlanningSteps, 2)
		}
		require.NotEqual(t, EventDone, ev.Type, "a run awaiting plan confirmation must not reach done")
	}
	require.True(t, sawInterrupt)

	cp, ok, err := checkpoints.Latest(context.Background(), "thread-plan")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "awaiting_confirmation", string(cp.Status))
}

func TestResumeConfirmPlanContinuesToCompletion(t *testing.T) {
	d, _ := newTestDriver(t, &stubLLM{sufficient: true}, testConfig())

	_ = drainEvents(mustStream(t, d, "thread-resume-confirm", "/plan"))

	events, err := d.Resume(context.Background(), "thread-resume-confirm", "/confirm_plan")
	require.NoError(t, err)

	var sawDone bool
	var sawWebResearch bool
	for ev := range events {
		if ev.Type == EventDone {
			sawDone = true
		}
		if ev.Type == EventNodeUpdate && ev.Node == "web_research" {
			sawWebResearch = true
		}
	}
	require.True(t, sawDone, "confirming the plan must drive the run to completion")
	require.True(t, sawWebResearch)
}

func TestResumeEndPlanSkipsResearch(t *testing.T) {
	d, _ := newTestDriver(t, &stubLLM{sufficient: true}, testConfig())

	_ = drainEvents(mustStream(t, d, "thread-resume-end", "/plan"))

	events, err := d.Resume(context.Background(), "thread-resume-end", "/end_plan")
	require.NoError(t, err)

	var sawWebResearch, sawDone bool
	for ev := range events {
		if ev.Type == EventNodeUpdate && ev.Node == "web_research" {
			sawWebResearch = true
		}
		if ev.Type == EventDone {
			sawDone = true
		}
	}
	require.True(t, sawDone)
	require.False(t, sawWebResearch, "/end_plan finalizes on existing evidence without dispatching research")
}

func TestResumeAgainstNonAwaitingThreadFails(t *testing.T) {
	d, _ := newTestDriver(t, &stubLLM{sufficient: true}, testConfig())
	_, err := d.Resume(context.Background(), "thread-never-started", "/confirm_plan")
	require.Error(t, err)
}

func TestInvokeRecordsRunstoreLifecycle(t *testing.T) {
	cfg := testConfig()
	deps := &nodes.Deps{LLM: &stubLLM{sufficient: true}, ReasoningModel: cfg.ReasoningModel}
	require.NoError(t, deps.Compile())

	runs := runstoreinmem.New()
	d, err := New(dinmem.New(), inmem.New(), runs, deps, cfg, telemetry.NewNoopLogger())
	require.NoError(t, err)

	_, err = d.Invoke(context.Background(), "thread-runstore", []model.Message{userMessage("Who scored the most goals at Euro 2024?")})
	require.NoError(t, err)

	rec, err := runs.Load(context.Background(), "thread-runstore")
	require.NoError(t, err)
	require.Equal(t, runstore.StatusCompleted, rec.Status)
	require.False(t, rec.StartedAt.IsZero())
}

func TestWebResearchBranchDegradesOnTransientError(t *testing.T) {
	llm := &stubLLM{
		sufficient: true,
		failQuery:  "golden boot",
		failErr:    engineerrors.NewLLMError("stub", "simulated transient failure", true, nil),
	}
	d, _ := newTestDriver(t, llm, testConfig())

	st, err := d.Invoke(context.Background(), "thread-degrade", []model.Message{userMessage("Who scored the most goals at Euro 2024?")})
	require.NoError(t, err, "a transient branch failure degrades rather than failing the whole run")
	require.NotEmpty(t, st.Messages)
}

func TestWebResearchBranchFailsRunOnPermanentError(t *testing.T) {
	llm := &stubLLM{
		sufficient: true,
		failQuery:  "golden boot",
		failErr:    engineerrors.NewLLMError("stub", "simulated permanent failure", false, nil),
	}
	d, _ := newTestDriver(t, llm, testConfig())

	_, err := d.Invoke(context.Background(), "thread-fail", []model.Message{userMessage("Who scored the most goals at Euro 2024?")})
	require.Error(t, err, "a non-transient, non-exhausted branch error fails the whole run")
}

func mustStream(t *testing.T, d *Driver, threadID, message string) <-chan Event {
	t.Helper()
	events, err := d.Stream(context.Background(), threadID, []model.Message{userMessage(message)})
	require.NoError(t, err)
	return events
}

func TestCancelStopsAnInFlightRun(t *testing.T) {
	d, _ := newTestDriver(t, &stubLLM{sufficient: true}, testConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	events, err := d.Stream(ctx, "thread-cancel", []model.Message{userMessage("/plan")})
	require.NoError(t, err)

	d.Cancel("thread-cancel")
	evs := drainEvents(events)
	require.NotEmpty(t, evs)
}
