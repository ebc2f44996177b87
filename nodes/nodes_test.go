package nodes

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deepresearchhq/engine/model"
	"github.com/deepresearchhq/engine/state"
)

type stubClient struct {
	text string
	err  error
}

func (c *stubClient) Complete(ctx context.Context, req model.Request) (model.Response, error) {
	if c.err != nil {
		return model.Response{}, c.err
	}
	return model.Response{Message: model.Message{Role: model.RoleAssistant, Parts: []model.Part{model.TextPart{Text: c.text}}}}, nil
}

func newTestDeps(t *testing.T, respText string) *Deps {
	t.Helper()
	d := &Deps{LLM: &stubClient{text: respText}, ReasoningModel: "test-model"}
	require.NoError(t, d.Compile())
	return d
}

func TestGenerateQueryDedupsAndCaps(t *testing.T) {
	body, err := json.Marshal(map[string]any{"queries": []string{"Euro 2024 top scorer", "euro 2024 TOP SCORER", "Euro 2024 golden boot winner"}})
	require.NoError(t, err)
	d := newTestDeps(t, string(body))

	st := state.New(2, 3, "test-model")
	st.Messages = append(st.Messages, model.Message{Role: model.RoleUser, Parts: []model.Part{model.TextPart{Text: "Who scored the most goals in Euro 2024?"}}})

	delta, err := d.GenerateQuery(context.Background(), st)
	require.NoError(t, err)
	require.Len(t, delta.NewSearchQuery, 2)
	require.Equal(t, "Euro 2024 top scorer", delta.NewSearchQuery[0])
}

func TestPlanningModeAutoApprovesNormalMessage(t *testing.T) {
	st := state.New(2, 3, "m")
	st.Messages = append(st.Messages, model.Message{Role: model.RoleUser, Parts: []model.Part{model.TextPart{Text: "What happened at Euro 2024?"}}})
	delta := PlanningMode(st)
	require.NotNil(t, delta.SetPlanningStatus)
	require.Equal(t, state.PlanningAutoApproved, *delta.SetPlanningStatus)
}

func TestPlanningModeProposesOnSlashPlan(t *testing.T) {
	st := state.New(2, 3, "m")
	st.SearchQuery = []string{"euro 2024 top scorer"}
	st.Messages = append(st.Messages, model.Message{Role: model.RoleUser, Parts: []model.Part{model.TextPart{Text: "  /PLAN  "}}})
	delta := PlanningMode(st)
	require.Equal(t, state.PlanningProposed, *delta.SetPlanningStatus)
	require.True(t, delta.HasPlanningSteps)
	require.Len(t, delta.SetPlanningSteps, 1)
	require.Equal(t, state.PlanStepPending, delta.SetPlanningSteps[0].Status)
}

func TestPlanningModeConfirmAndEnd(t *testing.T) {
	st := state.New(2, 3, "m")
	st.PlanningStatus = state.PlanningAwaitingConfirmation
	st.Messages = append(st.Messages, model.Message{Role: model.RoleUser, Parts: []model.Part{model.TextPart{Text: "/confirm_plan"}}})
	delta := PlanningMode(st)
	require.Equal(t, state.PlanningConfirmed, *delta.SetPlanningStatus)

	st2 := state.New(2, 3, "m")
	st2.PlanningStatus = state.PlanningProposed
	st2.Messages = append(st2.Messages, model.Message{Role: model.RoleUser, Parts: []model.Part{model.TextPart{Text: "/end_plan"}}})
	delta2 := PlanningMode(st2)
	require.Equal(t, state.PlanningEnded, *delta2.SetPlanningStatus)
}

func TestValidateWebResultsDropsAndFallsBack(t *testing.T) {
	st := state.New(1, 1, "m")
	st.SearchQuery = []string{"euro 2024 leading goal scorers"}
	st.WebResearchResult = []string{"irrelevant weather forecast content here"}
	st.ResultSegmentIDs = []int{0}

	delta := ValidateWebResults(st, false)
	require.True(t, delta.HasFilteredResults)
	require.Len(t, delta.SetFilteredResults, 1, "fallback retains the only summary")
}

func TestFinalizeAnswerRewritesCitations(t *testing.T) {
	d := newTestDeps(t, "The winner was determined by [s1] and confirmed by [s2].")
	st := state.New(1, 1, "m")
	st.SourcesGathered = []state.Source{
		{ShortURL: "[s1]", OriginalURL: "https://a.example", Label: "Source A"},
		{ShortURL: "[s2]", OriginalURL: "https://b.example", Label: "Source B"},
	}

	delta, err := d.FinalizeAnswer(context.Background(), st)
	require.NoError(t, err)
	require.Len(t, delta.NewMessages, 1)
	text := delta.NewMessages[0].Text()
	require.Contains(t, text, "(Source A)(https://a.example)")
	require.Contains(t, text, "(Source B)(https://b.example)")
	require.Contains(t, text, "Sources:")
}
