package nodes

import (
	"fmt"
	"strings"

	engineerrors "github.com/deepresearchhq/engine/errors"
	"github.com/deepresearchhq/engine/llm/schema"
	"github.com/deepresearchhq/engine/model"
	"github.com/deepresearchhq/engine/state"

	"context"
)

// Verdict is reflection's structured evaluation (spec section 4.9).
type Verdict struct {
	IsSufficient    bool
	KnowledgeGap    string
	FollowUpQueries []string
}

// Reflection implements spec section 4.9. research_loop_count is
// incremented here and only here (spec section 9's open-question
// resolution: a single increment site inside reflection).
func (d *Deps) Reflection(ctx context.Context, st *state.OverallState) (Verdict, state.Delta, error) {
	prompt := reflectionPrompt(st)
	req := model.Request{
		Model: d.ReasoningModel,
		Class: model.ClassStructured,
		Messages: []model.Message{
			{Role: model.RoleUser, Parts: []model.Part{model.TextPart{Text: prompt}}},
		},
		Schema: reflectionSchemaDoc,
	}

	value, _, err := schema.CompleteStructured(ctx, d.LLM, req, "reflection", d.reflectSchema)
	if err != nil {
		return Verdict{}, state.Delta{}, engineerrors.NewResearchError(engineerrors.KindReflection, "reflection failed", err)
	}

	obj, _ := value.(map[string]any)
	sufficient, _ := obj["is_sufficient"].(bool)
	gap, _ := obj["knowledge_gap"].(string)
	rawFollowUps, _ := obj["follow_up_queries"].([]any)

	followUps := make([]string, 0, len(rawFollowUps))
	for _, f := range rawFollowUps {
		if s, ok := f.(string); ok && s != "" {
			followUps = append(followUps, s)
		}
	}

	newLoopCount := st.ResearchLoopCount + 1
	verdict := Verdict{IsSufficient: sufficient, KnowledgeGap: gap, FollowUpQueries: followUps}
	delta := state.Delta{
		NewSearchQuery:       followUps,
		SetResearchLoopCount: &newLoopCount,
	}
	return verdict, delta, nil
}

func reflectionPrompt(st *state.OverallState) string {
	var sb strings.Builder
	sb.WriteString("Evaluate whether the gathered research evidence is sufficient to answer the user's question.\n\n")
	fmt.Fprintf(&sb, "Queries issued so far: %s\n\n", strings.Join(st.SearchQuery, "; "))
	sb.WriteString("Research findings:\n")
	for i, r := range st.WebResearchResult {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, r)
	}
	sb.WriteString("\nIf insufficient, propose distinct follow-up queries that would close the gap.")
	return sb.String()
}
