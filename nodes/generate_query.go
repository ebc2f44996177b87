package nodes

import (
	"context"
	"fmt"

	engineerrors "github.com/deepresearchhq/engine/errors"
	"github.com/deepresearchhq/engine/llm/schema"
	"github.com/deepresearchhq/engine/model"
	"github.com/deepresearchhq/engine/state"
)

// GenerateQuery implements spec section 4.2: ask the LLM for a structured
// list of distinct, specific search queries derived from the latest user
// message and recent context, then deduplicate case-insensitively while
// preserving first-occurrence order. The result is capped to
// st.InitialSearchQueryCount entries on the first planning turn (when no
// queries exist yet); follow-up calls during reflection go through
// Reflection instead, not this node.
func (d *Deps) GenerateQuery(ctx context.Context, st *state.OverallState) (state.Delta, error) {
	userMsg := lastUserMessage(st)
	if userMsg == "" {
		return state.Delta{}, engineerrors.NewResearchError(engineerrors.KindPlanning, "no user message to derive queries from", nil)
	}

	n := st.InitialSearchQueryCount
	if n < 1 {
		n = 1
	}

	prompt := fmt.Sprintf(
		"You are planning a research task. Given the user's question, produce up to %d distinct, "+
			"specific web search queries that together would answer it. Question: %q",
		n, userMsg,
	)
	req := model.Request{
		Model: d.ReasoningModel,
		Class: model.ClassStructured,
		Messages: []model.Message{
			{Role: model.RoleUser, Parts: []model.Part{model.TextPart{Text: prompt}}},
		},
		Schema: queriesSchemaDoc,
	}

	value, _, err := schema.CompleteStructured(ctx, d.LLM, req, "generate_query", d.queriesSchema)
	if err != nil {
		if verr, ok := asValidationError(err); ok {
			return state.Delta{}, engineerrors.NewResearchError(engineerrors.KindPlanning, "structured query generation failed schema validation", verr)
		}
		return state.Delta{}, engineerrors.NewResearchError(engineerrors.KindPlanning, "generate_query failed", err)
	}

	obj, _ := value.(map[string]any)
	rawQueries, _ := obj["queries"].([]any)

	queries := make([]string, 0, len(rawQueries))
	seen := make(map[string]struct{}, len(rawQueries))
	for _, rq := range rawQueries {
		q, ok := rq.(string)
		if !ok || q == "" {
			continue
		}
		key := normalizeForDedup(q)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		queries = append(queries, q)
		if len(queries) >= n {
			break
		}
	}
	if len(queries) == 0 {
		queries = []string{userMsg}
	}

	return state.Delta{NewSearchQuery: queries}, nil
}

func lastUserMessage(st *state.OverallState) string {
	for i := len(st.Messages) - 1; i >= 0; i-- {
		if st.Messages[i].Role == model.RoleUser {
			return st.Messages[i].Text()
		}
	}
	return ""
}

func normalizeForDedup(s string) string {
	b := []byte(s)
	out := make([]byte, 0, len(b))
	lastSpace := true
	for _, c := range b {
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			if lastSpace {
				continue
			}
			lastSpace = true
			out = append(out, ' ')
			continue
		}
		lastSpace = false
		out = append(out, c)
	}
	for len(out) > 0 && out[len(out)-1] == ' ' {
		out = out[:len(out)-1]
	}
	return string(out)
}

func asValidationError(err error) (*engineerrors.ValidationError, bool) {
	ve, ok := err.(*engineerrors.ValidationError)
	return ve, ok
}
