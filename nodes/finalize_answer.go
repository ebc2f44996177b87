package nodes

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	engineerrors "github.com/deepresearchhq/engine/errors"
	"github.com/deepresearchhq/engine/model"
	"github.com/deepresearchhq/engine/state"
)

var shortURLPattern = regexp.MustCompile(`\[s\d+\]`)

// FinalizeAnswer implements spec section 4.11: synthesize the final
// assistant message from the validated, ordered web_research_result and
// the accumulated sources_gathered, then rewrite every short_url reference
// in the answer into a (label)(original_url) link and drop unreferenced
// sources from the final bibliography.
func (d *Deps) FinalizeAnswer(ctx context.Context, st *state.OverallState) (state.Delta, error) {
	prompt := synthesisPrompt(st)
	req := model.Request{
		Model: d.ReasoningModel,
		Class: model.ClassText,
		Messages: []model.Message{
			{Role: model.RoleUser, Parts: []model.Part{model.TextPart{Text: prompt}}},
		},
	}
	resp, err := d.LLM.Complete(ctx, req)
	if err != nil {
		return state.Delta{}, engineerrors.NewResearchError(engineerrors.KindFinalize, "finalize_answer failed", err)
	}

	byShort := make(map[string]state.Source, len(st.SourcesGathered))
	for _, s := range st.SourcesGathered {
		byShort[s.ShortURL] = s
	}

	answer, referenced := rewriteCitationLinks(resp.Message.Text(), byShort)
	if len(referenced) > 0 {
		answer += "\n\nSources:\n" + renderBibliography(referenced)
	}

	msg := model.Message{
		Role:  model.RoleAssistant,
		Parts: []model.Part{model.TextPart{Text: answer}},
	}
	return state.Delta{NewMessages: []model.Message{msg}}, nil
}

func synthesisPrompt(st *state.OverallState) string {
	var sb strings.Builder
	sb.WriteString("Synthesize a final answer to the user's question using only the research findings below. ")
	sb.WriteString("Cite sources inline using their [sN] markers exactly as they appear in the findings.\n\n")
	if q := lastUserMessage(st); q != "" {
		fmt.Fprintf(&sb, "Question: %s\n\n", q)
	}
	if len(st.WebResearchResult) == 0 {
		sb.WriteString("No research findings were gathered for this run; answer from general knowledge and say so.\n")
	}
	for i, r := range st.WebResearchResult {
		fmt.Fprintf(&sb, "Finding %d: %s\n", i+1, r)
	}
	return sb.String()
}

// rewriteCitationLinks replaces every [sN] marker found in text with a
// (label)(original_url) link, returning the rewritten text and the
// deduplicated, first-appearance-ordered list of sources actually
// referenced — everything else is dropped from the bibliography.
func rewriteCitationLinks(text string, byShort map[string]state.Source) (string, []state.Source) {
	var referenced []state.Source
	seen := make(map[string]struct{})

	rewritten := shortURLPattern.ReplaceAllStringFunc(text, func(marker string) string {
		src, ok := byShort[marker]
		if !ok {
			return marker
		}
		if _, dup := seen[marker]; !dup {
			seen[marker] = struct{}{}
			referenced = append(referenced, src)
		}
		label := src.Label
		if label == "" {
			label = src.OriginalURL
		}
		return fmt.Sprintf("(%s)(%s)", label, src.OriginalURL)
	})
	return rewritten, referenced
}

func renderBibliography(sources []state.Source) string {
	var sb strings.Builder
	for i, s := range sources {
		label := s.Label
		if label == "" {
			label = s.OriginalURL
		}
		fmt.Fprintf(&sb, "%d. %s - %s\n", i+1, label, s.OriginalURL)
	}
	return strings.TrimRight(sb.String(), "\n")
}
