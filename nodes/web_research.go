package nodes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	engineerrors "github.com/deepresearchhq/engine/errors"
	"github.com/deepresearchhq/engine/llm/middleware"
	"github.com/deepresearchhq/engine/model"
	"github.com/deepresearchhq/engine/search"
)

// WebResearchInput is the serializable payload for one web_research branch:
// just the query and its segment id, so the node can run standalone as an
// engine activity (no shared in-process state crosses the call boundary).
type WebResearchInput struct {
	Query     string
	SegmentID int
}

// WebResearchOutput is one branch's raw, uncited evidence: rendered text
// plus the citation spans the provider or summarizer produced. Short_url
// assignment deliberately does *not* happen here — it happens once, at the
// fan-in join in driver.runBranches, walking branch outputs in segment_id
// order, per spec section 5's "the aggregator observes branches in
// segment_id order" guarantee. Doing it per-branch would make assignment
// order depend on completion order instead.
type WebResearchOutput struct {
	SegmentID int
	Text      string
	Citations []model.Citation
}

// WebResearch implements the per-branch contract of spec section 4.7: one
// call per dispatched (query, segmentID) pair, safe to run concurrently
// with sibling branches — it touches no shared mutable state.
func (d *Deps) WebResearch(ctx context.Context, in WebResearchInput) (WebResearchOutput, error) {
	text, citations, err := d.groundedOrExplicitSearch(ctx, in.Query)
	if err != nil {
		return WebResearchOutput{}, err
	}
	return WebResearchOutput{SegmentID: in.SegmentID, Text: text, Citations: citations}, nil
}

// groundedOrExplicitSearch calls the LLM with its native grounded-search
// tool. A successful response is returned as is, uncited when it carries no
// grounding citations (an LLM that natively grounds but found nothing
// citable for this query is not itself an error). Only when that call fails
// does it fall back to Deps.Search; with no Search the error is returned.
func (d *Deps) groundedOrExplicitSearch(ctx context.Context, query string) (string, []model.Citation, error) {
	req := model.Request{
		Model:      d.ReasoningModel,
		Class:      model.ClassGroundedSearch,
		SearchTool: "web_search",
		Messages: []model.Message{
			{Role: model.RoleUser, Parts: []model.Part{model.TextPart{Text: groundedSearchPrompt(query)}}},
		},
	}
	resp, err := d.LLM.Complete(ctx, req)
	if err == nil {
		return resp.Message.Text(), resp.GroundingCitations, nil
	}
	if d.Search == nil {
		return "", nil, err
	}

	// Provider has no native grounding (or the grounded call itself failed);
	// fall back to explicit search + summarization per spec section 4.1.2.
	results, serr := d.Search.Search(ctx, query)
	if serr != nil {
		return "", nil, serr
	}
	return d.summarizeSearchResults(ctx, query, results)
}

func groundedSearchPrompt(query string) string {
	return fmt.Sprintf("Research the following and summarize grounded, citable findings: %s", query)
}

// summarizeSearchResults composes a synthesis prompt from explicit search
// hits and asks the LLM for plain text, then manually builds citation spans
// pointing at each cited result's URL since explicit search carries no
// character-level grounding metadata; citations are appended at the end of
// the summary in result order.
func (d *Deps) summarizeSearchResults(ctx context.Context, query string, results []search.Result) (string, []model.Citation, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Query: %s\n\nSearch results:\n", query)
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. %s (%s): %s\n", i+1, r.Title, r.URL, r.Snippet)
	}
	sb.WriteString("\nSummarize the findings relevant to the query in 2-4 sentences.")

	req := model.Request{
		Model: d.ReasoningModel,
		Class: model.ClassText,
		Messages: []model.Message{
			{Role: model.RoleUser, Parts: []model.Part{model.TextPart{Text: sb.String()}}},
		},
	}
	resp, err := d.LLM.Complete(ctx, req)
	if err != nil {
		return "", nil, err
	}

	text := resp.Message.Text()
	citations := make([]model.Citation, 0, len(results))
	for _, r := range results {
		loc := model.CitationLocation{StartChar: len(text), EndChar: len(text)}
		citations = append(citations, model.Citation{OriginalURL: search.NormalizeURL(r.URL), Label: r.Title, Location: loc})
	}
	return text, citations, nil
}

// Degradable reports whether a web_research branch error should degrade to
// an empty summary (spec section 4.7) rather than fail the whole run: a
// collaborator retry exhaustion on a transient cause, or a raw transient
// LLMError/SearchError. Non-transient (permanent) errors escalate.
func Degradable(err error) bool {
	var exhausted *middleware.ExhaustedError
	if errors.As(err, &exhausted) {
		return true
	}
	return engineerrors.IsTransient(err)
}
