package nodes

import (
	"fmt"

	"github.com/deepresearchhq/engine/state"
	"github.com/deepresearchhq/engine/validate"
)

// ValidateWebResults implements spec section 4.8: drop summaries with no
// keyword overlap against the queries that produced them, unless every
// summary fails, in which case all are retained (the "prefer imperfect
// evidence over none" fallback). strictCitations, when true, disables that
// fallback: a dropped-to-zero wave stays empty instead.
func ValidateWebResults(st *state.OverallState, strictCitations bool) state.Delta {
	if len(st.WebResearchResult) == 0 {
		return state.Delta{}
	}

	result := validate.Filter(st.SearchQuery, st.WebResearchResult)
	kept := result.Kept
	if result.FallbackFired && strictCitations {
		kept = nil
	}

	filtered := make([]state.ResultEntry, 0, len(kept))
	for _, i := range kept {
		filtered = append(filtered, state.ResultEntry{SegmentID: st.ResultSegmentIDs[i], Text: st.WebResearchResult[i]})
	}

	delta := state.Delta{SetFilteredResults: filtered, HasFilteredResults: true}
	dropped := len(st.WebResearchResult) - len(kept)
	if dropped > 0 && !result.FallbackFired {
		delta.NewPlanningFeedback = []string{fmt.Sprintf("Dropped %d of %d research summaries as irrelevant to the query set.", dropped, len(st.WebResearchResult))}
	} else if result.FallbackFired && !strictCitations {
		delta.NewPlanningFeedback = []string{"All research summaries failed the relevance check; retaining all of them rather than discarding evidence."}
	} else if result.FallbackFired && strictCitations {
		delta.NewPlanningFeedback = []string{"All research summaries failed the relevance check; strict citations mode discarded them."}
	}
	return delta
}
