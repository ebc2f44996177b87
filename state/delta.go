package state

import (
	"strings"

	"github.com/deepresearchhq/engine/model"
)

// Delta is a partial OverallState returned by a node. Every node is a pure
// function state -> delta; the driver is solely responsible for combining
// deltas into the run state via Apply, so node bodies never mutate shared
// state directly. Zero-value fields mean "nothing to contribute" for that
// field's reducer.
type Delta struct {
	// Append-only fields. A node contributes only the new entries, not the
	// full accumulated slice.
	NewMessages          []model.Message
	NewSearchQuery       []string
	NewWebResearchResult []ResultEntry
	NewPlanningFeedback  []string

	// Set-union field, dedup by ShortURL.
	NewSources []Source

	// Last-write-wins fields. HasX flags distinguish "not set" from the zero
	// value, since 0 is a valid ResearchLoopCount and "" a valid status is
	// not (PlanningStatus has no meaningful empty value, so it is always
	// explicit when set).
	SetResearchLoopCount *int
	SetPlanningStatus    *PlanningStatus
	SetPlanningSteps     []PlanStep
	HasPlanningSteps     bool

	// SetFilteredResults, when HasFilteredResults is true, replaces the
	// whole WebResearchResult/ResultSegmentIDs pair wholesale. This is the
	// one deliberate exception to "append-only": validate_web_results may
	// drop entries that fail its relevance check (spec section 4.8), which
	// an append-only reducer cannot express.
	SetFilteredResults    []ResultEntry
	HasFilteredResults    bool
}

// ResultEntry binds a rendered web_research summary to the segment_id of
// the branch that produced it, so the driver can sort by segment_id at the
// fan-in join regardless of completion order.
type ResultEntry struct {
	SegmentID int
	Text      string
}

// Apply combines a Delta into state in place, following the reducer table
// of the run record: append-only, set-union (by ShortURL), or last-write.
func (s *OverallState) Apply(d Delta) {
	s.Messages = append(s.Messages, d.NewMessages...)
	s.SearchQuery = appendDedupQueries(s.SearchQuery, d.NewSearchQuery)
	s.PlanningFeedback = append(s.PlanningFeedback, d.NewPlanningFeedback...)

	for _, e := range d.NewWebResearchResult {
		s.WebResearchResult = append(s.WebResearchResult, e.Text)
		s.ResultSegmentIDs = append(s.ResultSegmentIDs, e.SegmentID)
	}
	if len(d.NewWebResearchResult) > 0 {
		sortResultsBySegment(s)
	}

	s.SourcesGathered = unionSources(s.SourcesGathered, d.NewSources)

	if d.SetResearchLoopCount != nil {
		s.ResearchLoopCount = *d.SetResearchLoopCount
	}
	if d.SetPlanningStatus != nil {
		s.PlanningStatus = *d.SetPlanningStatus
	}
	if d.HasPlanningSteps {
		s.PlanningSteps = d.SetPlanningSteps
	}

	if d.HasFilteredResults {
		s.WebResearchResult = s.WebResearchResult[:0]
		s.ResultSegmentIDs = s.ResultSegmentIDs[:0]
		for _, e := range d.SetFilteredResults {
			s.WebResearchResult = append(s.WebResearchResult, e.Text)
			s.ResultSegmentIDs = append(s.ResultSegmentIDs, e.SegmentID)
		}
	}
}

// appendDedupQueries appends new queries, deduplicating case-insensitively
// against the full accumulated history while preserving first-occurrence
// order, per generate_query's and reflection's normalization rule.
func appendDedupQueries(existing []string, fresh []string) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, q := range existing {
		seen[normalizeQuery(q)] = struct{}{}
	}
	out := existing
	for _, q := range fresh {
		key := normalizeQuery(q)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, q)
	}
	return out
}

func normalizeQuery(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

// sortResultsBySegment keeps WebResearchResult ordered by segment_id,
// independent of the completion order the underlying deltas arrived in —
// the deterministic-ordering property of §8.
func sortResultsBySegment(s *OverallState) {
	type pair = struct {
		seg  int
		text string
	}
	pairs := make([]pair, len(s.ResultSegmentIDs))
	for i := range s.ResultSegmentIDs {
		pairs[i] = pair{seg: s.ResultSegmentIDs[i], text: s.WebResearchResult[i]}
	}
	insertionSort(pairs)
	for i, p := range pairs {
		s.ResultSegmentIDs[i] = p.seg
		s.WebResearchResult[i] = p.text
	}
}

func insertionSort(pairs []struct {
	seg  int
	text string
}) {
	for i := 1; i < len(pairs); i++ {
		j := i
		for j > 0 && pairs[j-1].seg > pairs[j].seg {
			pairs[j-1], pairs[j] = pairs[j], pairs[j-1]
			j--
		}
	}
}

// unionSources merges fresh sources into existing by ShortURL, the
// canonical dedup key; the short_url assignment itself happens earlier, in
// the citation package, so this is a pure set-union over the supplied keys.
func unionSources(existing []Source, fresh []Source) []Source {
	seen := make(map[string]struct{}, len(existing))
	for _, s := range existing {
		seen[s.ShortURL] = struct{}{}
	}
	out := existing
	for _, s := range fresh {
		if _, ok := seen[s.ShortURL]; ok {
			continue
		}
		seen[s.ShortURL] = struct{}{}
		out = append(out, s)
	}
	return out
}

