// Package citation implements short_url assignment and text rewriting for
// grounded LLM responses: a run-scoped monotonic counter assigns stable
// "[sN]" tokens to each distinct original_url in first-seen order, reused on
// repeat URLs, then the response text is annotated right-to-left by segment
// end offset so earlier offsets stay valid as later ones are rewritten.
// Grounded on the merge-by-key idiom in
// runtime/agent/runtime/aggregate/aggregate.go, adapted from merging result
// maps to merging citation spans.
package citation

import (
	"fmt"
	"sort"

	"github.com/deepresearchhq/engine/model"
	"github.com/deepresearchhq/engine/state"
)

// Assigner assigns stable short_url tokens to original URLs within a run,
// reusing the token for a URL already seen (set-union semantics for
// sources_gathered).
type Assigner struct {
	next    int
	byURL   map[string]string
	sources map[string]state.Source
}

// NewAssigner builds an Assigner seeded with the sources already present in
// the run so tokens stay stable across research loops.
func NewAssigner(existing []state.Source) *Assigner {
	a := &Assigner{next: 1, byURL: map[string]string{}, sources: map[string]state.Source{}}
	for _, s := range existing {
		a.byURL[s.OriginalURL] = s.ShortURL
		if n, ok := parseShortURLIndex(s.ShortURL); ok && n >= a.next {
			a.next = n + 1
		}
	}
	return a
}

// Assign returns the short_url for originalURL, minting a new one in
// insertion order on first sight, and records the Source under segmentID.
func (a *Assigner) Assign(originalURL, label string, segmentID int) string {
	if short, ok := a.byURL[originalURL]; ok {
		return short
	}
	short := fmt.Sprintf("[s%d]", a.next)
	a.next++
	a.byURL[originalURL] = short
	a.sources[short] = state.Source{ShortURL: short, OriginalURL: originalURL, Label: label, SegmentID: segmentID}
	return short
}

// NewSources returns the sources minted by this Assigner since construction,
// suitable for a Delta.NewSources entry (set-union dedup by ShortURL
// happens again at Apply, so repeats across branches are harmless).
func (a *Assigner) NewSources() []state.Source {
	out := make([]state.Source, 0, len(a.sources))
	for _, s := range a.sources {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ShortURL < out[j].ShortURL })
	return out
}

// Rewrite annotates text with short_url markers for each citation,
// inserting right-to-left by EndChar so earlier offsets remain valid; ties
// are broken by longer span first so nested citations don't corrupt the
// shorter one's offset.
func Rewrite(text string, citations []model.Citation, assigner *Assigner, segmentID int) string {
	type span struct {
		loc   model.CitationLocation
		short string
	}
	spans := make([]span, 0, len(citations))
	for _, c := range citations {
		short := assigner.Assign(c.OriginalURL, c.Label, segmentID)
		spans = append(spans, span{loc: c.Location, short: short})
	}
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].loc.EndChar != spans[j].loc.EndChar {
			return spans[i].loc.EndChar > spans[j].loc.EndChar
		}
		return (spans[i].loc.EndChar - spans[i].loc.StartChar) > (spans[j].loc.EndChar - spans[j].loc.StartChar)
	})

	out := []byte(text)
	for _, s := range spans {
		end := s.loc.EndChar
		if end < 0 || end > len(out) {
			end = len(out)
		}
		marker := []byte(s.short)
		rewritten := make([]byte, 0, len(out)+len(marker))
		rewritten = append(rewritten, out[:end]...)
		rewritten = append(rewritten, marker...)
		rewritten = append(rewritten, out[end:]...)
		out = rewritten
	}
	return string(out)
}

func parseShortURLIndex(short string) (int, bool) {
	var n int
	if _, err := fmt.Sscanf(short, "[s%d]", &n); err != nil {
		return 0, false
	}
	return n, true
}
