// Package validate implements the validate_web_results node's coarse
// relevance filter (spec section 4.8): extract keywords from the queries
// that produced a wave of web_research summaries, then drop summaries with
// no keyword overlap, using a cheap length-based pre-filter before the
// Jaccard similarity comparison. Grounded on the keyword-extraction/Jaccard
// idiom in the pack's basegraphhq-basegraph findings_persister.go, adapted
// from query-to-query matching to query-set-to-summary relevance.
package validate

import (
	"regexp"
	"strings"
)

// MinKeywordLength is the minimum token length kept by ExtractKeywords; per
// spec.md 4.8, tokens shorter than 4 runes are discarded as noise words
// without needing an explicit stopword list for most of them.
const MinKeywordLength = 4

// Threshold is the minimum Jaccard similarity between a summary's keyword
// set and the query keyword set for the summary to be considered relevant.
const Threshold = 0.08

var wordSplitter = regexp.MustCompile(`[^a-zA-Z0-9]+`)

var stopWords = map[string]bool{
	"this": true, "that": true, "these": true, "those": true, "with": true,
	"from": true, "about": true, "into": true, "over": true, "under": true,
	"after": true, "before": true, "between": true, "which": true, "where": true,
	"when": true, "what": true, "will": true, "would": true, "could": true,
	"should": true, "might": true, "have": true, "been": true, "being": true,
	"were": true, "their": true, "there": true, "here": true,
}

// ExtractKeywords extracts the deduplicated, lowercased, stopword-free,
// length>=4 keyword set from a query string. Pure: identical input always
// yields an identical set (spec.md section 8's "keyword extractor purity"
// law).
func ExtractKeywords(query string) map[string]struct{} {
	words := wordSplitter.Split(strings.ToLower(query), -1)
	keywords := make(map[string]struct{})
	for _, w := range words {
		if len(w) < MinKeywordLength {
			continue
		}
		if stopWords[w] {
			continue
		}
		keywords[w] = struct{}{}
	}
	return keywords
}

// ExtractKeywordSet unions the keywords of every query in queries, used to
// build the relevance signature a wave of web_research summaries is
// checked against.
func ExtractKeywordSet(queries []string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, q := range queries {
		for k := range ExtractKeywords(q) {
			out[k] = struct{}{}
		}
	}
	return out
}

// lengthPreFilter is the O(1) upper-bound check performed before the O(n)
// Jaccard comparison: two keyword sets whose sizes differ by more than an
// order of magnitude cannot plausibly reach Threshold similarity, so the
// expensive intersection/union walk is skipped outright.
func lengthPreFilter(a, b map[string]struct{}) bool {
	la, lb := len(a), len(b)
	if la == 0 || lb == 0 {
		return false
	}
	small, large := la, lb
	if small > large {
		small, large = large, small
	}
	return float64(small)/float64(large) >= Threshold
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for k := range a {
		if _, ok := b[k]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// Relevant reports whether summary has at least one keyword in common with
// queryKeywords, passing the cheap length pre-filter before the fuzzy
// Jaccard comparison against Threshold.
func Relevant(queryKeywords map[string]struct{}, summary string) bool {
	summaryKeywords := ExtractKeywords(summary)
	if !lengthPreFilter(queryKeywords, summaryKeywords) {
		return false
	}
	return jaccard(queryKeywords, summaryKeywords) >= Threshold
}

// Result is the outcome of filtering a wave of web_research summaries.
type Result struct {
	// Kept holds the indices (into the input summaries slice) that passed
	// the relevance check, or every index if the all-fail fallback fired.
	Kept []int
	// FallbackFired is true when every summary failed the check and all
	// were retained per spec.md 4.8's "prefer imperfect evidence over none".
	FallbackFired bool
}

// Filter applies the relevance check to each summary in order, returning
// the indices to keep. If every summary fails, Filter falls back to
// keeping all of them rather than discarding the run's only evidence.
func Filter(queries []string, summaries []string) Result {
	queryKeywords := ExtractKeywordSet(queries)
	kept := make([]int, 0, len(summaries))
	for i, s := range summaries {
		if Relevant(queryKeywords, s) {
			kept = append(kept, i)
		}
	}
	if len(kept) == 0 && len(summaries) > 0 {
		all := make([]int, len(summaries))
		for i := range summaries {
			all[i] = i
		}
		return Result{Kept: all, FallbackFired: true}
	}
	return Result{Kept: kept}
}
