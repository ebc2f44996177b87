package validate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractKeywordsDropsShortAndStopWords(t *testing.T) {
	kw := ExtractKeywords("who is the top scorer in the 2024 tournament?")
	_, hasTop := kw["top"]
	require.False(t, hasTop, "3-letter token should be dropped")
	_, hasScorer := kw["scorer"]
	require.True(t, hasScorer)
	_, hasTournament := kw["tournament"]
	require.True(t, hasTournament)
}

func TestExtractKeywordsPurity(t *testing.T) {
	q := "leading goal scorers euro 2024 tournament"
	require.Equal(t, ExtractKeywords(q), ExtractKeywords(q))
}

func TestFilterDropsIrrelevantSummary(t *testing.T) {
	queries := []string{"leading goal scorers euro 2024"}
	summaries := []string{
		"Euro 2024 leading goal scorers were led by several strikers this tournament.",
		"Local weather forecast shows rain across the region tomorrow afternoon.",
	}
	res := Filter(queries, summaries)
	require.Equal(t, []int{0}, res.Kept)
	require.False(t, res.FallbackFired)
}

func TestFilterFallsBackWhenAllFail(t *testing.T) {
	queries := []string{"leading goal scorers euro 2024"}
	summaries := []string{
		"Local weather forecast shows rain across the region tomorrow afternoon.",
	}
	res := Filter(queries, summaries)
	require.Equal(t, []int{0}, res.Kept)
	require.True(t, res.FallbackFired)
}

func TestFilterEmptyInput(t *testing.T) {
	res := Filter(nil, nil)
	require.Empty(t, res.Kept)
	require.False(t, res.FallbackFired)
}
