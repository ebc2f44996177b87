package citation

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deepresearchhq/engine/model"
	"github.com/deepresearchhq/engine/state"
)

func TestAssignMintsTokensInInsertionOrder(t *testing.T) {
	a := NewAssigner(nil)
	s1 := a.Assign("https://a.example", "A", 0)
	s2 := a.Assign("https://b.example", "B", 0)
	require.Equal(t, "[s1]", s1)
	require.Equal(t, "[s2]", s2)
}

func TestAssignReusesTokenForRepeatURL(t *testing.T) {
	a := NewAssigner(nil)
	first := a.Assign("https://a.example", "A", 0)
	again := a.Assign("https://a.example", "A", 1)
	require.Equal(t, first, again)
	require.Len(t, a.NewSources(), 1)
}

func TestAssignSeedsFromExistingSources(t *testing.T) {
	a := NewAssigner([]state.Source{{ShortURL: "[s3]", OriginalURL: "https://seed.example"}})
	next := a.Assign("https://new.example", "New", 0)
	require.Equal(t, "[s4]", next)
}

func TestRewriteInsertsRightToLeft(t *testing.T) {
	text := "Spain won the tournament in Germany this year."
	citations := []model.Citation{
		{OriginalURL: "https://a.example", Label: "A", Location: model.CitationLocation{StartChar: 0, EndChar: 9}},
		{OriginalURL: "https://b.example", Label: "B", Location: model.CitationLocation{StartChar: 28, EndChar: 35}},
	}
	a := NewAssigner(nil)
	got := Rewrite(text, citations, a, 0)
	require.Equal(t, "Spain won[s1] the tournament in Germany[s2] this year.", got)
}

func TestRewriteBreaksTiesByLongerSpanFirst(t *testing.T) {
	text := "abcdef"
	citations := []model.Citation{
		{OriginalURL: "https://short.example", Location: model.CitationLocation{StartChar: 2, EndChar: 4}},
		{OriginalURL: "https://long.example", Location: model.CitationLocation{StartChar: 0, EndChar: 4}},
	}
	a := NewAssigner(nil)
	got := Rewrite(text, citations, a, 0)
	require.Equal(t, "abcd[s1][s2]ef", got)
}
