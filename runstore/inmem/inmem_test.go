package inmem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deepresearchhq/engine/runstore"
)

func TestUpsertThenLoadRoundTrips(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, runstore.Record{ThreadID: "t1", Status: runstore.StatusRunning}))
	rec, err := s.Load(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, runstore.StatusRunning, rec.Status)
	require.False(t, rec.StartedAt.IsZero())
}

func TestUpsertPreservesStartedAtAcrossUpdates(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, runstore.Record{ThreadID: "t1", Status: runstore.StatusRunning}))
	first, err := s.Load(ctx, "t1")
	require.NoError(t, err)

	require.NoError(t, s.Upsert(ctx, runstore.Record{ThreadID: "t1", Status: runstore.StatusCompleted}))
	second, err := s.Load(ctx, "t1")
	require.NoError(t, err)

	require.Equal(t, runstore.StatusCompleted, second.Status)
	require.Equal(t, first.StartedAt, second.StartedAt)
}

func TestLoadUnknownThreadReturnsNotFound(t *testing.T) {
	s := New()
	_, err := s.Load(context.Background(), "missing")
	require.ErrorIs(t, err, runstore.ErrNotFound)
}
