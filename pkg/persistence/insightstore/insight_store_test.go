package insightstore

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/prodkit/ideate/pkg/chat"
)

func storesUnderTest(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func TestAddAndList(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			confidence := 0.9
			in := &chat.Insight{
				ID:            uuid.NewString(),
				SessionID:     "s1",
				Type:          chat.InsightRequirement,
				Text:          "needs OAuth",
				Confidence:    &confidence,
				SourceTurnIDs: []string{"t2"},
			}
			require.NoError(t, store.Add(ctx, in))

			got, err := store.List(ctx, "s1")
			require.NoError(t, err)
			require.Len(t, got, 1)
			require.Equal(t, chat.InsightRequirement, got[0].Type)
			require.Equal(t, "needs OAuth", got[0].Text)
			require.NotNil(t, got[0].Confidence)
			require.InDelta(t, 0.9, *got[0].Confidence, 1e-9)
			require.Equal(t, []string{"t2"}, got[0].SourceTurnIDs)
			require.False(t, got[0].AppliedToPRD)
		})
	}
}

func TestAddRejectsInvalidInsight(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			bad := &chat.Insight{ID: uuid.NewString(), SessionID: "s1", Type: "vibe", Text: "x"}
			require.Error(t, store.Add(ctx, bad))

			over := 1.5
			bad = &chat.Insight{ID: uuid.NewString(), SessionID: "s1", Type: chat.InsightRisk, Text: "x", Confidence: &over}
			require.Error(t, store.Add(ctx, bad))

			got, err := store.List(ctx, "s1")
			require.NoError(t, err)
			require.Empty(t, got)
		})
	}
}
