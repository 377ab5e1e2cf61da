package insight

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/prodkit/ideate/pkg/chat"
	"github.com/prodkit/ideate/pkg/persistence/insightstore"
)

func history() []chat.Turn {
	return []chat.Turn{
		{ID: "t1", SessionID: "s1", Role: chat.RoleUser, Content: "Build an auth system", Order: 1},
		{ID: "t2", SessionID: "s1", Role: chat.RoleAssistant, Content: "I'll help you.", Order: 2},
	}
}

func TestRunnerSkipsWithoutAssistantTurn(t *testing.T) {
	called := false
	runner := NewRunner(ExtractorFunc(func(context.Context, string, []chat.Turn) ([]chat.Insight, error) {
		called = true
		return nil, nil
	}), insightstore.NewMemoryStore())

	n, err := runner.Run(context.Background(), "s1", []chat.Turn{
		{ID: "t1", SessionID: "s1", Role: chat.RoleUser, Content: "hi", Order: 1},
	})
	require.NoError(t, err)
	require.Zero(t, n)
	require.False(t, called)
}

func TestRunnerPersistsExtractedInsights(t *testing.T) {
	store := insightstore.NewMemoryStore()
	confidence := 0.9
	runner := NewRunner(ExtractorFunc(func(context.Context, string, []chat.Turn) ([]chat.Insight, error) {
		return []chat.Insight{
			{Type: chat.InsightRequirement, Text: "needs OAuth", Confidence: &confidence, SourceTurnIDs: []string{"t2"}},
		}, nil
	}), store)

	n, err := runner.Run(context.Background(), "s1", history())
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got, err := store.List(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "needs OAuth", got[0].Text)
	require.Equal(t, []string{"t2"}, got[0].SourceTurnIDs)
	require.NotEmpty(t, got[0].ID)
	require.Equal(t, "s1", got[0].SessionID)
}

func TestRunnerIsBestEffortPerItem(t *testing.T) {
	store := insightstore.NewMemoryStore()
	runner := NewRunner(ExtractorFunc(func(context.Context, string, []chat.Turn) ([]chat.Insight, error) {
		bad := 2.0
		return []chat.Insight{
			{Type: chat.InsightRisk, Text: "bad confidence", Confidence: &bad},
			{Type: chat.InsightDecision, Text: "keep Go backend"},
			{Type: chat.InsightRisk, Text: "unknown source", SourceTurnIDs: []string{"ghost"}},
		}, nil
	}), store)

	n, err := runner.Run(context.Background(), "s1", history())
	require.Error(t, err)
	require.Equal(t, 1, n)

	got, err := store.List(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "keep Go backend", got[0].Text)
}

func TestRunnerReportsExtractionFailure(t *testing.T) {
	runner := NewRunner(ExtractorFunc(func(context.Context, string, []chat.Turn) ([]chat.Insight, error) {
		return nil, errors.New("model produced garbage")
	}), insightstore.NewMemoryStore())

	n, err := runner.Run(context.Background(), "s1", history())
	require.Error(t, err)
	require.Zero(t, n)
}
