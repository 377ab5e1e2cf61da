package quality

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prodkit/ideate/pkg/chat"
)

func TestComputeIsDeterministic(t *testing.T) {
	turns := []chat.Turn{
		{Role: chat.RoleUser, Content: "The main problem is that users churn."},
		{Role: chat.RoleAssistant, Content: "What success metric would you track?"},
	}
	insights := []chat.Insight{
		{Type: chat.InsightRisk, Text: "scaling risk"},
	}

	first := Compute(turns, insights)
	second := Compute(turns, insights)
	require.Equal(t, first, second)
}

func TestComputeCoverageFromTurnsAndInsights(t *testing.T) {
	turns := []chat.Turn{
		{Role: chat.RoleUser, Content: "Our users struggle with a billing problem."},
		{Role: chat.RoleAssistant, Content: "Which API integrations matter most?"},
	}
	insights := []chat.Insight{
		{Type: chat.InsightRequirement, Text: "needs OAuth"},
		{Type: chat.InsightConstraint, Text: "launch before Q4"},
	}

	m := Compute(turns, insights)
	require.True(t, m.Coverage[chat.TopicProblem])
	require.True(t, m.Coverage[chat.TopicUsers])
	require.True(t, m.Coverage[chat.TopicTechnical])
	require.True(t, m.Coverage[chat.TopicFeatures])
	require.True(t, m.Coverage[chat.TopicConstraints])
	require.False(t, m.Coverage[chat.TopicSuccess])
	require.InDelta(t, 5.0/7.0, m.Score, 1e-9)
}

func TestComputeDegradesWithoutInsights(t *testing.T) {
	turns := []chat.Turn{
		{Role: chat.RoleUser, Content: "hello"},
	}
	m := Compute(turns, nil)
	require.NotNil(t, m.Coverage)
	require.Len(t, m.Coverage, 7)
	require.Equal(t, 0.0, m.Score)
	require.False(t, m.ReadyForPRD)
}

func TestReadinessRequiresAssistantTurns(t *testing.T) {
	rich := "problem users feature api risk constraint success metric"
	turns := []chat.Turn{{Role: chat.RoleUser, Content: rich}}
	m := Compute(turns, nil)
	require.GreaterOrEqual(t, m.Score, ReadyScoreThreshold)
	require.False(t, m.ReadyForPRD, "no assistant turns yet")

	turns = append(turns,
		chat.Turn{Role: chat.RoleAssistant, Content: "a"},
		chat.Turn{Role: chat.RoleAssistant, Content: "b"},
	)
	m = Compute(turns, nil)
	require.True(t, m.ReadyForPRD)
}
